package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_relay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stream_relay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_relay_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_relay_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stream_relay_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_relay_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Ingest session metrics
var (
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_relay_sessions_total",
			Help: "Total number of ingest connection attempts by result",
		},
		[]string{"result"}, // "accepted", "busy", "unavailable", "unauthorized", "upgrade_failed"
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_relay_sessions_active",
			Help: "Number of ingest sessions currently forwarding",
		},
	)

	ChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_relay_chunks_total",
			Help: "Total number of binary chunks forwarded to the encoder",
		},
	)

	ChunkBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_relay_chunk_bytes_total",
			Help: "Total bytes forwarded to the encoder",
		},
	)

	ChunkSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_relay_chunk_size_bytes",
			Help:    "Size of received binary chunks",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KiB .. 16MiB
		},
	)

	ChunkWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_relay_chunk_write_duration_seconds",
			Help:    "Time taken to write one chunk into the encoder input",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	ChunksDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_relay_chunks_dropped_total",
			Help: "Total number of received messages not forwarded, by reason",
		},
		[]string{"reason"}, // "empty", "text"
	)
)

// Encoder process metrics
var (
	EncoderState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_relay_encoder_state",
			Help: "Encoder state (0=stopped, 1=starting, 2=running, 3=exited)",
		},
	)

	EncoderRestartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_relay_encoder_restarts_total",
			Help: "Total number of encoder restarts",
		},
	)

	EncoderExitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_relay_encoder_exits_total",
			Help: "Total number of encoder exits by reason",
		},
		[]string{"reason"}, // "clean", "error", "signal", "spawn_failed"
	)

	EncoderCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_relay_encoder_cpu_percent",
			Help: "CPU usage of the encoder process in percent",
		},
	)

	EncoderMemoryRSSBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_relay_encoder_memory_rss_bytes",
			Help: "Resident set size of the encoder process in bytes",
		},
	)

	HostMemoryUsedPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_relay_host_memory_used_percent",
			Help: "Host memory usage in percent",
		},
	)
)

// Go heap metrics
var (
	GoHeapUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_relay_go_heap_usage_ratio",
			Help: "Go heap allocation as a ratio of the configured memory limit",
		},
	)

	MemoryPressure = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_relay_memory_pressure",
			Help: "Whether new ingest sessions are refused due to memory pressure (1 = refusing)",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_relay_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
