// Package metrics provides Prometheus instrumentation for the stream relay.
//
// All metrics are prefixed with "stream_relay_" and registered with the
// default registry through promauto.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Ingest Metrics
//
//   - SessionsTotal: Counter of connection attempts by admission result
//   - SessionsActive: Gauge of sessions currently forwarding
//   - ChunksTotal, ChunkBytesTotal: Counters of forwarded chunks and bytes
//   - ChunkSizeBytes: Histogram of received chunk sizes
//   - ChunkWriteDuration: Histogram of encoder input write latency
//   - ChunksDroppedTotal: Counter of messages not forwarded, by reason
//
// ## Encoder Metrics
//
//   - EncoderState: Gauge of the supervisor state
//   - EncoderRestartsTotal: Counter of restarts
//   - EncoderExitsTotal: Counter of exits by reason
//   - EncoderCPUPercent, EncoderMemoryRSSBytes: process samples from [Collector]
//
// ## Database Metrics
//
//   - DBQueryTotal, DBQueryDuration: session journal queries by operation
//   - DBSizeBytes: SQLite file sizes (main, WAL, SHM)
//
// # Collector
//
// [Collector] samples the encoder process with gopsutil on a fixed interval:
//
//	collector := metrics.NewCollector(supervisor, dbPath, 15*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Ingest throughput in bytes per second:
//
//	rate(stream_relay_chunk_bytes_total[1m])
//
// P99 encoder write latency:
//
//	histogram_quantile(0.99, sum(rate(stream_relay_chunk_write_duration_seconds_bucket[5m])) by (le))
//
// Encoder crash rate:
//
//	rate(stream_relay_encoder_exits_total{reason!="clean"}[1h])
package metrics
