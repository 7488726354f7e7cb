package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gaugeValue reads the current value of a gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

// counterValue reads the current value of a counter.
func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestSetAppInfo(t *testing.T) {
	SetAppInfo("1.2.3", "abc123", "go1.25")

	if v := gaugeValue(t, AppInfo.WithLabelValues("1.2.3", "abc123", "go1.25")); v != 1 {
		t.Errorf("Expected app info gauge 1, got %v", v)
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := make(map[string]bool)
	for _, mf := range families {
		found[mf.GetName()] = true
	}

	for _, name := range []string{
		"stream_relay_sessions_total",
		"stream_relay_encoder_exits_total",
		"stream_relay_chunks_dropped_total",
		"stream_relay_db_queries_total",
		"stream_relay_db_size_bytes",
	} {
		if !found[name] {
			t.Errorf("Expected %s to be exported after InitializeMetrics", name)
		}
	}
}

func TestSessionCounters(t *testing.T) {
	before := counterValue(t, SessionsTotal.WithLabelValues(ResultBusy))
	SessionsTotal.WithLabelValues(ResultBusy).Inc()
	after := counterValue(t, SessionsTotal.WithLabelValues(ResultBusy))

	if after-before != 1 {
		t.Errorf("Expected busy counter to increase by 1, got %v", after-before)
	}
}

func TestChunkMetrics(t *testing.T) {
	before := counterValue(t, ChunkBytesTotal)

	ChunksTotal.Inc()
	ChunkBytesTotal.Add(4096)
	ChunkSizeBytes.Observe(4096)
	ChunkWriteDuration.Observe(0.001)

	if got := counterValue(t, ChunkBytesTotal) - before; got != 4096 {
		t.Errorf("Expected 4096 bytes added, got %v", got)
	}
}
