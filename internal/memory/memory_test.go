package memory

import (
	"runtime/debug"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LimitBytes != 0 {
		t.Errorf("Expected LimitBytes to be 0, got %d", cfg.LimitBytes)
	}
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("High water mark %v must be below critical %v", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("Expected CheckInterval to be 5s, got %v", cfg.CheckInterval)
	}
}

func newTestMonitor(limit int64, alloc *uint64) *Monitor {
	m := NewMonitor(Config{LimitBytes: limit, HighWaterMark: 0.7, CriticalWaterMark: 0.9, CheckInterval: time.Hour})
	m.readAlloc = func() uint64 { return *alloc }
	return m
}

func TestMonitorHysteresis(t *testing.T) {
	alloc := uint64(100)
	m := newTestMonitor(1000, &alloc)

	m.checkMemory()
	if m.Paused() {
		t.Fatal("Expected not paused at 10%")
	}

	alloc = 950
	m.checkMemory()
	if !m.Paused() {
		t.Fatal("Expected paused at 95%")
	}

	// Between the marks the state holds
	alloc = 800
	m.checkMemory()
	if !m.Paused() {
		t.Error("Expected to stay paused at 80%")
	}

	alloc = 500
	m.checkMemory()
	if m.Paused() {
		t.Error("Expected resume at 50%")
	}
}

func TestMonitorStats(t *testing.T) {
	alloc := uint64(250)
	m := newTestMonitor(1000, &alloc)
	m.checkMemory()

	current, limit, usage := m.Stats()
	if current != 250 || limit != 1000 {
		t.Errorf("Unexpected stats %d/%d", current, limit)
	}
	if usage != 0.25 {
		t.Errorf("Expected usage 0.25, got %v", usage)
	}
}

func TestMonitorNoLimit(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
	debug.SetMemoryLimit(1<<63 - 1)

	alloc := uint64(1 << 40)
	m := newTestMonitor(0, &alloc)
	m.Start()
	m.checkMemory()

	if m.Paused() {
		t.Error("A monitor without a limit must never pause")
	}
	m.Stop()
}

func TestMonitorStartStop(t *testing.T) {
	alloc := uint64(1)
	m := newTestMonitor(1000, &alloc)
	m.Start()
	m.Start()
	m.Stop()
	m.Stop()
}

func TestNilMonitorPaused(t *testing.T) {
	var m *Monitor
	if m.Paused() {
		t.Error("Nil monitor should never report pressure")
	}
}

func TestConfigureFromEnv(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })

	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824")
	t.Setenv("MEMORY_RATIO", "")

	result := ConfigureFromEnv()
	if !result.Configured || result.Source != "MEMORY_LIMIT" {
		t.Fatalf("Expected MEMORY_LIMIT configuration, got %+v", result)
	}
	if result.Ratio != DefaultMemoryRatio {
		t.Errorf("Expected default ratio, got %v", result.Ratio)
	}
	if result.GoMemLimit != 536870912 {
		t.Errorf("Expected half of 1GiB, got %d", result.GoMemLimit)
	}
	if got := debug.SetMemoryLimit(-1); got != result.GoMemLimit {
		t.Errorf("Runtime limit %d does not match %d", got, result.GoMemLimit)
	}
}

func TestConfigureFromEnvRatio(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })

	tests := []struct {
		ratio string
		want  float64
	}{
		{"0.25", 0.25},
		{"1.0", 1.0},
		{"1.5", DefaultMemoryRatio},
		{"0", DefaultMemoryRatio},
		{"half", DefaultMemoryRatio},
	}
	for _, tt := range tests {
		t.Run(tt.ratio, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", "1000000")
			t.Setenv("MEMORY_RATIO", tt.ratio)

			if got := ConfigureFromEnv().Ratio; got != tt.want {
				t.Errorf("Ratio = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigureFromEnvUnset(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()
	if result.Configured || result.Source != "none" {
		t.Errorf("Expected no configuration, got %+v", result)
	}
}

func TestConfigureFromEnvInvalidLimit(t *testing.T) {
	for _, v := range []string{"lots", "-5", "0"} {
		t.Setenv("GOMEMLIMIT", "")
		t.Setenv("MEMORY_LIMIT", v)

		if result := ConfigureFromEnv(); result.Configured {
			t.Errorf("MEMORY_LIMIT=%q: expected no configuration, got %+v", v, result)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:        "512 B",
		1024:       "1.0 KiB",
		1536:       "1.5 KiB",
		1048576:    "1.0 MiB",
		1073741824: "1.0 GiB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
