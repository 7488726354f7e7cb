package metrics

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"stream-relay/internal/logging"
)

// PIDProvider reports the pid of the running encoder, or 0 when none runs.
type PIDProvider interface {
	EncoderPID() int
}

// Collector periodically samples the encoder process, host memory and the
// journal database files and updates the corresponding gauges.
type Collector struct {
	pids      PIDProvider
	dbPath    string
	interval  time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
	doneChan  chan struct{}

	// proc is reused across samples so CPU percent is measured between ticks.
	proc *process.Process
}

// NewCollector creates a new metrics collector
func NewCollector(pids PIDProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		pids:     pids,
		dbPath:   dbPath,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	c.startOnce.Do(func() {
		go c.collectLoop()
	})
}

// Stop stops the metrics collection and waits for the loop to return.
// It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	// A collector that never started has no loop to wait for.
	c.startOnce.Do(func() {
		close(c.doneChan)
	})
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	c.collectEncoder(ctx)
	c.collectHostMemory(ctx)
	c.collectDBSize()
}

func (c *Collector) collectEncoder(ctx context.Context) {
	pid := 0
	if c.pids != nil {
		pid = c.pids.EncoderPID()
	}

	if pid <= 0 {
		c.proc = nil
		EncoderCPUPercent.Set(0)
		EncoderMemoryRSSBytes.Set(0)
		return
	}

	if c.proc == nil || c.proc.Pid != int32(pid) {
		p, err := process.NewProcessWithContext(ctx, int32(pid))
		if err != nil {
			logging.Debug("Encoder process %d not found: %v", pid, err)
			c.proc = nil
			return
		}
		c.proc = p
	}

	// Interval 0 compares against the previous sample on the same handle.
	if cpu, err := c.proc.PercentWithContext(ctx, 0); err == nil {
		EncoderCPUPercent.Set(cpu)
	} else {
		logging.Debug("Failed to sample encoder cpu: %v", err)
	}

	if memInfo, err := c.proc.MemoryInfoWithContext(ctx); err == nil {
		EncoderMemoryRSSBytes.Set(float64(memInfo.RSS))
	} else {
		logging.Debug("Failed to sample encoder memory: %v", err)
	}
}

func (c *Collector) collectHostMemory(ctx context.Context) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		logging.Debug("Failed to sample host memory: %v", err)
		return
	}
	HostMemoryUsedPercent.Set(vm.UsedPercent)
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}

	for file, path := range map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	} {
		info, err := os.Stat(path)
		if err != nil {
			DBSizeBytes.WithLabelValues(file).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(file).Set(float64(info.Size()))
	}
}
