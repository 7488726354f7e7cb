package streaming

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write operation exceeded the configured timeout.
	// This typically occurs when the sink is not draining its input.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrStreamCanceled indicates that the writer was closed, its context was
	// canceled, or an earlier write timed out.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Config configures the timeout writer behavior
type Config struct {
	// WriteTimeout is the maximum time to wait for a single write (0 = no limit)
	WriteTimeout time.Duration
	// ChunkSize is the size of chunks to write (0 = write as received)
	ChunkSize int
	// OnProgress is called each time another MiB has been written
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		ChunkSize:    256 * 1024,
	}
}

// TimeoutWriter wraps an io.Writer with timeout protection
type TimeoutWriter struct {
	w            io.Writer
	ctx          context.Context
	cancel       context.CancelFunc
	config       Config
	startTime    time.Time
	lastWrite    time.Time
	bytesWritten int64
	mu           sync.Mutex
	writeMu      sync.Mutex
	closed       bool
	timedOut     bool
}

// NewTimeoutWriter creates a new timeout-protected writer
func NewTimeoutWriter(ctx context.Context, w io.Writer, config Config) *TimeoutWriter {
	writerCtx, cancel := context.WithCancel(ctx)
	now := time.Now()

	return &TimeoutWriter{
		w:         w,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: now,
		lastWrite: now,
	}
}

// Write implements io.Writer with timeout protection
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.writeMu.Lock()
	defer tw.writeMu.Unlock()

	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	if err := tw.ctx.Err(); err != nil {
		return 0, tw.contextError()
	}

	if tw.config.ChunkSize > 0 && len(p) > tw.config.ChunkSize {
		return tw.writeChunked(p)
	}

	return tw.writeWithTimeout(p)
}

// writeChunked writes data in smaller chunks
func (tw *TimeoutWriter) writeChunked(p []byte) (int, error) {
	totalWritten := 0

	for len(p) > 0 {
		if err := tw.ctx.Err(); err != nil {
			return totalWritten, tw.contextError()
		}

		chunkSize := tw.config.ChunkSize
		if len(p) < chunkSize {
			chunkSize = len(p)
		}

		n, err := tw.writeWithTimeout(p[:chunkSize])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}

		p = p[chunkSize:]
	}

	return totalWritten, nil
}

// writeWithTimeout performs a single write with timeout
func (tw *TimeoutWriter) writeWithTimeout(p []byte) (int, error) {
	if tw.config.WriteTimeout <= 0 {
		n, err := tw.w.Write(p)
		tw.record(n, len(p), err)
		return n, err
	}

	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		resultCh <- writeResult{n, err}
	}()

	timer := time.NewTimer(tw.config.WriteTimeout)
	defer timer.Stop()

	select {
	case result := <-resultCh:
		tw.record(result.n, len(p), result.err)
		return result.n, result.err

	case <-timer.C:
		tw.mu.Lock()
		tw.timedOut = true
		tw.mu.Unlock()
		tw.cancel()
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

func (tw *TimeoutWriter) record(n, requested int, err error) {
	if err != nil && n == 0 {
		return
	}

	tw.mu.Lock()
	tw.lastWrite = time.Now()
	tw.bytesWritten += int64(n)
	bytesWritten := tw.bytesWritten
	tw.mu.Unlock()

	if tw.config.OnProgress != nil && bytesWritten%(1024*1024) < int64(requested) {
		tw.config.OnProgress(bytesWritten, time.Since(tw.startTime))
	}
}

// contextError returns an appropriate error based on writer state
func (tw *TimeoutWriter) contextError() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return ErrWriteTimeout
	}
	return ErrStreamCanceled
}

// Close marks the writer as closed. It does not close the underlying writer.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}

	tw.closed = true
	tw.cancel()

	return nil
}

// Stats returns write statistics
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}

// LastWrite returns the time of the last successful write.
func (tw *TimeoutWriter) LastWrite() time.Time {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.lastWrite
}
