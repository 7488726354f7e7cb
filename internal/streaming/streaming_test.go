package streaming

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// blockingWriter blocks every write until release is closed.
type blockingWriter struct {
	release chan struct{}
}

func (b *blockingWriter) Write(p []byte) (int, error) {
	<-b.release
	return len(p), nil
}

// recordingWriter records the size of each underlying write.
type recordingWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	sizes []int
}

func (r *recordingWriter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes = append(r.sizes, len(p))
	return r.buf.Write(p)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.WriteTimeout != 10*time.Second {
		t.Errorf("Expected WriteTimeout=10s, got %v", config.WriteTimeout)
	}

	if config.ChunkSize != 256*1024 {
		t.Errorf("Expected ChunkSize=256KB, got %d", config.ChunkSize)
	}

	if config.OnProgress != nil {
		t.Error("Expected OnProgress to be nil")
	}
}

func TestNewTimeoutWriter(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), io.Discard, DefaultConfig())

	if tw == nil {
		t.Fatal("NewTimeoutWriter returned nil")
	}

	if tw.bytesWritten != 0 {
		t.Errorf("Expected bytesWritten=0, got %d", tw.bytesWritten)
	}

	if tw.closed {
		t.Error("Expected closed=false for new writer")
	}
}

func TestTimeoutWriterWrite(t *testing.T) {
	var buf bytes.Buffer
	tw := NewTimeoutWriter(context.Background(), &buf, DefaultConfig())
	defer tw.Close()

	n, err := tw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Expected 5 bytes written, got %d", n)
	}
	if buf.String() != "hello" {
		t.Errorf("Expected buffer 'hello', got %q", buf.String())
	}
}

func TestTimeoutWriterPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	tw := NewTimeoutWriter(context.Background(), &buf, Config{WriteTimeout: time.Second, ChunkSize: 3})

	var want bytes.Buffer
	for i := 0; i < 50; i++ {
		chunk := bytes.Repeat([]byte{byte(i)}, i%7+1)
		want.Write(chunk)
		if _, err := tw.Write(chunk); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	if !bytes.Equal(buf.Bytes(), want.Bytes()) {
		t.Error("Output bytes differ from input order")
	}
}

func TestTimeoutWriterChunkedWrites(t *testing.T) {
	rec := &recordingWriter{}
	tw := NewTimeoutWriter(context.Background(), rec, Config{WriteTimeout: time.Second, ChunkSize: 4})

	n, err := tw.Write([]byte("0123456789"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 10 {
		t.Errorf("Expected 10 bytes written, got %d", n)
	}

	want := []int{4, 4, 2}
	if len(rec.sizes) != len(want) {
		t.Fatalf("Expected %d underlying writes, got %d (%v)", len(want), len(rec.sizes), rec.sizes)
	}
	for i := range want {
		if rec.sizes[i] != want[i] {
			t.Errorf("Write %d: expected %d bytes, got %d", i, want[i], rec.sizes[i])
		}
	}
}

func TestTimeoutWriterTimeout(t *testing.T) {
	bw := &blockingWriter{release: make(chan struct{})}
	defer close(bw.release)

	tw := NewTimeoutWriter(context.Background(), bw, Config{WriteTimeout: 20 * time.Millisecond})

	_, err := tw.Write([]byte("stuck"))
	if !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("Expected ErrWriteTimeout, got %v", err)
	}

	// A timed-out writer refuses further writes.
	_, err = tw.Write([]byte("next"))
	if !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Expected ErrWriteTimeout after timeout, got %v", err)
	}
}

func TestTimeoutWriterNoTimeout(t *testing.T) {
	var buf bytes.Buffer
	tw := NewTimeoutWriter(context.Background(), &buf, Config{})

	if _, err := tw.Write([]byte("direct")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.String() != "direct" {
		t.Errorf("Expected 'direct', got %q", buf.String())
	}
}

func TestTimeoutWriterClose(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), io.Discard, DefaultConfig())

	if err := tw.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	_, err := tw.Write([]byte("after close"))
	if !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Expected ErrStreamCanceled after close, got %v", err)
	}

	if err := tw.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestTimeoutWriterContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tw := NewTimeoutWriter(ctx, io.Discard, DefaultConfig())

	cancel()

	_, err := tw.Write([]byte("test"))
	if !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Expected ErrStreamCanceled, got %v", err)
	}
}

func TestTimeoutWriterUnderlyingError(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), errWriter{}, DefaultConfig())

	_, err := tw.Write([]byte("x"))
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Expected io.ErrClosedPipe, got %v", err)
	}

	if bytes, _ := tw.Stats(); bytes != 0 {
		t.Errorf("Expected 0 bytes accounted, got %d", bytes)
	}
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestTimeoutWriterStats(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), io.Discard, DefaultConfig())
	before := tw.LastWrite()

	time.Sleep(5 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if _, err := tw.Write(make([]byte, 100)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	bytesWritten, duration := tw.Stats()
	if bytesWritten != 300 {
		t.Errorf("Expected 300 bytes, got %d", bytesWritten)
	}
	if duration <= 0 {
		t.Errorf("Expected positive duration, got %v", duration)
	}
	if !tw.LastWrite().After(before) {
		t.Error("Expected LastWrite to advance")
	}
}

func TestTimeoutWriterOnProgress(t *testing.T) {
	var calls []int64
	config := Config{
		WriteTimeout: time.Second,
		ChunkSize:    256 * 1024,
		OnProgress: func(bytesWritten int64, _ time.Duration) {
			calls = append(calls, bytesWritten)
		},
	}
	tw := NewTimeoutWriter(context.Background(), io.Discard, config)

	// 3 MiB in 256 KiB pieces crosses three MiB boundaries.
	if _, err := tw.Write(make([]byte, 3*1024*1024)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if len(calls) != 3 {
		t.Fatalf("Expected 3 progress callbacks, got %d (%v)", len(calls), calls)
	}
	if calls[2] != 3*1024*1024 {
		t.Errorf("Expected last callback at 3MiB, got %d", calls[2])
	}
}

func TestTimeoutWriterConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	tw := NewTimeoutWriter(context.Background(), &buf, DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tw.Write([]byte("0123456789"))
		}()
	}
	wg.Wait()

	if buf.Len() != 100 {
		t.Errorf("Expected 100 bytes, got %d", buf.Len())
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrWriteTimeout, ErrStreamCanceled) {
		t.Error("ErrWriteTimeout should not match ErrStreamCanceled")
	}
}

func BenchmarkTimeoutWriterWrite(b *testing.B) {
	tw := NewTimeoutWriter(context.Background(), io.Discard, DefaultConfig())
	data := make([]byte, 64*1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tw.Write(data)
	}
}
