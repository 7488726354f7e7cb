package ingest

import (
	"errors"
	"sync"
	"testing"
)

func TestGateSingleHolder(t *testing.T) {
	g := NewGate()

	if _, _, ok := g.Active(); ok {
		t.Fatal("Expected new gate to be open")
	}

	if err := g.Acquire("a"); err != nil {
		t.Fatalf("Acquire(a) failed: %v", err)
	}
	if err := g.Acquire("b"); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	id, since, ok := g.Active()
	if !ok || id != "a" || since.IsZero() {
		t.Errorf("Expected a to hold the gate, got id=%q ok=%v", id, ok)
	}

	if g.Release("b") {
		t.Error("Release by a non-holder should be a no-op")
	}
	if !g.Release("a") {
		t.Error("Expected Release(a) to succeed")
	}
	if g.Release("a") {
		t.Error("Second Release should report false")
	}

	if err := g.Acquire("b"); err != nil {
		t.Errorf("Expected gate to reopen, got %v", err)
	}
}

func TestGateConcurrentAcquire(t *testing.T) {
	g := NewGate()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if g.Acquire(string(rune('a'+id%26))+string(rune('0'+id/26))) == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("Expected exactly one winner, got %d", winners)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := decodeEnvelope([]byte(`{"event":"binarystream"}`))
	if err != nil {
		t.Fatalf("decodeEnvelope failed: %v", err)
	}
	if env.Event != EventBinaryStream {
		t.Errorf("Expected %q, got %q", EventBinaryStream, env.Event)
	}

	if _, err := decodeEnvelope([]byte(`{}`)); err == nil {
		t.Error("Expected error for envelope without event")
	}
	if _, err := decodeEnvelope([]byte(`nope`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
