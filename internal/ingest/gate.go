package ingest

import (
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned by Gate.Acquire while another session holds the gate.
var ErrBusy = errors.New("another ingest session is active")

// Gate admits a single active session.
type Gate struct {
	mu     sync.Mutex
	active string
	since  time.Time
}

// NewGate creates an open gate.
func NewGate() *Gate {
	return &Gate{}
}

// Acquire claims the gate for id.
func (g *Gate) Acquire(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active != "" {
		return ErrBusy
	}
	g.active = id
	g.since = time.Now()
	return nil
}

// Release frees the gate if id holds it and reports whether it did.
func (g *Gate) Release(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active != id || id == "" {
		return false
	}
	g.active = ""
	g.since = time.Time{}
	return true
}

// Active returns the holder of the gate and since when it has held it.
func (g *Gate) Active() (id string, since time.Time, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active, g.since, g.active != ""
}
