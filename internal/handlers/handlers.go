package handlers

import (
	"context"
	"time"

	"stream-relay/internal/database"
	"stream-relay/internal/ingest"
	"stream-relay/internal/transcoder"
)

// Supervisor is the encoder process control surface.
type Supervisor interface {
	Status() transcoder.Status
	StderrTail() []string
	Restart(ctx context.Context) error
}

// IngestState reports the session holding the ingest slot.
type IngestState interface {
	ActiveSession() (ingest.SessionInfo, bool)
}

// Journal reads session and encoder history.
type Journal interface {
	ListSessions(ctx context.Context, limit int) ([]database.Session, error)
	GetSession(ctx context.Context, id string) (*database.Session, error)
	ListEncoderRuns(ctx context.Context, limit int) ([]database.EncoderRun, error)
}

type Handlers struct {
	supervisor Supervisor
	ingest     IngestState
	journal    Journal
	startTime  time.Time
}

func New(sup Supervisor, ing IngestState, journal Journal) *Handlers {
	return &Handlers{
		supervisor: sup,
		ingest:     ing,
		journal:    journal,
		startTime:  time.Now(),
	}
}
