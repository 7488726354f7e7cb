package main

import (
	"context"
	"sync"
	"time"

	"stream-relay/internal/logging"
	"stream-relay/internal/transcoder"
)

const journalTimeout = 5 * time.Second

// runRecorder is the part of the journal that tracks encoder runs.
type runRecorder interface {
	RecordEncoderStart(ctx context.Context, pid int, args []string, startedAt time.Time) (int64, error)
	RecordEncoderExit(ctx context.Context, id int64, exitedAt time.Time, exitCode int, errText string) error
}

// runJournal writes supervisor lifecycle events to the encoder_runs table.
type runJournal struct {
	db runRecorder

	mu   sync.Mutex
	rows map[int]int64 // supervisor run number -> row id
}

func newRunJournal(db runRecorder) *runJournal {
	return &runJournal{db: db, rows: make(map[int]int64)}
}

func (j *runJournal) EncoderStarted(st transcoder.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	id, err := j.db.RecordEncoderStart(ctx, st.PID, st.Args, st.StartedAt)
	if err != nil {
		logging.Warn("Failed to journal encoder start (pid %d): %v", st.PID, err)
		return
	}

	j.mu.Lock()
	j.rows[st.Run] = id
	j.mu.Unlock()
}

func (j *runJournal) EncoderExited(st transcoder.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	j.mu.Lock()
	id, ok := j.rows[st.Run]
	delete(j.rows, st.Run)
	j.mu.Unlock()

	if !ok {
		// Spawn failures never reach EncoderStarted
		var err error
		id, err = j.db.RecordEncoderStart(ctx, st.PID, st.Args, st.ExitedAt)
		if err != nil {
			logging.Warn("Failed to journal failed encoder start: %v", err)
			return
		}
	}

	if err := j.db.RecordEncoderExit(ctx, id, st.ExitedAt, st.ExitCode, st.Error); err != nil {
		logging.Warn("Failed to journal encoder exit (run %d): %v", st.Run, err)
	}
}
