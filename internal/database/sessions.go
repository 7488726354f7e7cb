package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const maxListLimit = 1000

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// StartSession journals a newly accepted ingest session.
func (d *Database) StartSession(ctx context.Context, s *Session) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("start_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO ingest_sessions (id, remote_addr, user_agent, started_at)
		 VALUES (?, ?, ?, ?)`,
		s.ID, s.RemoteAddr, s.UserAgent, s.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to start session %s: %w", s.ID, err)
	}
	return nil
}

// EndSession records the totals and close reason of a session.
func (d *Database) EndSession(ctx context.Context, id string, chunks, bytes int64, reason string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("end_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx,
		`UPDATE ingest_sessions
		 SET ended_at = ?, chunks = ?, bytes = ?, close_reason = ?
		 WHERE id = ?`,
		time.Now().UnixMilli(), chunks, bytes, reason, id,
	)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return fmt.Errorf("session %s: %w", id, err)
	}
	return nil
}

// GetSession returns a single session by id.
func (d *Database) GetSession(ctx context.Context, id string) (*Session, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_session", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx,
		`SELECT id, remote_addr, user_agent, started_at, ended_at, chunks, bytes, close_reason
		 FROM ingest_sessions WHERE id = ?`, id)

	var s *Session
	s, err = scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return s, nil
}

// ListSessions returns the most recent sessions, newest first.
func (d *Database) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_sessions", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx,
		`SELECT id, remote_addr, user_agent, started_at, ended_at, chunks, bytes, close_reason
		 FROM ingest_sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s *Session
		if s, err = scanSession(rows); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	var s Session
	var startedAt int64
	var endedAt sql.NullInt64

	if err := r.Scan(&s.ID, &s.RemoteAddr, &s.UserAgent, &startedAt, &endedAt,
		&s.Chunks, &s.Bytes, &s.CloseReason); err != nil {
		return nil, err
	}

	s.StartedAt = time.UnixMilli(startedAt)
	s.EndedAt = nullableMillis(endedAt)
	return &s, nil
}
