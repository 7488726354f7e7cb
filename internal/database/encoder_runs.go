package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RecordEncoderStart journals an encoder launch and returns the run id.
// args must already have secrets masked.
func (d *Database) RecordEncoderStart(ctx context.Context, pid int, args []string, startedAt time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_encoder_start", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx,
		"INSERT INTO encoder_runs (pid, args, started_at) VALUES (?, ?, ?)",
		pid, strings.Join(args, " "), startedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record encoder start: %w", err)
	}

	var id int64
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read encoder run id: %w", err)
	}
	return id, nil
}

// RecordEncoderExit records how an encoder run ended.
func (d *Database) RecordEncoderExit(ctx context.Context, id int64, exitedAt time.Time, exitCode int, errText string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_encoder_exit", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx,
		"UPDATE encoder_runs SET exited_at = ?, exit_code = ?, error = ? WHERE id = ?",
		exitedAt.UnixMilli(), exitCode, errText, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record encoder exit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return fmt.Errorf("encoder run %d: %w", id, err)
	}
	return nil
}

// ListEncoderRuns returns the most recent encoder runs, newest first.
func (d *Database) ListEncoderRuns(ctx context.Context, limit int) ([]EncoderRun, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_encoder_runs", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx,
		`SELECT id, pid, args, started_at, exited_at, exit_code, error
		 FROM encoder_runs ORDER BY id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list encoder runs: %w", err)
	}
	defer rows.Close()

	runs := []EncoderRun{}
	for rows.Next() {
		var r EncoderRun
		var startedAt int64
		var exitedAt, exitCode sql.NullInt64

		if err = rows.Scan(&r.ID, &r.PID, &r.Args, &startedAt, &exitedAt, &exitCode, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan encoder run: %w", err)
		}

		r.StartedAt = time.UnixMilli(startedAt)
		r.ExitedAt = nullableMillis(exitedAt)
		if exitCode.Valid {
			code := int(exitCode.Int64)
			r.ExitCode = &code
		}
		runs = append(runs, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list encoder runs: %w", err)
	}
	return runs, nil
}
