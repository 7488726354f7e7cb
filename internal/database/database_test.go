package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB creates a journal in a temp directory.
func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	dbPath = filepath.Join(t.TempDir(), "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db, dbPath
}

func TestNewDatabase(t *testing.T) {
	db, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	if db.Path() != dbPath {
		t.Errorf("Expected Path()=%s, got %s", dbPath, db.Path())
	}

	if err := db.db.PingContext(context.Background()); err != nil {
		t.Errorf("Database ping failed: %v", err)
	}
}

func TestNewDatabaseReopen(t *testing.T) {
	db, dbPath := setupTestDB(t)
	ctx := context.Background()

	if err := db.StartSession(ctx, &Session{ID: "persisted"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.GetSession(ctx, "persisted"); err != nil {
		t.Errorf("Expected session to survive reopen: %v", err)
	}
}

func TestNewDatabaseInvalidPath(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	if err == nil {
		t.Error("Expected error for database in a missing directory")
	}
}

func TestSessionLifecycle(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	s := &Session{ID: "abc", RemoteAddr: "10.0.0.1:5000", UserAgent: "test-agent"}
	if err := db.StartSession(ctx, s); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if s.StartedAt.IsZero() {
		t.Error("Expected StartSession to fill StartedAt")
	}

	got, err := db.GetSession(ctx, "abc")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.EndedAt != nil {
		t.Error("Expected open session to have no EndedAt")
	}
	if got.RemoteAddr != "10.0.0.1:5000" || got.UserAgent != "test-agent" {
		t.Errorf("Unexpected session fields: %+v", got)
	}

	if err := db.EndSession(ctx, "abc", 12, 4096, CloseReasonClient); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	got, err = db.GetSession(ctx, "abc")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.EndedAt == nil {
		t.Fatal("Expected EndedAt after EndSession")
	}
	if got.Chunks != 12 || got.Bytes != 4096 {
		t.Errorf("Expected chunks=12 bytes=4096, got chunks=%d bytes=%d", got.Chunks, got.Bytes)
	}
	if got.CloseReason != CloseReasonClient {
		t.Errorf("Expected close reason %q, got %q", CloseReasonClient, got.CloseReason)
	}
	if got.Duration() < 0 {
		t.Errorf("Expected non-negative duration, got %v", got.Duration())
	}
}

func TestGetSessionNotFound(t *testing.T) {
	db, _ := setupTestDB(t)

	_, err := db.GetSession(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestEndSessionNotFound(t *testing.T) {
	db, _ := setupTestDB(t)

	err := db.EndSession(context.Background(), "nope", 0, 0, CloseReasonClient)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStartSessionDuplicateID(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if err := db.StartSession(ctx, &Session{ID: "dup"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := db.StartSession(ctx, &Session{ID: "dup"}); err == nil {
		t.Error("Expected duplicate session id to fail")
	}
}

func TestListSessions(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"first", "second", "third"} {
		s := &Session{ID: id, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.StartSession(ctx, s); err != nil {
			t.Fatalf("StartSession(%s) failed: %v", id, err)
		}
	}

	sessions, err := db.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "third" || sessions[1].ID != "second" {
		t.Errorf("Expected newest first, got %s, %s", sessions[0].ID, sessions[1].ID)
	}

	all, err := db.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 sessions with default limit, got %d", len(all))
	}
}

func TestListSessionsEmpty(t *testing.T) {
	db, _ := setupTestDB(t)

	sessions, err := db.ListSessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", sessions)
	}
}

func TestEncoderRuns(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	id, err := db.RecordEncoderStart(ctx, 4242, []string{"-i", "-", "-f", "flv", "rtmp://host/app/****"}, started)
	if err != nil {
		t.Fatalf("RecordEncoderStart failed: %v", err)
	}

	runs, err := db.ListEncoderRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListEncoderRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	if runs[0].ExitedAt != nil || runs[0].ExitCode != nil {
		t.Error("Expected open run to have no exit fields")
	}
	if runs[0].Args != "-i - -f flv rtmp://host/app/****" {
		t.Errorf("Unexpected args: %q", runs[0].Args)
	}

	if err := db.RecordEncoderExit(ctx, id, time.Now(), 1, "exit status 1: Connection refused"); err != nil {
		t.Fatalf("RecordEncoderExit failed: %v", err)
	}

	runs, err = db.ListEncoderRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListEncoderRuns failed: %v", err)
	}
	r := runs[0]
	if r.PID != 4242 {
		t.Errorf("Expected pid 4242, got %d", r.PID)
	}
	if r.ExitedAt == nil || r.ExitCode == nil || *r.ExitCode != 1 {
		t.Errorf("Expected exit code 1 recorded, got %+v", r)
	}
	if r.Error != "exit status 1: Connection refused" {
		t.Errorf("Unexpected error text: %q", r.Error)
	}
}

func TestRecordEncoderExitNotFound(t *testing.T) {
	db, _ := setupTestDB(t)

	err := db.RecordEncoderExit(context.Background(), 99, time.Now(), 0, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecoverUnfinished(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if err := db.StartSession(ctx, &Session{ID: "open"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := db.StartSession(ctx, &Session{ID: "closed"}); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := db.EndSession(ctx, "closed", 1, 1, CloseReasonClient); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if _, err := db.RecordEncoderStart(ctx, 1, nil, time.Now()); err != nil {
		t.Fatalf("RecordEncoderStart failed: %v", err)
	}

	sessions, runs, err := db.RecoverUnfinished(ctx)
	if err != nil {
		t.Fatalf("RecoverUnfinished failed: %v", err)
	}
	if sessions != 1 || runs != 1 {
		t.Errorf("Expected 1 session and 1 run recovered, got %d and %d", sessions, runs)
	}

	got, err := db.GetSession(ctx, "open")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.EndedAt == nil || got.CloseReason != CloseReasonInterrupted {
		t.Errorf("Expected interrupted session, got %+v", got)
	}

	closed, _ := db.GetSession(ctx, "closed")
	if closed.CloseReason != CloseReasonClient {
		t.Errorf("Expected closed session untouched, got %q", closed.CloseReason)
	}
}

func TestRecordQuery(t *testing.T) {
	// Should not panic for success, error or empty operation names.
	recordQuery("test_operation", time.Now(), nil)
	recordQuery("test_operation", time.Now(), errors.New("boom"))
	recordQuery("", time.Now(), nil)
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, maxListLimit},
		{-5, maxListLimit},
		{10, 10},
		{maxListLimit + 1, maxListLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
