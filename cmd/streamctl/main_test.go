package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stream-relay/internal/auth"
	"stream-relay/internal/database"
)

// =============================================================================
// Unit Tests
// =============================================================================

func TestPrintUsage(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("printUsage panicked: %v", r)
		}
	}()

	printUsage()
}

func TestSanitizeCommand(t *testing.T) {
	tests := map[string]string{
		"sessions":      "sessions",
		"hash-token":    "hash-token",
		"rm -rf /":      "rm_-rf__",
		"\x1b[31mred":   "__31mred",
		"line\nforging": "line_forging",
	}
	for in, want := range tests {
		if got := sanitizeCommand(in); got != want {
			t.Errorf("sanitizeCommand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLimit(t *testing.T) {
	if n, err := parseLimit(nil); err != nil || n != defaultListLimit {
		t.Errorf("Expected default limit, got %d, %v", n, err)
	}
	if n, err := parseLimit([]string{"5"}); err != nil || n != 5 {
		t.Errorf("Expected 5, got %d, %v", n, err)
	}
	for _, bad := range []string{"0", "-3", "ten"} {
		if _, err := parseLimit([]string{bad}); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestDatabasePath(t *testing.T) {
	t.Setenv("DATABASE_DIR", "/var/lib/relay")
	if got := databasePath(); got != filepath.Join("/var/lib/relay", "relay.db") {
		t.Errorf("Unexpected path %s", got)
	}

	t.Setenv("DATABASE_DIR", "")
	if got := databasePath(); got != filepath.Join(defaultDatabaseDir, "relay.db") {
		t.Errorf("Unexpected default path %s", got)
	}
}

// scriptedReader returns the given answers in order.
func scriptedReader(answers ...string) secretReader {
	return func(string) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no more input")
		}
		a := answers[0]
		answers = answers[1:]
		return []byte(a), nil
	}
}

func TestHashToken(t *testing.T) {
	const token = "a-long-enough-ingest-token"
	var out, errOut bytes.Buffer

	if !hashToken(scriptedReader(token, token), &out, &errOut) {
		t.Fatalf("hashToken failed: %s", errOut.String())
	}

	hash := strings.TrimSpace(out.String())
	v, err := auth.NewTokenVerifier(hash)
	if err != nil {
		t.Fatalf("Printed hash is not usable: %v", err)
	}
	if err := v.Verify(token); err != nil {
		t.Errorf("Printed hash does not verify the token: %v", err)
	}
}

func TestHashTokenMismatch(t *testing.T) {
	var out, errOut bytes.Buffer
	if hashToken(scriptedReader("a-long-enough-ingest-token", "a-different-ingest-token"), &out, &errOut) {
		t.Fatal("Expected mismatch to fail")
	}
	if !strings.Contains(errOut.String(), "do not match") {
		t.Errorf("Unexpected error output %q", errOut.String())
	}
	if out.Len() != 0 {
		t.Errorf("Nothing should be printed on failure, got %q", out.String())
	}
}

func TestHashTokenTooShort(t *testing.T) {
	var out, errOut bytes.Buffer
	if hashToken(scriptedReader("short", "short"), &out, &errOut) {
		t.Fatal("Expected short token to fail")
	}
}

func TestHashTokenReadError(t *testing.T) {
	var out, errOut bytes.Buffer
	if hashToken(scriptedReader(), &out, &errOut) {
		t.Fatal("Expected read error to fail")
	}
}

// =============================================================================
// Integration Tests
// =============================================================================

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close database: %v", err)
		}
	})
	return db
}

func TestPrintSessionsIntegration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := printSessions(ctx, db, 10, &out); err != nil {
		t.Fatalf("printSessions failed: %v", err)
	}
	if !strings.Contains(out.String(), "No sessions") {
		t.Errorf("Expected empty message, got %q", out.String())
	}

	started := time.Now().Add(-time.Minute)
	if err := db.StartSession(ctx, &database.Session{ID: "ended-session", RemoteAddr: "10.0.0.2:5000", StartedAt: started}); err != nil {
		t.Fatal(err)
	}
	if err := db.EndSession(ctx, "ended-session", 12, 3456, database.CloseReasonClient); err != nil {
		t.Fatal(err)
	}
	if err := db.StartSession(ctx, &database.Session{ID: "live-session", RemoteAddr: "10.0.0.3:5000", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := printSessions(ctx, db, 10, &out); err != nil {
		t.Fatalf("printSessions failed: %v", err)
	}
	text := out.String()
	for _, want := range []string{"ID", "ended-session", "3456", database.CloseReasonClient, "live-session", "(active)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
}

func TestPrintRunsIntegration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id, err := db.RecordEncoderStart(ctx, 4321, []string{"-i", "-"}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := db.RecordEncoderExit(ctx, id, time.Now(), 1, "exit status 1"); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := printRuns(ctx, db, 10, &out); err != nil {
		t.Fatalf("printRuns failed: %v", err)
	}
	text := out.String()
	for _, want := range []string{"PID", "4321", "exit status 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
}

type failingLister struct{}

func (failingLister) ListSessions(context.Context, int) ([]database.Session, error) {
	return nil, errors.New("database is locked")
}

func TestPrintSessionsError(t *testing.T) {
	var out bytes.Buffer
	if err := printSessions(context.Background(), failingLister{}, 5, &out); err == nil {
		t.Error("Expected error from failing lister")
	}
}
