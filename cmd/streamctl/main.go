package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"stream-relay/internal/auth"
	"stream-relay/internal/database"

	"golang.org/x/term"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "./data"
	defaultListLimit   = 20
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "hash-token":
		if !hashToken(readSecret, os.Stdout, os.Stderr) {
			os.Exit(1)
		}
	case "sessions", "runs":
		limit, err := parseLimit(os.Args[2:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !withDatabase(ctx, func(db *database.Database) error {
			if command == "sessions" {
				return printSessions(ctx, db, limit, os.Stdout)
			}
			return printRuns(ctx, db, limit, os.Stdout)
		}) {
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for display.
// Any character that is not alphanumeric, a hyphen, or an underscore becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Stream Relay Control")
	fmt.Println("")
	fmt.Println("Usage: streamctl <command> [limit]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  hash-token  - Read an ingest token and print its bcrypt hash for INGEST_TOKEN_HASH")
	fmt.Println("  sessions    - List recent ingest sessions")
	fmt.Println("  runs        - List recent encoder runs")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func parseLimit(args []string) (int, error) {
	if len(args) == 0 {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", sanitizeCommand(args[0]))
	}
	return n, nil
}

func databasePath() string {
	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	return filepath.Join(databaseDir, "relay.db")
}

// withDatabase opens the journal, runs fn and closes it again.
func withDatabase(ctx context.Context, fn func(db *database.Database) error) bool {
	dbPath := databasePath()
	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", filepath.Dir(dbPath))
		return false
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	if err := fn(db); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	return true
}

// secretReader prompts for and reads one secret line.
type secretReader func(prompt string) ([]byte, error)

func readSecret(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	return secret, err
}

func hashToken(read secretReader, out, errOut io.Writer) bool {
	token, err := read("Ingest Token: ")
	if err != nil {
		fmt.Fprintf(errOut, "Error reading token: %v\n", err)
		return false
	}

	confirm, err := read("Confirm Token: ")
	if err != nil {
		fmt.Fprintf(errOut, "Error reading token: %v\n", err)
		return false
	}

	if !bytes.Equal(token, confirm) {
		fmt.Fprintln(errOut, "Error: Tokens do not match")
		return false
	}

	hash, err := auth.HashToken(string(token))
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return false
	}

	fmt.Fprintln(out, hash)
	return true
}

type sessionLister interface {
	ListSessions(ctx context.Context, limit int) ([]database.Session, error)
}

func printSessions(ctx context.Context, db sessionLister, limit int, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	sessions, err := db.ListSessions(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tCHUNKS\tBYTES\tREMOTE\tREASON")
	for _, s := range sessions {
		reason := s.CloseReason
		if s.EndedAt == nil {
			reason = "(active)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%d\t%s\t%s\n",
			s.ID,
			s.StartedAt.Local().Format(time.DateTime),
			s.Duration().Round(time.Second),
			s.Chunks,
			s.Bytes,
			s.RemoteAddr,
			reason,
		)
	}
	return tw.Flush()
}

type runLister interface {
	ListEncoderRuns(ctx context.Context, limit int) ([]database.EncoderRun, error)
}

func printRuns(ctx context.Context, db runLister, limit int, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	runs, err := db.ListEncoderRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list encoder runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No encoder runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPID\tSTARTED\tEXITED\tCODE\tERROR")
	for _, r := range runs {
		exited, code := "-", "-"
		if r.ExitedAt != nil {
			exited = r.ExitedAt.Local().Format(time.DateTime)
		}
		if r.ExitCode != nil {
			code = strconv.Itoa(*r.ExitCode)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.PID, r.StartedAt.Local().Format(time.DateTime), exited, code, r.Error)
	}
	return tw.Flush()
}
