// Package database provides the SQLite session journal for the stream relay.
//
// It records:
//   - Ingest sessions (who connected, how much was forwarded, why it closed)
//   - Encoder runs (pid, redacted arguments, exit code and error)
//
// The database uses WAL mode so the journal can be read by the API and the
// streamctl tool while the relay writes to it.
package database
