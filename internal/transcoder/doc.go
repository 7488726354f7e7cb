// Package transcoder supervises the long-running FFmpeg process that encodes
// the relayed stream and pushes it to the ingestion endpoint.
//
// A [Supervisor] owns exactly one encoder process at a time. It:
//   - Spawns the encoder with a fixed argument vector reading from stdin
//   - Serializes writes into the encoder input with a per-write timeout
//   - Tracks the process through the states stopped, starting, running and exited
//   - Notifies subscribers once when the process exits
//   - Keeps the last lines of encoder stderr for diagnostics
//
// The process is not bound to any request context, so it can outlive the
// caller that started it. Shutdown behavior is chosen with a [ShutdownMode].
package transcoder
