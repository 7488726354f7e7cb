/*
Package ingest accepts live media from browsers over WebSocket and forwards it
to the encoder.

# Protocol

A client opens GET /socket (optionally with ?token=...). Every binary message
is one "binarystream" event and its payload is written, unchanged and in
arrival order, to the encoder input. Text messages are JSON control envelopes
of the form {"event":"name"}; they are logged and otherwise ignored.

# Admission

Only one session may forward at a time because the encoder has a single
input. Before the upgrade the handler checks, in order:

  - the ingest token (401 when it does not verify)
  - that the encoder is running (503)
  - that memory is not under pressure (503)
  - that no other session is active (409)

# Session end

A session ends when the client closes, a read fails, a message exceeds the
size limit (close 1009), the client stays silent past the idle timeout, the
encoder exits (close 1011 "encoder exited") or the server shuts down
(close 1001). Every session is journaled with its chunk and byte totals.
*/
package ingest
