// Package main provides the entry point for the stream relay server.
//
// The relay accepts raw media chunks from a browser over a WebSocket and
// forwards them, in order, into a long-running ffmpeg process that encodes
// them to H.264/AAC and pushes the result to an RTMP ingestion endpoint.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads environment variables and validates directories
//  2. Database Initialization: Opens the SQLite session journal and closes rows
//     left open by a previous run
//  3. Encoder Start: Spawns ffmpeg once, before any client connects. A failed
//     spawn is logged and journaled; the server keeps running so the encoder
//     can be restarted through the API
//  4. Metrics Collector: Samples encoder CPU/RSS and host memory
//  5. HTTP Server Setup: Routes, logging and metrics middleware
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 3000):
//     - GET /socket: the ingest WebSocket, one active session at a time
//     - /health, /healthz, /livez, /readyz, /version
//     - /api/encoder, /api/encoder/restart, /api/sessions, /api/sessions/active,
//       /api/sessions/{id}
//     - Static client files from PUBLIC_DIR at /
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// When INGEST_TOKEN_HASH is set, /socket and /api require the token.
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests
//  2. Close active ingest sessions with 1001 (going away)
//  3. Stop the encoder according to SHUTDOWN_MODE: drain closes its input and
//     waits, detach leaves it running, kill terminates it after SHUTDOWN_GRACE
//  4. Stop metrics collector and metrics server
//  5. Close the database
//
// See package startup for the full list of environment variables.
package main
