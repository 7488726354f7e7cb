// Package handlers provides the HTTP operations endpoints of the relay.
//
// It includes handlers for:
//   - Health, liveness and readiness probes driven by the encoder state
//   - Encoder status with the stderr tail, and restart after an exit
//   - The session journal and the currently active ingest session
//   - Version information and the Prometheus metrics endpoint
//
// The ingest WebSocket itself is served by package ingest.
package handlers
