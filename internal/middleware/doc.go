// Package middleware provides HTTP middleware for the relay's server.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with ingest tokens redacted
//   - Prometheus request metrics with bounded path labels
//   - Configurable filtering for static files and health checks
//
// Both response wrappers implement http.Hijacker so the ingest WebSocket can
// upgrade through the chain.
package middleware
