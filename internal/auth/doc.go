// Package auth verifies the shared ingest token presented by broadcasting
// clients. Only a bcrypt hash of the token is configured on the server.
package auth
