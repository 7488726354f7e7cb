// Command streamctl is the operator CLI for the stream relay.
//
// Usage:
//
//	streamctl <command> [limit]
//
// Commands:
//
//	hash-token  Read an ingest token twice from the terminal and print its
//	            bcrypt hash. Set the output as INGEST_TOKEN_HASH on the
//	            relay; clients then present the token as ?token= on /socket.
//
//	sessions    Print the most recent ingest sessions from the journal.
//
//	runs        Print the most recent encoder runs with exit codes.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: ./data)
package main
