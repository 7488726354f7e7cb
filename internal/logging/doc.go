// Package logging provides a simple leveled logging interface for the
// stream relay.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (per-chunk traces, encoder stderr)
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the DEBUG or LOG_LEVEL environment
// variables. Component loggers created with [With] prefix every line with
// their key/value context, e.g. "[session=3f2a...]".
package logging
