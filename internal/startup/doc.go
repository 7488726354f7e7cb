// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - PORT: HTTP server port for the ingest socket and static client (default: 3000)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - PUBLIC_DIR: Directory of static files served at / (default: ./public)
//   - DATABASE_DIR: Directory holding relay.db, the session journal (default: ./data)
//   - FFMPEG_PATH: Encoder binary (default: ffmpeg)
//   - ENCODER_PROFILE: Optional YAML file overriding the encoding parameters
//   - STREAM_URL: RTMP ingestion base URL (default: rtmp://a.rtmp.youtube.com/live2)
//   - STREAM_KEY: Broadcast key appended to STREAM_URL (required)
//   - STREAM_KEY_FILE: File holding the broadcast key, takes precedence over STREAM_KEY
//   - MAX_CHUNK_BYTES: Largest accepted binary message (default: 8388608)
//   - WRITE_TIMEOUT: Longest a chunk may block on encoder input (default: 10s)
//   - INGEST_IDLE_TIMEOUT: Drop a client that sends nothing for this long (default: 60s, minimum 1s)
//   - SHUTDOWN_MODE: drain, detach or kill (default: drain)
//   - SHUTDOWN_GRACE: How long drain and kill wait for the encoder (default: 5s)
//   - INGEST_TOKEN_HASH: bcrypt hash of the ingest token, see streamctl hash-token
//   - ALLOWED_ORIGINS: Comma separated Origin allowlist for the socket, * for any
//   - MEMORY_LIMIT: Container memory limit in bytes, sets GOMEMLIMIT
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap (default: 0.5)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// The stream key is never logged; the banner and encoder logs print the
// destination with the key masked.
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Journal open timing and recovered rows
//   - [LogEncoderInit]: FFmpeg availability and encoding parameters
//   - [LogEncoderStarted]: Result of the first encoder launch
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownStepComplete], [LogShutdownComplete]
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	startup.LogEncoderInit(config)
//	args, logArgs := config.EncoderArgs()
package startup
