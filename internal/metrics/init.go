package metrics

// Session admission results.
const (
	ResultAccepted      = "accepted"
	ResultBusy          = "busy"
	ResultUnavailable   = "unavailable"
	ResultUnauthorized  = "unauthorized"
	ResultUpgradeFailed = "upgrade_failed"
)

// Encoder exit reasons.
const (
	ExitClean       = "clean"
	ExitError       = "error"
	ExitSignal      = "signal"
	ExitSpawnFailed = "spawn_failed"
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, r := range []string{ResultAccepted, ResultBusy, ResultUnavailable, ResultUnauthorized, ResultUpgradeFailed} {
		SessionsTotal.WithLabelValues(r)
	}

	for _, r := range []string{"empty", "text"} {
		ChunksDroppedTotal.WithLabelValues(r)
	}

	for _, r := range []string{ExitClean, ExitError, ExitSignal, ExitSpawnFailed} {
		EncoderExitsTotal.WithLabelValues(r)
	}

	for _, op := range []string{"initialize_schema", "start_session", "end_session", "list_sessions",
		"get_session", "record_encoder_start", "record_encoder_exit", "list_encoder_runs", "recover_unfinished"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
