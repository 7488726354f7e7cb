package database

import "time"

// Close reasons recorded for ingest sessions.
const (
	CloseReasonClient      = "client closed"
	CloseReasonReadError   = "read error"
	CloseReasonIdle        = "idle timeout"
	CloseReasonTooLarge    = "message too large"
	CloseReasonEncoderExit = "encoder exited"
	CloseReasonWriteError  = "encoder write failed"
	CloseReasonShutdown    = "server shutdown"
	CloseReasonInterrupted = "interrupted"
)

// Session is one accepted ingest connection.
type Session struct {
	ID          string     `json:"id"`
	RemoteAddr  string     `json:"remoteAddr"`
	UserAgent   string     `json:"userAgent"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	Chunks      int64      `json:"chunks"`
	Bytes       int64      `json:"bytes"`
	CloseReason string     `json:"closeReason,omitempty"`
}

// Duration returns how long the session lasted, or has lasted so far.
func (s Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return time.Since(s.StartedAt)
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// EncoderRun is one launch of the encoder process.
type EncoderRun struct {
	ID        int64      `json:"id"`
	PID       int        `json:"pid"`
	Args      string     `json:"args"`
	StartedAt time.Time  `json:"startedAt"`
	ExitedAt  *time.Time `json:"exitedAt,omitempty"`
	ExitCode  *int       `json:"exitCode,omitempty"`
	Error     string     `json:"error,omitempty"`
}
