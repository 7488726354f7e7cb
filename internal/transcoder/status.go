package transcoder

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of the encoder process.
type State string

// Encoder states.
const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateExited   State = "exited"
)

// gaugeValue maps a state onto the encoder_state metric.
func (s State) gaugeValue() float64 {
	switch s {
	case StateStarting:
		return 1
	case StateRunning:
		return 2
	case StateExited:
		return 3
	default:
		return 0
	}
}

// Status is a point-in-time snapshot of the supervisor.
type Status struct {
	State        State     `json:"state"`
	PID          int       `json:"pid,omitempty"`
	Run          int       `json:"run"`
	StartedAt    time.Time `json:"startedAt"`
	ExitedAt     time.Time `json:"exitedAt"`
	ExitCode     int       `json:"exitCode"`
	Error        string    `json:"error,omitempty"`
	Restarts     int       `json:"restarts"`
	BytesWritten int64     `json:"bytesWritten"`
	LastInputAt  time.Time `json:"lastInputAt"`
	Args         []string  `json:"args"`
}

// Running reports whether the encoder is accepting input.
func (s Status) Running() bool {
	return s.State == StateRunning
}

// Uptime returns how long the current run has been alive, or how long the
// last run lived when it has exited.
func (s Status) Uptime() time.Duration {
	switch {
	case s.StartedAt.IsZero():
		return 0
	case s.State == StateExited && !s.ExitedAt.IsZero():
		return s.ExitedAt.Sub(s.StartedAt)
	default:
		return time.Since(s.StartedAt)
	}
}

// ShutdownMode selects what Shutdown does with a live encoder.
type ShutdownMode string

// Shutdown modes.
const (
	// ShutdownDrain closes the encoder input and waits for the process to
	// exit on its own. The process is never killed.
	ShutdownDrain ShutdownMode = "drain"
	// ShutdownDetach leaves the process untouched.
	ShutdownDetach ShutdownMode = "detach"
	// ShutdownKill closes the input, waits for the grace period and then
	// kills the process.
	ShutdownKill ShutdownMode = "kill"
)

// ParseShutdownMode parses a mode name. An empty string selects ShutdownDrain.
func ParseShutdownMode(s string) (ShutdownMode, error) {
	switch ShutdownMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ShutdownDrain:
		return ShutdownDrain, nil
	case ShutdownDetach:
		return ShutdownDetach, nil
	case ShutdownKill:
		return ShutdownKill, nil
	default:
		return "", fmt.Errorf("unknown shutdown mode %q (want drain, detach or kill)", s)
	}
}
