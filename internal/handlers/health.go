package handlers

import (
	"net/http"
	"runtime"
	"time"

	"stream-relay/internal/startup"
	"stream-relay/internal/transcoder"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Encoder
	EncoderState    transcoder.State `json:"encoderState"`
	EncoderPID      int              `json:"encoderPid,omitempty"`
	EncoderRestarts int              `json:"encoderRestarts"`
	EncoderError    string           `json:"encoderError,omitempty"`

	// Ingest
	SessionActive bool   `json:"sessionActive"`
	SessionID     string `json:"sessionId,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	st := h.supervisor.Status()

	response := HealthResponse{
		Ready:           st.Running(),
		Version:         startup.Version,
		Uptime:          time.Since(h.startTime).Round(time.Second).String(),
		EncoderState:    st.State,
		EncoderPID:      st.PID,
		EncoderRestarts: st.Restarts,
		EncoderError:    st.Error,
		GoVersion:       runtime.Version(),
		NumCPU:          runtime.NumCPU(),
		NumGoroutine:    runtime.NumGoroutine(),
	}

	switch st.State {
	case transcoder.StateRunning:
		response.Status = statusHealthy
	case transcoder.StateExited:
		response.Status = statusDegraded
	default:
		response.Status = statusStarting
	}

	if info, ok := h.ingest.ActiveSession(); ok {
		response.SessionActive = true
		response.SessionID = info.ID
	}

	w.Header().Set("Content-Type", "application/json")

	// An exited encoder cannot accept a broadcast
	if !response.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the encoder can accept a broadcast
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.supervisor.Status().Running() {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}
