package handlers

import (
	"errors"
	"net/http"

	"stream-relay/internal/database"
	"stream-relay/internal/logging"
	"stream-relay/internal/transcoder"
)

const recentRunsLimit = 10

// EncoderStatusResponse is the body of GET /api/encoder.
type EncoderStatusResponse struct {
	transcoder.Status
	Uptime     string                `json:"uptime"`
	StderrTail []string              `json:"stderrTail"`
	RecentRuns []database.EncoderRun `json:"recentRuns,omitempty"`
}

// GetEncoderStatus returns the supervisor snapshot, the tail of the
// encoder's stderr and the most recent runs from the journal.
func (h *Handlers) GetEncoderStatus(w http.ResponseWriter, r *http.Request) {
	st := h.supervisor.Status()

	response := EncoderStatusResponse{
		Status:     st,
		Uptime:     st.Uptime().String(),
		StderrTail: h.supervisor.StderrTail(),
	}
	if response.StderrTail == nil {
		response.StderrTail = []string{}
	}

	if h.journal != nil {
		runs, err := h.journal.ListEncoderRuns(r.Context(), recentRunsLimit)
		if err != nil {
			logging.Warn("Failed to list encoder runs: %v", err)
		} else {
			response.RecentRuns = runs
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, response)
}

// RestartEncoder launches a new encoder after the previous one exited.
func (h *Handlers) RestartEncoder(w http.ResponseWriter, r *http.Request) {
	err := h.supervisor.Restart(r.Context())
	switch {
	case errors.Is(err, transcoder.ErrAlreadyRunning):
		writeJSONError(w, "encoder is already running", http.StatusConflict)
		return
	case err != nil:
		logging.Error("Encoder restart failed: %v", err)
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	st := h.supervisor.Status()
	logging.Info("Encoder restarted via API (pid %d, run %d)", st.PID, st.Run)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, st)
}
