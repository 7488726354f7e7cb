package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"stream-relay/internal/database"
	"stream-relay/internal/logging"
)

const defaultSessionsLimit = 50

// ListSessions returns journaled ingest sessions, newest first.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if h.journal == nil {
		writeJSONError(w, "session journal unavailable", http.StatusServiceUnavailable)
		return
	}

	sessions, err := h.journal.ListSessions(r.Context(), limit)
	if err != nil {
		writeJSONError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, sessions)
}

// GetActiveSession returns the live ingest session, or 404 when the slot
// is free.
func (h *Handlers) GetActiveSession(w http.ResponseWriter, _ *http.Request) {
	info, ok := h.ingest.ActiveSession()
	if !ok {
		writeJSONError(w, "no active session", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, info)
}

// GetSession returns one journaled session by id.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeJSONError(w, "session id is required", http.StatusBadRequest)
		return
	}

	if h.journal == nil {
		writeJSONError(w, "session journal unavailable", http.StatusServiceUnavailable)
		return
	}

	session, err := h.journal.GetSession(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to get session %s: %v", id, err)
		writeJSONError(w, "failed to get session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, session)
}
