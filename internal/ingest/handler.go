package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stream-relay/internal/auth"
	"stream-relay/internal/database"
	"stream-relay/internal/logging"
	"stream-relay/internal/metrics"
	"stream-relay/internal/streaming"
	"stream-relay/internal/transcoder"
)

// Encoder is the sink sessions forward chunks into.
type Encoder interface {
	Running() bool
	Write(p []byte) (int, error)
	Subscribe() (<-chan transcoder.Status, func())
}

// Journal records session lifecycles.
type Journal interface {
	StartSession(ctx context.Context, s *database.Session) error
	EndSession(ctx context.Context, id string, chunks, bytes int64, reason string) error
}

// Config configures the ingest handler.
type Config struct {
	// MaxChunkBytes bounds a single message. Larger messages close the session.
	MaxChunkBytes int64
	// IdleTimeout closes a session that sends nothing, not even a pong, for this long.
	IdleTimeout time.Duration
	// AllowedOrigins lists accepted Origin values. Empty allows same-origin
	// requests only; "*" allows any origin.
	AllowedOrigins []string
	// Verifier checks the ingest token. May be nil.
	Verifier *auth.TokenVerifier
	// Pressure refuses new sessions while it reports Paused. May be nil.
	Pressure Pressure
}

// Pressure reports memory pressure.
type Pressure interface {
	Paused() bool
}

const (
	defaultMaxChunkBytes = 8 << 20
	defaultIdleTimeout   = 60 * time.Second
	controlWriteWait     = time.Second
	minPingInterval      = 10 * time.Millisecond
)

// SessionInfo describes the active session.
type SessionInfo struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remoteAddr"`
	UserAgent  string    `json:"userAgent"`
	StartedAt  time.Time `json:"startedAt"`
	Chunks     int64     `json:"chunks"`
	Bytes      int64     `json:"bytes"`
}

// Handler serves the ingest WebSocket endpoint.
type Handler struct {
	encoder  Encoder
	journal  Journal
	gate     *Gate
	cfg      Config
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
	closing  bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewHandler creates an ingest handler. journal may be nil.
func NewHandler(enc Encoder, journal Journal, cfg Config) *Handler {
	if cfg.MaxChunkBytes <= 0 {
		cfg.MaxChunkBytes = defaultMaxChunkBytes
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}

	h := &Handler{
		encoder:  enc,
		journal:  journal,
		gate:     NewGate(),
		cfg:      cfg,
		sessions: make(map[string]*session),
		shutdown: make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 4 * 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.cfg.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP admits the client, upgrades the connection and relays its
// binary messages until the session ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.cfg.Verifier.VerifyRequest(r); err != nil {
		metrics.SessionsTotal.WithLabelValues(metrics.ResultUnauthorized).Inc()
		logging.Warn("Rejected ingest connection from %s: %v", r.RemoteAddr, err)
		writeError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	if !h.encoder.Running() {
		metrics.SessionsTotal.WithLabelValues(metrics.ResultUnavailable).Inc()
		logging.Warn("Rejected ingest connection from %s: encoder not running", r.RemoteAddr)
		writeError(w, http.StatusServiceUnavailable, "encoder is not running")
		return
	}

	if h.cfg.Pressure != nil && h.cfg.Pressure.Paused() {
		metrics.SessionsTotal.WithLabelValues(metrics.ResultUnavailable).Inc()
		logging.Warn("Rejected ingest connection from %s: memory pressure", r.RemoteAddr)
		writeError(w, http.StatusServiceUnavailable, "server is under memory pressure")
		return
	}

	id := uuid.NewString()
	if err := h.gate.Acquire(id); err != nil {
		metrics.SessionsTotal.WithLabelValues(metrics.ResultBusy).Inc()
		active, _, _ := h.gate.Active()
		logging.Warn("Rejected ingest connection from %s: session %s is active", r.RemoteAddr, active)
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		h.gate.Release(id)
		metrics.SessionsTotal.WithLabelValues(metrics.ResultUnavailable).Inc()
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.gate.Release(id)
		metrics.SessionsTotal.WithLabelValues(metrics.ResultUpgradeFailed).Inc()
		logging.Warn("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	metrics.SessionsTotal.WithLabelValues(metrics.ResultAccepted).Inc()

	s := newSession(id, conn, r)

	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
		h.gate.Release(id)
	}()

	h.run(s)
}

// ActiveSession returns the session currently holding the gate.
func (h *Handler) ActiveSession() (SessionInfo, bool) {
	id, _, ok := h.gate.Active()
	if !ok {
		return SessionInfo{}, false
	}

	h.mu.Lock()
	s, found := h.sessions[id]
	h.mu.Unlock()
	if !found {
		return SessionInfo{}, false
	}
	return s.info(), true
}

// Shutdown closes every active session with 1001 and waits for the session
// goroutines to finish. New connections are refused from the first call.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if !h.closing {
		h.closing = true
		close(h.shutdown)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run relays messages until the session ends.
func (h *Handler) run(s *session) {
	logging.Info("Socket connected %s", s.id)
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	if h.journal != nil {
		rec := &database.Session{ID: s.id, RemoteAddr: s.remoteAddr, UserAgent: s.userAgent, StartedAt: s.startedAt}
		if err := h.journal.StartSession(context.Background(), rec); err != nil {
			s.log.Error("Failed to journal session start: %v", err)
		}
	}

	exitCh, unsubscribe := h.encoder.Subscribe()
	defer unsubscribe()

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		h.watch(s, exitCh)
	}()

	h.readLoop(s)

	close(s.done)
	<-watcherDone

	chunks, bytes := s.totals()
	reason := s.closeReason()
	s.log.Info("Socket disconnected %s: %s (chunks=%d bytes=%d duration=%v)",
		s.id, reason, chunks, bytes, time.Since(s.startedAt).Round(time.Millisecond))

	if h.journal != nil {
		if err := h.journal.EndSession(context.Background(), s.id, chunks, bytes, reason); err != nil {
			s.log.Error("Failed to journal session end: %v", err)
		}
	}
}

// watch closes the session when the encoder exits or the server shuts down,
// and keeps the connection alive with pings.
func (h *Handler) watch(s *session, exitCh <-chan transcoder.Status) {
	ticker := time.NewTicker(pingInterval(h.cfg.IdleTimeout))
	defer ticker.Stop()

	for {
		select {
		case st, ok := <-exitCh:
			if !ok {
				exitCh = nil
				continue
			}
			s.log.Warn("Encoder exited with code %d, closing session", st.ExitCode)
			s.close(websocket.CloseInternalServerErr, database.CloseReasonEncoderExit, "encoder exited")
			return
		case <-h.shutdown:
			s.close(websocket.CloseGoingAway, database.CloseReasonShutdown, "server shutdown")
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteWait)); err != nil {
				s.log.Debug("Ping failed: %v", err)
			}
		case <-s.done:
			return
		}
	}
}

// pingInterval sends two pings per idle period.
func pingInterval(idle time.Duration) time.Duration {
	return max(idle/2, minPingInterval)
}

func (h *Handler) readLoop(s *session) {
	s.conn.SetReadLimit(h.cfg.MaxChunkBytes)
	extend := func() {
		_ = s.conn.SetReadDeadline(time.Now().Add(h.cfg.IdleTimeout))
	}
	extend()
	s.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			code, reason := classifyReadError(err)
			if reason == database.CloseReasonReadError {
				s.log.Warn("Read failed: %v", err)
			}
			s.close(code, reason, "")
			return
		}
		extend()

		switch msgType {
		case websocket.BinaryMessage:
			if !h.forward(s, data) {
				return
			}
		case websocket.TextMessage:
			h.handleControl(s, data)
		}
	}
}

// forward writes one binarystream payload to the encoder. It returns false
// when the session must end.
func (h *Handler) forward(s *session, data []byte) bool {
	if len(data) == 0 {
		metrics.ChunksDroppedTotal.WithLabelValues("empty").Inc()
		s.log.Debug("Dropped empty binarystream payload")
		return true
	}

	s.log.Debug("Binary stream incoming (%d bytes)", len(data))

	start := time.Now()
	if _, err := h.encoder.Write(data); err != nil {
		reason := database.CloseReasonWriteError
		if encoderGone(err) || !h.encoder.Running() {
			reason = database.CloseReasonEncoderExit
		}
		s.log.Error("Failed to forward chunk: %v", err)
		s.close(websocket.CloseInternalServerErr, reason, "encoder unavailable")
		return false
	}

	metrics.ChunkWriteDuration.Observe(time.Since(start).Seconds())
	metrics.ChunksTotal.Inc()
	metrics.ChunkBytesTotal.Add(float64(len(data)))
	metrics.ChunkSizeBytes.Observe(float64(len(data)))
	s.add(len(data))
	return true
}

// encoderGone reports whether a write failed because the encoder input was
// closed underneath it.
func encoderGone(err error) bool {
	return errors.Is(err, transcoder.ErrNotRunning) ||
		errors.Is(err, streaming.ErrStreamCanceled) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrClosed)
}

func (h *Handler) handleControl(s *session, data []byte) {
	metrics.ChunksDroppedTotal.WithLabelValues("text").Inc()

	env, err := decodeEnvelope(data)
	if err != nil {
		s.log.Debug("Ignoring text message: %v", err)
		return
	}
	if env.Event == EventBinaryStream {
		s.log.Warn("Ignoring %s sent as text, media must be sent as binary messages", EventBinaryStream)
		return
	}
	s.log.Debug("Ignoring %q event", env.Event)
}

func classifyReadError(err error) (code int, reason string) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		return websocket.CloseMessageTooBig, database.CloseReasonTooLarge
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return websocket.CloseNormalClosure, database.CloseReasonClient
	case isTimeout(err):
		return websocket.CloseGoingAway, database.CloseReasonIdle
	default:
		return websocket.CloseAbnormalClosure, database.CloseReasonReadError
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
