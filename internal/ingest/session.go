package ingest

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"stream-relay/internal/logging"
)

type session struct {
	id         string
	conn       *websocket.Conn
	log        *logging.Logger
	remoteAddr string
	userAgent  string
	startedAt  time.Time

	chunks atomic.Int64
	bytes  atomic.Int64

	closeOnce sync.Once
	reason    string
	done      chan struct{}
}

func newSession(id string, conn *websocket.Conn, r *http.Request) *session {
	return &session{
		id:         id,
		conn:       conn,
		log:        logging.With("session", id),
		remoteAddr: r.RemoteAddr,
		userAgent:  r.UserAgent(),
		startedAt:  time.Now(),
		done:       make(chan struct{}),
	}
}

func (s *session) add(n int) {
	s.chunks.Add(1)
	s.bytes.Add(int64(n))
}

func (s *session) totals() (chunks, bytes int64) {
	return s.chunks.Load(), s.bytes.Load()
}

// close sends a close frame and tears down the connection. Only the first
// call has any effect, and its reason is the one recorded.
func (s *session) close(code int, reason, text string) {
	s.closeOnce.Do(func() {
		s.reason = reason
		if code != websocket.CloseAbnormalClosure {
			msg := websocket.FormatCloseMessage(code, text)
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait))
		}
		_ = s.conn.Close()
	})
}

// closeReason must be called after close.
func (s *session) closeReason() string {
	s.closeOnce.Do(func() {})
	return s.reason
}

func (s *session) info() SessionInfo {
	chunks, bytes := s.totals()
	return SessionInfo{
		ID:         s.id,
		RemoteAddr: s.remoteAddr,
		UserAgent:  s.userAgent,
		StartedAt:  s.startedAt,
		Chunks:     chunks,
		Bytes:      bytes,
	}
}
