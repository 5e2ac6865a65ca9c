package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"notifykit/core"
	"notifykit/realtime"
)

const (
	defaultSendBuffer   = 256
	defaultWriteTimeout = 5 * time.Second
)

// Option configures the handler.
type Option func(*options)

type options struct {
	sendBuffer   int
	writeTimeout time.Duration
}

// WithSendBuffer sets the per-connection outbound buffer. A full buffer makes
// pushes to that connection fail (counted as undelivered), it never blocks
// the dispatcher.
func WithSendBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds each WebSocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

var connSeq int64

// Handler returns an http.Handler that upgrades to WebSocket and registers
// the connection as a live session for the caller's identity. The identity
// arrives already verified by the authentication collaborator, via the
// X-Identity header or an identity query parameter; it is trusted here.
func Handler(registry *realtime.Registry, opts ...Option) http.Handler {
	o := options{sendBuffer: defaultSendBuffer, writeTimeout: defaultWriteTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Identity")
		if raw == "" {
			raw = r.URL.Query().Get("identity")
		}
		identity, err := core.NormalizeIdentity(core.Identity(raw))
		if err != nil {
			http.Error(w, "identity required", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		connID := core.ConnectionID(fmt.Sprintf("%s/%d", identity, atomic.AddInt64(&connSeq, 1)))
		sess := newSession(conn, o.sendBuffer, o.writeTimeout)
		if err := registry.Register(identity, connID, sess); err != nil {
			if !errors.Is(err, core.ErrAlreadyRegistered) {
				return
			}
			// duplicate registration is treated as success
			slog.Warn("duplicate session registration", "identity", identity, "conn", connID)
		}
		defer registry.Unregister(connID)
		defer sess.close()

		go sess.writePump()

		// The read loop exists to detect disconnects; inbound frames carry
		// no protocol of their own.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// session implements realtime.Sink over one WebSocket connection.
type session struct {
	conn         *gorillaws.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func newSession(conn *gorillaws.Conn, buffer int, writeTimeout time.Duration) *session {
	return &session{
		conn:         conn,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

func (s *session) Push(ctx context.Context, data []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return errors.New("session closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) writePump() {
	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(gorillaws.TextMessage, data); err != nil {
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
