package stream

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
)

// Handler receives the session's push notifications. Implementations must
// read their own live state on every call; the subscriber never captures
// handler state at registration time.
type Handler interface {
	HandleChunk(text string)
	HandleEnd()
	HandleError(text string)
}

// subscribeConn is the subset of *nats.Conn the subscriber needs.
type subscribeConn interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Subscriber registers the chunk/end/error listeners for one session.
// At most one live listener set may exist per subscriber: a second Activate
// while the first registration is live is a no-op.
type Subscriber struct {
	conn      subscribeConn
	sessionID string
	handler   Handler

	mu     sync.Mutex
	active bool
	subs   []*nats.Subscription
}

func NewSubscriber(conn *nats.Conn, sessionID string, h Handler) *Subscriber {
	return &Subscriber{conn: conn, sessionID: sessionID, handler: h}
}

// Activate subscribes the three session subjects and returns a disposer.
// The guard flag is set before any subscribe call, so a re-entrant Activate
// observes it even if the first call has not finished subscribing yet.
func (s *Subscriber) Activate() (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		slog.Warn("subscriber already active, ignoring", "session", s.sessionID)
		return func() {}, nil
	}
	s.active = true

	for _, reg := range []struct {
		subject string
		cb      nats.MsgHandler
	}{
		{ChunkSubject(s.sessionID), func(m *nats.Msg) { s.handler.HandleChunk(string(m.Data)) }},
		{EndSubject(s.sessionID), func(m *nats.Msg) { s.handler.HandleEnd() }},
		{ErrorSubject(s.sessionID), func(m *nats.Msg) { s.handler.HandleError(string(m.Data)) }},
	} {
		sub, err := s.conn.Subscribe(reg.subject, reg.cb)
		if err != nil {
			s.teardownLocked()
			return nil, fmt.Errorf("subscribe %s: %w", reg.subject, err)
		}
		s.subs = append(s.subs, sub)
	}

	slog.Info("session listeners registered", "session", s.sessionID)
	return s.Deactivate, nil
}

// Deactivate releases all listeners. Safe to call multiple times.
func (s *Subscriber) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.teardownLocked()
	slog.Info("session listeners released", "session", s.sessionID)
}

func (s *Subscriber) teardownLocked() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("failed to unsubscribe", "session", s.sessionID, "error", err)
		}
	}
	s.subs = nil
	s.active = false
}
