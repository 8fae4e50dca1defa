package mcp

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// session tracks the in-flight requests of one connected client so
// that notifications/cancelled can abort them individually and a
// disconnect can abort them all
type session struct {
	id string

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func newSession() *session {
	return &session{
		id:       uuid.NewString(),
		inflight: make(map[string]context.CancelFunc),
	}
}

// track registers a cancel function under the request's correlation
// key. The caller must drop the key when the request completes.
func (s *session) track(key string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight[key] = cancel
}

func (s *session) drop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

// cancel aborts one in-flight request. It reports whether the key was
// known, so the transport can tell a live cancellation from a stale one.
func (s *session) cancel(key string) bool {
	s.mu.Lock()
	cancel, ok := s.inflight[key]
	delete(s.inflight, key)
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// abandonAll aborts every in-flight request, used on disconnect
func (s *session) abandonAll() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.inflight))
	for key, cancel := range s.inflight {
		cancels = append(cancels, cancel)
		delete(s.inflight, key)
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
