package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// MemorySessionRegistry is an in-memory implementation of the SessionRegistry interface
type MemorySessionRegistry struct {
	sessions map[string]core.Session
	mu       sync.RWMutex
}

// NewMemorySessionRegistry creates a new in-memory session registry
func NewMemorySessionRegistry() ports.SessionRegistry {
	return &MemorySessionRegistry{
		sessions: make(map[string]core.Session),
	}
}

// Put registers the session under its token
func (s *MemorySessionRegistry) Put(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Token] = *session
	return nil
}

// Get looks up a registered session
func (s *MemorySessionRegistry) Get(ctx context.Context, token string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, core.ErrSessionInvalid
	}

	return &session, nil
}

// Delete removes the session, if present
func (s *MemorySessionRegistry) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// Sweep evicts expired sessions
func (s *MemorySessionRegistry) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}

	return removed, nil
}
