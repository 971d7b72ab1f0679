package workflow

import (
	"context"
	"sync"
)

// Canceler is the slice of a protocol session the slot needs.
type Canceler interface {
	Cancel(ctx context.Context) error
}

// SessionSlot holds at most one live session reference: the one whose
// prompt is currently in flight. The slot is how external cancellation
// reaches the active step.
type SessionSlot struct {
	mu      sync.Mutex
	session Canceler
}

// Use runs fn with the session registered as active. The slot is cleared
// on every exit path, panics included.
func (s *SessionSlot) Use(session Canceler, fn func() error) error {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.session = nil
		s.mu.Unlock()
	}()

	return fn()
}

// Active reports whether a session is currently registered.
func (s *SessionSlot) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// CancelActive cancels the in-flight session's turn. Without an active
// session it is a no-op.
func (s *SessionSlot) CancelActive(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.Cancel(ctx)
}
