// Package subscriptions provides scoped ownership of store subscriptions.
// Every active screen or session owns a Scope; tearing the scope down
// releases every subscription it acquired, so nothing keeps streaming into
// a context that no longer exists.
package subscriptions

import "sync"

// Scope collects unsubscribe handles and releases them together.
type Scope struct {
	mu     sync.Mutex
	subs   []func()
	closed bool
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Add registers an unsubscribe handle. If the scope is already closed the
// handle is released immediately.
func (s *Scope) Add(unsubscribe func()) {
	if unsubscribe == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.subs = append(s.subs, unsubscribe)
	s.mu.Unlock()
}

// Close releases every handle in reverse acquisition order. Idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for i := len(subs) - 1; i >= 0; i-- {
		subs[i]()
	}
}

// Active returns the number of held subscriptions.
func (s *Scope) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
