// Session-level types shared between the connection handler and the
// services.
package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// UserInfo is the resolved identity attached to a connection.
type UserInfo struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// SessionState is the per-connection state owned by the session manager and
// passed into the prompt orchestrator. Identity, once resolved, is only ever
// replaced wholesale by a re-authenticate, never merged.
type SessionState struct {
	ID        string
	CreatedAt time.Time

	mu   sync.Mutex
	user *UserInfo
	busy bool
}

// NewSessionState creates state for a freshly opened connection.
func NewSessionState() *SessionState {
	return &SessionState{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
}

// User returns the connection's identity, or nil for a guest.
func (s *SessionState) User() *UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetUser replaces the connection's identity.
func (s *SessionState) SetUser(u *UserInfo) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// TryBeginPrompt marks a prompt in flight. It reports false when another
// prompt on this connection has not reached its done event yet.
func (s *SessionState) TryBeginPrompt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

// EndPrompt clears the in-flight marker.
func (s *SessionState) EndPrompt() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}
