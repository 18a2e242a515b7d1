package iam

import (
	"errors"
	"sync"
	"time"

	"github.com/medrex/clinic-portal/pkg/rbac"
)

var (
	// ErrSessionNotFound is returned for unknown or logged-out sessions
	ErrSessionNotFound = errors.New("iam: session not found")
	// ErrTokenExpired is returned for sessions or access tokens past expiry
	ErrTokenExpired = errors.New("iam: token expired")
)

// Session is one authenticated login. Permissions are resolved once at login.
// ID is random and only ever leaves the server inside a signed access token.
// Token is the display token handed back by Login; it authenticates nothing.
type Session struct {
	ID          string               `json:"-"`
	Token       string               `json:"-"`
	UserID      string               `json:"user_id"`
	Email       string               `json:"email"`
	Role        rbac.Role            `json:"role"`
	Permissions rbac.UserPermissions `json:"permissions"`
	IssuedAt    time.Time            `json:"issued_at"`
	ExpiresAt   time.Time            `json:"expires_at"`
}

// SessionStore maps session ids to sessions
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Put stores session under its id, replacing any previous one
func (s *SessionStore) Put(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// Get returns the session for id, or ErrTokenExpired once now passes its
// expiry. Expired sessions are dropped.
func (s *SessionStore) Get(id string, now time.Time) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if !session.ExpiresAt.IsZero() && !now.Before(session.ExpiresAt) {
		s.Delete(id)
		return nil, ErrTokenExpired
	}
	return session, nil
}

// Delete removes the session for id and reports whether one existed
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
