// Package auth holds the user session the rest of the application checks
// before talking to the backend.
package auth

import (
	"sync"
	"time"

	"github.com/tphakala/cyanwatch/internal/logger"
)

// LogoutListener is notified when a session is forcibly ended.
type LogoutListener func(reason string)

// Session is a bearer-token session with an optional expiry. Safe for
// concurrent use.
type Session struct {
	mu        sync.RWMutex
	token     string
	username  string
	expiresAt time.Time
	now       func() time.Time
	listeners []LogoutListener
}

// NewSession creates a session. A zero expiresAt never expires.
func NewSession(token, username string, expiresAt time.Time) *Session {
	return &Session{
		token:     token,
		username:  username,
		expiresAt: expiresAt,
		now:       time.Now,
	}
}

// IsAuthorized reports whether the session holds an unexpired token.
func (s *Session) IsAuthorized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	return s.expiresAt.IsZero() || s.now().Before(s.expiresAt)
}

// ForceLogout clears the token and notifies listeners.
func (s *Session) ForceLogout(reason string) {
	s.mu.Lock()
	wasActive := s.token != ""
	s.token = ""
	listeners := append([]LogoutListener(nil), s.listeners...)
	s.mu.Unlock()

	if wasActive {
		GetLogger().Warn("session logged out",
			logger.String("username", s.Username()),
			logger.String("reason", reason))
	}
	for _, l := range listeners {
		l(reason)
	}
}

// OnLogout registers a listener for forced logouts.
func (s *Session) OnLogout(l LogoutListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Token returns the bearer token, empty after logout.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Username returns the owner stamped onto enriched locations.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// GetLogger returns the auth module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("auth")
}
