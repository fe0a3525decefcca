package session

import (
	"log/slog"
	"sync"
)

// Provider exposes the signed-in user. An empty id means nobody is signed in.
type Provider interface {
	CurrentUserID() string
}

// Session holds the current user id in memory.
type Session struct {
	mu     sync.RWMutex
	userID string
	logger *slog.Logger
}

var _ Provider = (*Session)(nil)

func New(logger *slog.Logger) *Session {
	return &Session{logger: logger}
}

func (s *Session) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) SignIn(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.logger.Info("session started", "user_id", userID)
}

func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != "" {
		s.logger.Info("session ended", "user_id", s.userID)
	}
	s.userID = ""
}

// Static is a fixed Provider, for daemons bound to one user.
type Static string

func (s Static) CurrentUserID() string { return string(s) }
