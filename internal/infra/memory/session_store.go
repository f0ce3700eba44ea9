package memory

import (
	"context"
	"sync"

	"quiz-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore.
// Sessions are copied on the way in and out so callers never share
// mutable state with the store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
	}
}

func (s *SessionStore) Save(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func cloneSession(session *domain.Session) *domain.Session {
	clone := *session
	clone.Questions = make([]domain.Question, len(session.Questions))
	copy(clone.Questions, session.Questions)
	clone.Answers = make([]domain.AnswerRecord, len(session.Answers))
	copy(clone.Answers, session.Answers)
	if session.CompletedAt != nil {
		completed := *session.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}
