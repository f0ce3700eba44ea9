package memory

import (
	"context"
	"sync"

	"quiz-session-service/internal/domain"
)

// StatsStore holds the lifetime aggregate in memory behind a mutex.
type StatsStore struct {
	mu    sync.Mutex
	stats domain.Statistics
}

func NewStatsStore() *StatsStore {
	return &StatsStore{}
}

func (s *StatsStore) Get(_ context.Context) (domain.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, nil
}

func (s *StatsStore) Apply(_ context.Context, score, totalQuestions int, accuracy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ApplyCompleted(score, totalQuestions, accuracy)
	return nil
}

func (s *StatsStore) Replace(_ context.Context, stats domain.Statistics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	return nil
}
