package app

import (
	"context"
	"sync"

	"quiz-session-service/internal/domain"
)

// StatsStore persists the lifetime aggregate (in-memory, Redis, etc).
type StatsStore interface {
	Get(ctx context.Context) (domain.Statistics, error)
	Apply(ctx context.Context, score, totalQuestions int, accuracy float64) error
	Replace(ctx context.Context, stats domain.Statistics) error
}

// HistoryReader lists completed sessions from durable history for the
// statistics rebuild recovery operation.
type HistoryReader interface {
	ListCompleted(ctx context.Context) ([]CompletedSummary, error)
}

// CompletedSummary is the per-session slice of history the rebuild needs.
type CompletedSummary struct {
	Score          int
	TotalQuestions int
	Accuracy       float64
}

// StatisticsView is a snapshot of the aggregate plus the derived
// overall accuracy.
type StatisticsView struct {
	domain.Statistics
	OverallAccuracy float64
}

// Aggregator folds completed sessions into lifetime counters. The fold
// includes running maxima, so it must never race with itself; every
// update runs under a single process-wide critical section on top of
// whatever atomicity the backing store provides.
type Aggregator struct {
	mu    sync.Mutex
	store StatsStore
}

func NewAggregator(store StatsStore) *Aggregator {
	return &Aggregator{store: store}
}

// RecordCompletedSession applies one completed session to the aggregate.
// Invoked by the engine exactly once per session, at completion.
func (a *Aggregator) RecordCompletedSession(ctx context.Context, score, totalQuestions int, accuracy float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Apply(ctx, score, totalQuestions, accuracy)
}

// GetStatistics returns the current aggregate snapshot.
func (a *Aggregator) GetStatistics(ctx context.Context) (StatisticsView, error) {
	stats, err := a.store.Get(ctx)
	if err != nil {
		return StatisticsView{}, err
	}
	return StatisticsView{
		Statistics:      stats,
		OverallAccuracy: stats.OverallAccuracy(),
	}, nil
}

// Rebuild recomputes the aggregate from persisted session history. This
// is a recovery operation, not part of the steady-state flow.
func (a *Aggregator) Rebuild(ctx context.Context, history HistoryReader) (domain.Statistics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	summaries, err := history.ListCompleted(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}

	var stats domain.Statistics
	for _, s := range summaries {
		stats.ApplyCompleted(s.Score, s.TotalQuestions, s.Accuracy)
	}
	if err := a.store.Replace(ctx, stats); err != nil {
		return domain.Statistics{}, err
	}
	return stats, nil
}
