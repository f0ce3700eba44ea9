package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-session-service/internal/domain"
)

const statsKey = "quiz:stats"

// maxTxRetries bounds the optimistic WATCH loop in Apply.
const maxTxRetries = 5

// StatsStore keeps the lifetime aggregate as a single JSON value. The
// fold performs non-commutative max updates, so Apply runs inside a
// WATCH transaction: a concurrent writer invalidates the transaction
// and the update is retried against the fresh value.
type StatsStore struct {
	client *redis.Client
}

func NewStatsStore(client *redis.Client) *StatsStore {
	return &StatsStore{client: client}
}

func (s *StatsStore) Get(ctx context.Context) (domain.Statistics, error) {
	raw, err := s.client.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Statistics{}, nil
	}
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("load stats: %w", err)
	}
	var stats domain.Statistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.Statistics{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	return stats, nil
}

func (s *StatsStore) Apply(ctx context.Context, score, totalQuestions int, accuracy float64) error {
	apply := func(tx *redis.Tx) error {
		stats := domain.Statistics{}
		raw, err := tx.Get(ctx, statsKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			if err := json.Unmarshal(raw, &stats); err != nil {
				return fmt.Errorf("unmarshal stats: %w", err)
			}
		}

		stats.ApplyCompleted(score, totalQuestions, accuracy)
		data, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, statsKey, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, apply, statsKey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("apply stats: transaction kept failing after %d attempts", maxTxRetries)
}

func (s *StatsStore) Replace(ctx context.Context, stats domain.Statistics) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err := s.client.Set(ctx, statsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("replace stats: %w", err)
	}
	return nil
}
