package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/domain"
)

const poolKey = "quiz:questions:active"

// QuestionLoader fetches the active question catalog from a backing
// store (e.g. Postgres).
type QuestionLoader interface {
	LoadActive(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the active question pool in Redis as one
// JSON value and falls back to the loader on a miss. Filtered lookups
// are answered from the cached pool in process.
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) FindActive(ctx context.Context, category, difficulty string) ([]domain.Question, error) {
	pool, err := r.activePool(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FilterQuestions(pool, category, difficulty), nil
}

func (r *QuestionRepository) Count(ctx context.Context, category, difficulty string) (int, error) {
	matched, err := r.FindActive(ctx, category, difficulty)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (r *QuestionRepository) Categories(ctx context.Context) ([]string, error) {
	pool, err := r.activePool(ctx)
	if err != nil {
		return nil, err
	}
	return domain.DistinctCategories(pool), nil
}

func (r *QuestionRepository) Difficulties(ctx context.Context) ([]string, error) {
	pool, err := r.activePool(ctx)
	if err != nil {
		return nil, err
	}
	return domain.DistinctDifficulties(pool), nil
}

func (r *QuestionRepository) activePool(ctx context.Context) ([]domain.Question, error) {
	if pool, ok, err := r.cachedPool(ctx); err == nil && ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(poolKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok, err := r.cachedPool(ctx); err == nil && ok {
			return pool, nil
		}

		pool, err := r.loader.LoadActive(ctx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(pool)
		if err != nil {
			return nil, fmt.Errorf("marshal question pool: %w", err)
		}
		_ = r.client.Set(ctx, poolKey, data, r.ttlWithJitter()).Err()

		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cachedPool(ctx context.Context) ([]domain.Question, bool, error) {
	raw, err := r.client.Get(ctx, poolKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var pool []domain.Question
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, false, err
	}
	return pool, true, nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
