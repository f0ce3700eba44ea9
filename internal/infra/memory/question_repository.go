package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/domain"
)

// QuestionLoader fetches the active question catalog from a backing
// store (e.g. Postgres).
type QuestionLoader interface {
	LoadActive(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the active question pool with TTL to avoid
// repeated catalog loads, and answers filtered lookups from the cached
// pool.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	pool      []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
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
	now := r.clock()

	r.mu.RLock()
	if r.pool != nil && r.expiresAt.After(now) {
		pool := r.pool
		r.mu.RUnlock()
		return pool, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("active", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.pool != nil && r.expiresAt.After(now) {
			pool := r.pool
			r.mu.RUnlock()
			return pool, nil
		}
		r.mu.RUnlock()

		pool, err := r.loader.LoadActive(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.pool = pool
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed catalog from memory (useful for
// tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadActive(_ context.Context) ([]domain.Question, error) {
	active := make([]domain.Question, 0, len(l.questions))
	for _, q := range l.questions {
		if q.Active {
			active = append(active, q)
		}
	}
	return active, nil
}
