package app

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-session-service/internal/domain"
)

// QuestionRepository exposes the immutable catalog of active questions.
// The engine only ever reads from it; the CSV importer is the sole writer.
type QuestionRepository interface {
	FindActive(ctx context.Context, category, difficulty string) ([]domain.Question, error)
	Count(ctx context.Context, category, difficulty string) (int, error)
	Categories(ctx context.Context) ([]string, error)
	Difficulties(ctx context.Context) ([]string, error)
}

// SessionStore abstracts how sessions are persisted (in-memory, Redis, etc).
type SessionStore interface {
	Save(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

// HistoryWriter appends completed sessions to durable history. Appends are
// best-effort: a history failure never fails the answer that completed
// the session.
type HistoryWriter interface {
	AppendCompleted(ctx context.Context, session *domain.Session) error
}

// CreateParams are the options for a new quiz session. Category and
// Difficulty are optional conjunctive exact-match filters.
type CreateParams struct {
	QuestionCount int
	Category      string
	Difficulty    string
	Shuffle       bool
}

// AnswerOutcome reports the result of a single submission.
type AnswerOutcome struct {
	SessionID      string
	QuestionID     int64
	SelectedOption int
	CorrectAnswer  int
	Correct        bool
	Explanation    string
	Score          int
	Accuracy       float64
	CurrentIndex   int
	TotalQuestions int
	Completed      bool
}

// Progress is a read-only derived view of a session.
type Progress struct {
	SessionID          string
	CurrentIndex       int
	TotalQuestions     int
	Score              int
	Accuracy           float64
	ProgressPercentage float64
	Remaining          int
	Completed          bool
}

// Results is the full report for a completed session.
type Results struct {
	SessionID       string
	TotalQuestions  int
	Score           int
	Accuracy        float64
	WrongAnswers    []domain.WrongAnswer
	StartedAt       time.Time
	CompletedAt     time.Time
	DurationSeconds float64
}

// Engine owns the session lifecycle: creation from the question pool,
// sequential answer progression, scoring, and the completion handoff to
// the statistics aggregator.
type Engine struct {
	questions QuestionRepository
	sessions  SessionStore
	stats     *Aggregator
	history   HistoryWriter // may be nil
	logger    *slog.Logger

	now func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand

	// one mutex per live session id; submissions on the same session are
	// serialized, different sessions never block each other
	locks sync.Map
}

func NewEngine(questions QuestionRepository, sessions SessionStore, stats *Aggregator, history HistoryWriter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		questions: questions,
		sessions:  sessions,
		stats:     stats,
		history:   history,
		logger:    logger,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewEngineWithClock is test-only for deterministic timestamps and shuffles.
func NewEngineWithClock(questions QuestionRepository, sessions SessionStore, stats *Aggregator, now func() time.Time, seed int64) *Engine {
	e := NewEngine(questions, sessions, stats, nil, nil)
	e.now = now
	e.rnd = rand.New(rand.NewSource(seed))
	return e
}

// CreateSession snapshots a new session from the filtered question pool.
// A requested count larger than the pool is clamped, not rejected; a
// count <= 0 fails with ErrInvalidRequest and an empty pool with
// ErrNoQuestionsAvailable.
func (e *Engine) CreateSession(ctx context.Context, params CreateParams) (*domain.Session, error) {
	if params.QuestionCount <= 0 {
		return nil, domain.ErrInvalidRequest
	}

	pool, err := e.questions.FindActive(ctx, params.Category, params.Difficulty)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, domain.ErrNoQuestionsAvailable
	}

	count := params.QuestionCount
	if count > len(pool) {
		e.logger.Warn("question pool smaller than requested",
			"requested", params.QuestionCount, "pool", len(pool))
		count = len(pool)
	}

	snapshot := e.snapshotQuestions(pool, count, params.Shuffle)

	session := &domain.Session{
		ID:        uuid.NewString(),
		Questions: snapshot,
		Answers:   make([]domain.AnswerRecord, 0, count),
		StartedAt: e.now(),
	}
	if err := e.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	e.logger.Info("session created", "session_id", session.ID,
		"questions", count, "category", params.Category,
		"difficulty", params.Difficulty, "shuffle", params.Shuffle)
	return session, nil
}

// snapshotQuestions picks count questions from the pool and deep-copies
// them. With shuffle the question order and, independently, each
// question's option order are permuted once here; the stored snapshot is
// never re-derived.
func (e *Engine) snapshotQuestions(pool []domain.Question, count int, shuffle bool) []domain.Question {
	picked := make([]domain.Question, len(pool))
	copy(picked, pool)

	if shuffle {
		e.rndMu.Lock()
		e.rnd.Shuffle(len(picked), func(i, j int) {
			picked[i], picked[j] = picked[j], picked[i]
		})
		picked = picked[:count]
		for i := range picked {
			picked[i] = domain.ShuffleOptions(picked[i], e.rnd)
		}
		e.rndMu.Unlock()
	} else {
		picked = picked[:count]
		for i := range picked {
			opts := make([]string, len(picked[i].Options))
			copy(opts, picked[i].Options)
			picked[i].Options = opts
		}
	}
	return picked
}

// CurrentQuestion returns the question awaiting an answer, redacted:
// the answer key and explanation never leave the engine until the
// answer is in.
func (e *Engine) CurrentQuestion(ctx context.Context, sessionID string) (domain.Question, error) {
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Question{}, err
	}
	question, ok := session.CurrentQuestion()
	if !ok {
		return domain.Question{}, domain.ErrSessionCompleted
	}
	return question.Redacted(), nil
}

// SubmitAnswer scores exactly one answer for the question at the current
// index. expectedIndex, when non-nil, guards against stale client
// retries: a mismatch fails with ErrAnswerOutOfSync without advancing.
// The read-validate-write sequence is exclusive per session id.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID string, selected int, expectedIndex *int) (AnswerOutcome, error) {
	if selected < 0 || selected >= domain.OptionCount {
		return AnswerOutcome{}, domain.ErrInvalidOption
	}

	mu := e.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if session.IsCompleted() {
		return AnswerOutcome{}, domain.ErrSessionCompleted
	}
	if expectedIndex != nil && *expectedIndex != session.CurrentIndex() {
		return AnswerOutcome{}, domain.ErrAnswerOutOfSync
	}

	question, _ := session.CurrentQuestion()
	record, err := session.RecordAnswer(selected, e.now())
	if err != nil {
		return AnswerOutcome{}, err
	}
	if err := e.sessions.Save(ctx, session); err != nil {
		return AnswerOutcome{}, err
	}

	outcome := AnswerOutcome{
		SessionID:      session.ID,
		QuestionID:     question.ID,
		SelectedOption: selected,
		CorrectAnswer:  question.CorrectAnswer,
		Correct:        record.Correct,
		Explanation:    question.Explanation,
		Score:          session.Score(),
		Accuracy:       session.Accuracy(),
		CurrentIndex:   session.CurrentIndex(),
		TotalQuestions: session.TotalQuestions(),
		Completed:      session.IsCompleted(),
	}

	if session.IsCompleted() {
		e.completeSession(ctx, session)
	}

	e.logger.Info("answer recorded", "session_id", session.ID,
		"question_id", question.ID, "correct", record.Correct,
		"index", session.CurrentIndex(), "completed", session.IsCompleted())
	return outcome, nil
}

// completeSession folds the finished session into lifetime statistics
// before the answer response returns, then appends history best-effort.
func (e *Engine) completeSession(ctx context.Context, session *domain.Session) {
	score := session.Score()
	total := session.TotalQuestions()
	accuracy := session.Accuracy()

	if err := e.stats.RecordCompletedSession(ctx, score, total, accuracy); err != nil {
		e.logger.Error("recording completed session failed",
			"session_id", session.ID, "error", err)
	}
	if e.history != nil {
		if err := e.history.AppendCompleted(ctx, session); err != nil {
			e.logger.Error("session history append failed",
				"session_id", session.ID, "error", err)
		}
	}
	e.logger.Info("session completed", "session_id", session.ID,
		"score", score, "total", total)
}

// GetProgress returns the derived progress view for a session.
func (e *Engine) GetProgress(ctx context.Context, sessionID string) (Progress, error) {
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		SessionID:          session.ID,
		CurrentIndex:       session.CurrentIndex(),
		TotalQuestions:     session.TotalQuestions(),
		Score:              session.Score(),
		Accuracy:           session.Accuracy(),
		ProgressPercentage: session.ProgressPercentage(),
		Remaining:          session.Remaining(),
		Completed:          session.IsCompleted(),
	}, nil
}

// GetResults returns the full report for a completed session. Results
// requested before completion fail with ErrSessionNotCompleted; scoring
// is only final once every question is answered.
func (e *Engine) GetResults(ctx context.Context, sessionID string) (Results, error) {
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return Results{}, err
	}
	if !session.IsCompleted() {
		return Results{}, domain.ErrSessionNotCompleted
	}

	duration, _ := session.Duration()
	return Results{
		SessionID:       session.ID,
		TotalQuestions:  session.TotalQuestions(),
		Score:           session.Score(),
		Accuracy:        session.Accuracy(),
		WrongAnswers:    session.WrongAnswers(),
		StartedAt:       session.StartedAt,
		CompletedAt:     *session.CompletedAt,
		DurationSeconds: duration.Seconds(),
	}, nil
}

// PoolSize reports how many active questions match the filter; the API
// layer uses it to size the count slider before session creation.
func (e *Engine) PoolSize(ctx context.Context, category, difficulty string) (int, error) {
	return e.questions.Count(ctx, category, difficulty)
}

// Categories lists the distinct categories of active questions.
func (e *Engine) Categories(ctx context.Context) ([]string, error) {
	return e.questions.Categories(ctx)
}

// Difficulties lists the distinct difficulties of active questions.
func (e *Engine) Difficulties(ctx context.Context) ([]string, error) {
	return e.questions.Difficulties(ctx)
}

// Questions returns up to limit active questions matching the filter.
func (e *Engine) Questions(ctx context.Context, category, difficulty string, limit int) ([]domain.Question, error) {
	pool, err := e.questions.FindActive(ctx, category, difficulty)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(pool) {
		pool = pool[:limit]
	}
	return pool, nil
}

func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
