package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

func TestCreateSessionClampsToPoolSize(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, testQuestions())

	session, err := engine.CreateSession(ctx, app.CreateParams{
		QuestionCount: 10,
		Category:      "math",
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.TotalQuestions() != 2 {
		t.Fatalf("expected session clamped to 2 questions, got %d", session.TotalQuestions())
	}
	for _, q := range session.Questions {
		if q.Category != "math" {
			t.Fatalf("expected only math questions, got %q", q.Category)
		}
	}
}

func TestCreateSessionHasNoDuplicateQuestions(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, testQuestions())

	session, err := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 5, Shuffle: true})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	seen := make(map[int64]bool)
	for _, q := range session.Questions {
		if seen[q.ID] {
			t.Fatalf("question %d appears twice in the sequence", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestCreateSessionRejectsNonPositiveCount(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, testQuestions())

	for _, count := range []int{0, -1} {
		if _, err := engine.CreateSession(ctx, app.CreateParams{QuestionCount: count}); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("count %d: expected ErrInvalidRequest, got %v", count, err)
		}
	}
}

func TestCreateSessionEmptyPool(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, testQuestions())

	_, err := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 3, Category: "history"})
	if !errors.Is(err, domain.ErrNoQuestionsAvailable) {
		t.Fatalf("expected ErrNoQuestionsAvailable, got %v", err)
	}
}

func TestShuffleRemapsCorrectIndex(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, testQuestions())

	session, err := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 5, Shuffle: true})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// Whatever permutation was applied, answering the remapped correct
	// index must score as correct for every question.
	for i, q := range session.Questions {
		outcome, err := engine.SubmitAnswer(ctx, session.ID, q.CorrectAnswer, nil)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if !outcome.Correct {
			t.Fatalf("question %d: remapped correct index scored as wrong", q.ID)
		}
	}
}

func TestCreateSessionWithoutShufflePreservesOrder(t *testing.T) {
	ctx := context.Background()
	pool := testQuestions()
	engine, _ := newTestEngine(t, pool)

	session, err := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 5})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.TotalQuestions() != 5 {
		t.Fatalf("expected all 5 active questions, got %d", session.TotalQuestions())
	}

	// Without shuffle the snapshot follows the pool order and keeps each
	// question's original option order and answer index.
	for i, got := range session.Questions {
		want := pool[i]
		if got.ID != want.ID {
			t.Fatalf("position %d: got question %d, want %d", i, got.ID, want.ID)
		}
		if got.CorrectAnswer != want.CorrectAnswer {
			t.Fatalf("question %d: correct index %d, want %d", got.ID, got.CorrectAnswer, want.CorrectAnswer)
		}
		for j, opt := range got.Options {
			if opt != want.Options[j] {
				t.Fatalf("question %d: option %d is %q, want %q", got.ID, j, opt, want.Options[j])
			}
		}
	}
}

func TestCurrentQuestionRedactsAnswerKey(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, []domain.Question{
		{ID: 1, Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectAnswer: 1, Explanation: "Two plus two equals four.", Category: "math", Active: true},
	})

	session, err := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 1})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	question, err := engine.CurrentQuestion(ctx, session.ID)
	if err != nil {
		t.Fatalf("current question: %v", err)
	}
	if question.CorrectAnswer != -1 {
		t.Fatalf("correct answer leaked: %d", question.CorrectAnswer)
	}
	if question.Explanation != "" {
		t.Fatalf("explanation leaked: %q", question.Explanation)
	}

	// Redaction must not touch the stored snapshot; the right answer
	// still scores as correct.
	outcome, err := engine.SubmitAnswer(ctx, session.ID, 1, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !outcome.Correct || outcome.Explanation == "" {
		t.Fatalf("submission should score against the full question: %+v", outcome)
	}
}

func TestSubmitAnswerSequenceAndCompletion(t *testing.T) {
	ctx := context.Background()
	engine, stats := newTestEngine(t, testQuestions())

	session, err := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 3, Category: "science"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	n := session.TotalQuestions()

	for i := 0; i < n; i++ {
		outcome, err := engine.SubmitAnswer(ctx, session.ID, 0, nil)
		if err != nil {
			t.Fatalf("submit answer %d: %v", i, err)
		}
		wantCompleted := i == n-1
		if outcome.Completed != wantCompleted {
			t.Fatalf("answer %d: completed=%v, want %v", i, outcome.Completed, wantCompleted)
		}
		if outcome.CurrentIndex != i+1 {
			t.Fatalf("answer %d: current index %d, want %d", i, outcome.CurrentIndex, i+1)
		}
	}

	if _, err := engine.SubmitAnswer(ctx, session.ID, 0, nil); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted after completion, got %v", err)
	}

	view, err := stats.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("get statistics: %v", err)
	}
	if view.TotalSessions != 1 || view.TotalQuestionsAnswered != n {
		t.Fatalf("aggregator not updated on completion: %+v", view)
	}
}

func TestSubmitAnswerValidatesOption(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, testQuestions())

	session, _ := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 1, Category: "math"})
	for _, selected := range []int{-1, 4, 99} {
		if _, err := engine.SubmitAnswer(ctx, session.ID, selected, nil); !errors.Is(err, domain.ErrInvalidOption) {
			t.Fatalf("option %d: expected ErrInvalidOption, got %v", selected, err)
		}
	}
}

func TestSubmitAnswerOutOfSyncGuard(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, testQuestions())

	session, _ := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 2, Category: "math"})

	idx := 0
	if _, err := engine.SubmitAnswer(ctx, session.ID, 0, &idx); err != nil {
		t.Fatalf("submit with matching index: %v", err)
	}
	// A retry of the same submission now carries a stale index.
	if _, err := engine.SubmitAnswer(ctx, session.ID, 0, &idx); !errors.Is(err, domain.ErrAnswerOutOfSync) {
		t.Fatalf("expected ErrAnswerOutOfSync for stale index, got %v", err)
	}

	progress, err := engine.GetProgress(ctx, session.ID)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if progress.CurrentIndex != 1 {
		t.Fatalf("rejected retry must not advance the session, index=%d", progress.CurrentIndex)
	}
}

func TestSubmitAnswerUnknownSession(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, testQuestions())

	if _, err := engine.SubmitAnswer(ctx, "nope", 0, nil); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := engine.CurrentQuestion(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := engine.GetProgress(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestProgressInvariants(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, testQuestions())

	session, _ := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 5})
	n := session.TotalQuestions()

	for i := 0; i < n; i++ {
		progress, err := engine.GetProgress(ctx, session.ID)
		if err != nil {
			t.Fatalf("get progress: %v", err)
		}
		wantPct := float64(i) / float64(n) * 100
		if progress.ProgressPercentage != wantPct {
			t.Fatalf("step %d: progress %.2f, want %.2f", i, progress.ProgressPercentage, wantPct)
		}
		if progress.Remaining != n-i {
			t.Fatalf("step %d: remaining %d, want %d", i, progress.Remaining, n-i)
		}
		if _, err := engine.SubmitAnswer(ctx, session.ID, 0, nil); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
}

func TestResultsOnlyAfterCompletion(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, testQuestions())

	session, _ := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 2, Category: "math"})

	if _, err := engine.GetResults(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotCompleted) {
		t.Fatalf("expected ErrSessionNotCompleted, got %v", err)
	}

	// First answer wrong, second correct.
	first := session.Questions[0]
	second := session.Questions[1]
	if _, err := engine.SubmitAnswer(ctx, session.ID, wrongOption(first), nil); err != nil {
		t.Fatalf("submit wrong: %v", err)
	}
	if _, err := engine.SubmitAnswer(ctx, session.ID, second.CorrectAnswer, nil); err != nil {
		t.Fatalf("submit correct: %v", err)
	}

	results, err := engine.GetResults(ctx, session.ID)
	if err != nil {
		t.Fatalf("get results: %v", err)
	}
	if results.Score != 1 || results.TotalQuestions != 2 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(results.WrongAnswers) != 1 || results.WrongAnswers[0].Question.ID != first.ID {
		t.Fatalf("expected exactly the first question listed as wrong, got %+v", results.WrongAnswers)
	}
	if results.WrongAnswers[0].CorrectAnswer != first.CorrectAnswer {
		t.Fatalf("wrong answer detail must carry the correct choice")
	}
}

func TestConcurrentSubmissionsSameSession(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, manyQuestions(20))

	session, err := engine.CreateSession(ctx, app.CreateParams{QuestionCount: 20})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	n := session.TotalQuestions()

	var wg sync.WaitGroup
	for i := 0; i < n+10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.SubmitAnswer(ctx, session.ID, 0, nil)
		}()
	}
	wg.Wait()

	progress, err := engine.GetProgress(ctx, session.ID)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if progress.CurrentIndex != n {
		t.Fatalf("expected exactly %d answers recorded, got %d", n, progress.CurrentIndex)
	}
	if !progress.Completed {
		t.Fatalf("session should be completed")
	}
}

func newTestEngine(t *testing.T, questions []domain.Question) (*app.Engine, *app.Aggregator) {
	t.Helper()
	repo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(questions), 5*time.Minute)
	aggregator := app.NewAggregator(memory.NewStatsStore())
	engine := app.NewEngineWithClock(repo, memory.NewSessionStore(), aggregator, time.Now, 42)
	return engine, aggregator
}

func wrongOption(q domain.Question) int {
	if q.CorrectAnswer == 0 {
		return 1
	}
	return 0
}

func testQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectAnswer: 1, Category: "math", Difficulty: "easy", Active: true},
		{ID: 2, Text: "What is 7 * 8?", Options: []string{"54", "56", "64", "48"}, CorrectAnswer: 1, Category: "math", Difficulty: "medium", Active: true},
		{ID: 3, Text: "Closest planet to the sun?", Options: []string{"Venus", "Earth", "Mercury", "Mars"}, CorrectAnswer: 2, Category: "science", Difficulty: "easy", Active: true},
		{ID: 4, Text: "Chemical symbol for gold?", Options: []string{"Ag", "Au", "Gd", "Go"}, CorrectAnswer: 1, Category: "science", Difficulty: "medium", Active: true},
		{ID: 5, Text: "Boiling point of water at sea level?", Options: []string{"90C", "95C", "100C", "105C"}, CorrectAnswer: 2, Category: "science", Difficulty: "easy", Active: true},
		{ID: 6, Text: "Inactive question", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 0, Category: "math", Active: false},
	}
}

func manyQuestions(n int) []domain.Question {
	questions := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, domain.Question{
			ID:            int64(i + 1),
			Text:          fmt.Sprintf("question %d", i+1),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: i % 4,
			Active:        true,
		})
	}
	return questions
}
