package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// OptionCount is the fixed number of options per question.
const OptionCount = 4

// Question models a four-option MCQ question. Questions are owned by the
// question repository and never mutated by the engine; sessions snapshot
// their own copies at creation.
type Question struct {
	ID            int64    `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
	Category      string   `json:"category,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Active        bool     `json:"active"`
}

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("question %d: empty text", q.ID)
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("question %d: expected %d options, got %d", q.ID, OptionCount, len(q.Options))
	}
	for i, opt := range q.Options {
		if opt == "" {
			return fmt.Errorf("question %d: option %d is empty", q.ID, i)
		}
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= OptionCount {
		return fmt.Errorf("question %d: correct answer %d out of range", q.ID, q.CorrectAnswer)
	}
	return nil
}

// Redacted returns a copy of q safe to hand out before it is answered:
// the correct answer index is replaced with -1 and the explanation is
// dropped.
func (q Question) Redacted() Question {
	q.CorrectAnswer = -1
	q.Explanation = ""
	return q
}

// ShuffleOptions returns a copy of q with its options in a fresh uniform
// permutation and CorrectAnswer remapped to follow the moved option.
func ShuffleOptions(q Question, rnd *rand.Rand) Question {
	perm := rnd.Perm(len(q.Options))
	shuffled := make([]string, len(q.Options))
	correct := q.CorrectAnswer
	for newIdx, oldIdx := range perm {
		shuffled[newIdx] = q.Options[oldIdx]
		if oldIdx == q.CorrectAnswer {
			correct = newIdx
		}
	}
	out := q
	out.Options = shuffled
	out.CorrectAnswer = correct
	return out
}

// AnswerRecord is one entry in a session's append-only answer history.
type AnswerRecord struct {
	QuestionID     int64     `json:"question_id"`
	SelectedOption int       `json:"selected_option"`
	Correct        bool      `json:"correct"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// Session is one run of N questions from creation to completion. The
// question snapshot (including any shuffled option order) is fixed at
// creation; Answers grow strictly in question order, so Answers[i]
// always answers Questions[i].
type Session struct {
	ID          string         `json:"id"`
	Questions   []Question     `json:"questions"`
	Answers     []AnswerRecord `json:"answers"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TotalQuestions returns N, the length of the question snapshot.
func (s *Session) TotalQuestions() int { return len(s.Questions) }

// CurrentIndex is the index of the next unanswered question; it equals
// the number of answers recorded so far.
func (s *Session) CurrentIndex() int { return len(s.Answers) }

// Score counts correct answers so far.
func (s *Session) Score() int {
	score := 0
	for _, a := range s.Answers {
		if a.Correct {
			score++
		}
	}
	return score
}

// Accuracy is Score over answered questions as a percentage, 0 when
// nothing has been answered yet.
func (s *Session) Accuracy() float64 {
	if len(s.Answers) == 0 {
		return 0
	}
	return float64(s.Score()) / float64(len(s.Answers)) * 100
}

// ProgressPercentage is CurrentIndex over N as a percentage.
func (s *Session) ProgressPercentage() float64 {
	if len(s.Questions) == 0 {
		return 0
	}
	return float64(s.CurrentIndex()) / float64(len(s.Questions)) * 100
}

// Remaining returns how many questions are still unanswered.
func (s *Session) Remaining() int { return len(s.Questions) - len(s.Answers) }

// IsCompleted reports whether every question has been answered.
func (s *Session) IsCompleted() bool { return len(s.Answers) >= len(s.Questions) }

// CurrentQuestion returns the question at the current index, or false
// if the session is completed.
func (s *Session) CurrentQuestion() (Question, bool) {
	if s.IsCompleted() {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex()], true
}

// RecordAnswer scores selected against the current question, appends the
// answer record and, if this was the last question, stamps CompletedAt.
// Callers must serialize invocations per session.
func (s *Session) RecordAnswer(selected int, now time.Time) (AnswerRecord, error) {
	if s.IsCompleted() {
		return AnswerRecord{}, ErrSessionCompleted
	}
	if selected < 0 || selected >= OptionCount {
		return AnswerRecord{}, ErrInvalidOption
	}

	question := s.Questions[s.CurrentIndex()]
	record := AnswerRecord{
		QuestionID:     question.ID,
		SelectedOption: selected,
		Correct:        selected == question.CorrectAnswer,
		AnsweredAt:     now,
	}
	s.Answers = append(s.Answers, record)

	if s.IsCompleted() {
		completed := now
		s.CompletedAt = &completed
	}
	return record, nil
}

// WrongAnswer pairs an incorrect answer with its question for the
// results report.
type WrongAnswer struct {
	Question       Question  `json:"question"`
	SelectedOption int       `json:"selected_option"`
	CorrectAnswer  int       `json:"correct_answer"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// WrongAnswers lists the incorrectly answered questions in question order.
func (s *Session) WrongAnswers() []WrongAnswer {
	wrong := make([]WrongAnswer, 0)
	for i, a := range s.Answers {
		if a.Correct {
			continue
		}
		q := s.Questions[i]
		wrong = append(wrong, WrongAnswer{
			Question:       q,
			SelectedOption: a.SelectedOption,
			CorrectAnswer:  q.CorrectAnswer,
			AnsweredAt:     a.AnsweredAt,
		})
	}
	return wrong
}

// Duration returns elapsed time from start to completion, or false if
// the session is still in progress.
func (s *Session) Duration() (time.Duration, bool) {
	if s.CompletedAt == nil {
		return 0, false
	}
	return s.CompletedAt.Sub(s.StartedAt), true
}

// Statistics is the lifetime aggregate folded over completed sessions.
type Statistics struct {
	TotalSessions          int     `json:"total_sessions"`
	TotalQuestionsAnswered int     `json:"total_questions_answered"`
	TotalCorrectAnswers    int     `json:"total_correct_answers"`
	BestScore              int     `json:"best_score"`
	BestAccuracy           float64 `json:"best_accuracy"`
}

// OverallAccuracy is total correct over total answered as a percentage,
// 0 when nothing has been recorded.
func (st Statistics) OverallAccuracy() float64 {
	if st.TotalQuestionsAnswered == 0 {
		return 0
	}
	return float64(st.TotalCorrectAnswers) / float64(st.TotalQuestionsAnswered) * 100
}

// ApplyCompleted folds one completed session into the aggregate.
func (st *Statistics) ApplyCompleted(score, totalQuestions int, accuracy float64) {
	st.TotalSessions++
	st.TotalQuestionsAnswered += totalQuestions
	st.TotalCorrectAnswers += score
	if score > st.BestScore {
		st.BestScore = score
	}
	if accuracy > st.BestAccuracy {
		st.BestAccuracy = accuracy
	}
}
