package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// History persists completed sessions and serves them back to the
// statistics rebuild. One row per completed session; the full answer
// trail rides along as jsonb.
type History struct {
	pool *pgxpool.Pool
}

func NewHistory(pool *pgxpool.Pool) *History {
	return &History{pool: pool}
}

func (h *History) AppendCompleted(ctx context.Context, session *domain.Session) error {
	if session.CompletedAt == nil {
		return fmt.Errorf("append history: session %s not completed", session.ID)
	}
	answers, err := json.Marshal(session.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = h.pool.Exec(ctx, `
		INSERT INTO session_history (session_id, total_questions, score, accuracy, answers, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO NOTHING`,
		session.ID, session.TotalQuestions(), session.Score(), session.Accuracy(),
		answers, session.StartedAt, *session.CompletedAt)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (h *History) ListCompleted(ctx context.Context) ([]app.CompletedSummary, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT score, total_questions, accuracy
		FROM session_history
		ORDER BY completed_at`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var summaries []app.CompletedSummary
	for rows.Next() {
		var s app.CompletedSummary
		if err := rows.Scan(&s.Score, &s.TotalQuestions, &s.Accuracy); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return summaries, nil
}
