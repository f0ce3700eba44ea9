// Package importer reads question catalogs from CSV files and loads
// them into Postgres. It is an offline admin tool; the quiz engine only
// ever reads the catalog the importer produces.
package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/uptrace/bun"

	"quiz-session-service/internal/domain"
)

// Expected CSV columns. correct_answer is 1-based in the file and
// converted to a 0-based index on import.
var requiredColumns = []string{"question", "option1", "option2", "option3", "option4", "correct_answer"}

// Result summarizes one import run.
type Result struct {
	Imported int
	Skipped  int
	Failed   int
	Errors   []string
}

func (r *Result) addError(line int, err error) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("line %d: %v", line, err))
}

// ParseCSV reads and validates question rows. Invalid rows are reported
// in the result and skipped; valid rows are returned for insertion.
func ParseCSV(reader io.Reader) ([]domain.Question, Result, error) {
	result := Result{}
	cr := csv.NewReader(reader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, result, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, result, fmt.Errorf("csv missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var questions []domain.Question
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.addError(line, err)
			continue
		}

		question, err := questionFromRow(row, field)
		if err != nil {
			result.addError(line, err)
			continue
		}
		questions = append(questions, question)
	}
	return questions, result, nil
}

func questionFromRow(row []string, field func([]string, string) string) (domain.Question, error) {
	q := domain.Question{
		Text:        field(row, "question"),
		Explanation: field(row, "explanation"),
		Category:    field(row, "category"),
		Difficulty:  field(row, "difficulty"),
		Active:      true,
	}

	for i := 1; i <= domain.OptionCount; i++ {
		q.Options = append(q.Options, field(row, fmt.Sprintf("option%d", i)))
	}

	rawCorrect := field(row, "correct_answer")
	correct, err := strconv.Atoi(rawCorrect)
	if err != nil {
		return domain.Question{}, fmt.Errorf("correct_answer %q is not a number", rawCorrect)
	}
	q.CorrectAnswer = correct - 1

	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// Importer inserts parsed questions into the questions table.
type Importer struct {
	db *bun.DB
}

func NewImporter(db *bun.DB) *Importer {
	return &Importer{db: db}
}

// Import parses the CSV and inserts each valid question. A question
// whose text already exists in the catalog is counted as skipped, not
// as an error, so re-running an import is harmless.
func (im *Importer) Import(ctx context.Context, reader io.Reader) (Result, error) {
	questions, result, err := ParseCSV(reader)
	if err != nil {
		return result, err
	}

	for _, q := range questions {
		inserted, err := im.insert(ctx, q)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("insert %q: %v", q.Text, err))
			continue
		}
		if inserted {
			result.Imported++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func (im *Importer) insert(ctx context.Context, q domain.Question) (bool, error) {
	var exists bool
	err := im.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM questions WHERE question = ?)`, q.Text).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	if exists {
		return false, nil
	}

	options, err := json.Marshal(q.Options)
	if err != nil {
		return false, err
	}
	_, err = im.db.ExecContext(ctx, `
		INSERT INTO questions (question, options, correct_answer, explanation, category, difficulty, active)
		VALUES (?, ?::jsonb, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), TRUE)`,
		q.Text, string(options), q.CorrectAnswer, q.Explanation, q.Category, q.Difficulty)
	if err != nil {
		return false, err
	}
	return true, nil
}
