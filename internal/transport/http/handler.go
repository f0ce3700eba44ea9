package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// Handler wires the quiz engine and statistics aggregator into the REST
// surface consumed by the frontend.
type Handler struct {
	engine *app.Engine
	stats  *app.Aggregator
	logger *slog.Logger
}

func NewHandler(engine *app.Engine, stats *app.Aggregator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, stats: stats, logger: logger}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.POST("/sessions", h.createSession)
	r.GET("/sessions/:id/current", h.currentQuestion)
	r.POST("/sessions/:id/answer", h.submitAnswer)
	r.GET("/sessions/:id/progress", h.progress)
	r.GET("/sessions/:id/results", h.results)
	r.GET("/statistics", h.statistics)
	r.GET("/questions", h.listQuestions)
	r.GET("/categories", h.categories)
	r.GET("/difficulties", h.difficulties)
}

type successEnvelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type errorEnvelope struct {
	Success bool     `json:"success"`
	Error   apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, successEnvelope{Success: true, Data: data, Timestamp: time.Now()})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorEnvelope{Success: false, Error: apiError{Code: code, Message: message}})
}

// respondDomainError maps engine errors onto the HTTP taxonomy. Anything
// outside the expected domain outcomes is a store fault and surfaces as
// an opaque 500.
func (h *Handler) respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "question count must be positive")
	case errors.Is(err, domain.ErrInvalidOption):
		respondError(c, http.StatusBadRequest, "INVALID_OPTION", "selected option must be between 0 and 3")
	case errors.Is(err, domain.ErrSessionNotFound):
		respondError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "quiz session not found")
	case errors.Is(err, domain.ErrNoQuestionsAvailable):
		respondError(c, http.StatusConflict, "NO_QUESTIONS_AVAILABLE", "no questions match the requested filters")
	case errors.Is(err, domain.ErrSessionCompleted):
		respondError(c, http.StatusConflict, "SESSION_COMPLETED", "quiz session is already completed")
	case errors.Is(err, domain.ErrSessionNotCompleted):
		respondError(c, http.StatusConflict, "SESSION_NOT_COMPLETED", "quiz session is not completed yet")
	case errors.Is(err, domain.ErrAnswerOutOfSync):
		respondError(c, http.StatusConflict, "ANSWER_OUT_OF_SYNC", "submitted question index does not match the current question")
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

type createSessionRequest struct {
	QuestionCount int    `json:"question_count"`
	Category      string `json:"category"`
	Difficulty    string `json:"difficulty"`
	Shuffle       bool   `json:"shuffle"`
}

type sessionResponse struct {
	SessionID          string  `json:"session_id"`
	TotalQuestions     int     `json:"total_questions"`
	CurrentIndex       int     `json:"current_index"`
	Score              int     `json:"score"`
	Accuracy           float64 `json:"accuracy"`
	ProgressPercentage float64 `json:"progress_percentage"`
	IsCompleted        bool    `json:"is_completed"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}

	session, err := h.engine.CreateSession(c.Request.Context(), app.CreateParams{
		QuestionCount: req.QuestionCount,
		Category:      req.Category,
		Difficulty:    req.Difficulty,
		Shuffle:       req.Shuffle,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	respond(c, http.StatusCreated, sessionResponse{
		SessionID:          session.ID,
		TotalQuestions:     session.TotalQuestions(),
		CurrentIndex:       session.CurrentIndex(),
		Score:              session.Score(),
		Accuracy:           session.Accuracy(),
		ProgressPercentage: session.ProgressPercentage(),
		IsCompleted:        session.IsCompleted(),
	})
}

// questionResponse deliberately has no correct-answer or explanation
// field; the answer key never leaves the process before the answer is in.
type questionResponse struct {
	ID         int64    `json:"id"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

func toQuestionResponse(q domain.Question) questionResponse {
	return questionResponse{
		ID:         q.ID,
		Text:       q.Text,
		Options:    q.Options,
		Category:   q.Category,
		Difficulty: q.Difficulty,
	}
}

func (h *Handler) currentQuestion(c *gin.Context) {
	question, err := h.engine.CurrentQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	respond(c, http.StatusOK, toQuestionResponse(question))
}

type answerRequest struct {
	SessionID      string `json:"session_id"`
	SelectedOption *int   `json:"selected_option"`
	QuestionIndex  *int   `json:"question_index"`
}

type answerResponse struct {
	SessionID          string  `json:"session_id"`
	QuestionID         int64   `json:"question_id"`
	SelectedOption     int     `json:"selected_option"`
	CorrectAnswer      int     `json:"correct_answer"`
	IsCorrect          bool    `json:"is_correct"`
	Explanation        string  `json:"explanation,omitempty"`
	CurrentScore       int     `json:"current_score"`
	CurrentAccuracy    float64 `json:"current_accuracy"`
	IsSessionCompleted bool    `json:"is_session_completed"`
}

func (h *Handler) submitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	if req.SessionID != c.Param("id") {
		respondError(c, http.StatusBadRequest, "SESSION_ID_MISMATCH", "session id in body does not match path")
		return
	}
	if req.SelectedOption == nil {
		respondError(c, http.StatusBadRequest, "INVALID_OPTION", "selected_option is required")
		return
	}

	outcome, err := h.engine.SubmitAnswer(c.Request.Context(), req.SessionID, *req.SelectedOption, req.QuestionIndex)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	respond(c, http.StatusOK, answerResponse{
		SessionID:          outcome.SessionID,
		QuestionID:         outcome.QuestionID,
		SelectedOption:     outcome.SelectedOption,
		CorrectAnswer:      outcome.CorrectAnswer,
		IsCorrect:          outcome.Correct,
		Explanation:        outcome.Explanation,
		CurrentScore:       outcome.Score,
		CurrentAccuracy:    outcome.Accuracy,
		IsSessionCompleted: outcome.Completed,
	})
}

type progressResponse struct {
	SessionID          string  `json:"session_id"`
	CurrentIndex       int     `json:"current_index"`
	TotalQuestions     int     `json:"total_questions"`
	Score              int     `json:"score"`
	Accuracy           float64 `json:"accuracy"`
	ProgressPercentage float64 `json:"progress_percentage"`
	IsCompleted        bool    `json:"is_completed"`
	RemainingQuestions int     `json:"remaining_questions"`
}

func (h *Handler) progress(c *gin.Context) {
	progress, err := h.engine.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	respond(c, http.StatusOK, progressResponse{
		SessionID:          progress.SessionID,
		CurrentIndex:       progress.CurrentIndex,
		TotalQuestions:     progress.TotalQuestions,
		Score:              progress.Score,
		Accuracy:           progress.Accuracy,
		ProgressPercentage: progress.ProgressPercentage,
		IsCompleted:        progress.Completed,
		RemainingQuestions: progress.Remaining,
	})
}

type wrongQuestionDetail struct {
	Question       questionResponse `json:"question"`
	SelectedOption int              `json:"selected_option"`
	CorrectAnswer  int              `json:"correct_answer"`
	Explanation    string           `json:"explanation,omitempty"`
	AnsweredAt     time.Time        `json:"answered_at"`
}

type resultsResponse struct {
	SessionID       string                `json:"session_id"`
	TotalQuestions  int                   `json:"total_questions"`
	Score           int                   `json:"score"`
	Accuracy        float64               `json:"accuracy"`
	WrongCount      int                   `json:"wrong_count"`
	WrongQuestions  []wrongQuestionDetail `json:"wrong_questions"`
	StartedAt       time.Time             `json:"started_at"`
	CompletedAt     time.Time             `json:"completed_at"`
	DurationSeconds float64               `json:"duration_seconds"`
}

func (h *Handler) results(c *gin.Context) {
	results, err := h.engine.GetResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	wrong := make([]wrongQuestionDetail, 0, len(results.WrongAnswers))
	for _, wa := range results.WrongAnswers {
		wrong = append(wrong, wrongQuestionDetail{
			Question:       toQuestionResponse(wa.Question),
			SelectedOption: wa.SelectedOption,
			CorrectAnswer:  wa.CorrectAnswer,
			Explanation:    wa.Question.Explanation,
			AnsweredAt:     wa.AnsweredAt,
		})
	}

	respond(c, http.StatusOK, resultsResponse{
		SessionID:       results.SessionID,
		TotalQuestions:  results.TotalQuestions,
		Score:           results.Score,
		Accuracy:        results.Accuracy,
		WrongCount:      len(wrong),
		WrongQuestions:  wrong,
		StartedAt:       results.StartedAt,
		CompletedAt:     results.CompletedAt,
		DurationSeconds: results.DurationSeconds,
	})
}

type statisticsResponse struct {
	TotalSessions          int     `json:"total_sessions"`
	TotalQuestionsAnswered int     `json:"total_questions_answered"`
	TotalCorrectAnswers    int     `json:"total_correct_answers"`
	OverallAccuracy        float64 `json:"overall_accuracy"`
	BestScore              int     `json:"best_score"`
	BestAccuracy           float64 `json:"best_accuracy"`
}

func (h *Handler) statistics(c *gin.Context) {
	stats, err := h.stats.GetStatistics(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	respond(c, http.StatusOK, statisticsResponse{
		TotalSessions:          stats.TotalSessions,
		TotalQuestionsAnswered: stats.TotalQuestionsAnswered,
		TotalCorrectAnswers:    stats.TotalCorrectAnswers,
		OverallAccuracy:        stats.OverallAccuracy,
		BestScore:              stats.BestScore,
		BestAccuracy:           stats.BestAccuracy,
	})
}

const defaultQuestionLimit = 50

type questionListResponse struct {
	Questions    []questionResponse `json:"questions"`
	TotalCount   int                `json:"total_count"`
	Categories   []string           `json:"categories"`
	Difficulties []string           `json:"difficulties"`
}

func (h *Handler) listQuestions(c *gin.Context) {
	ctx := c.Request.Context()
	category := c.Query("category")
	difficulty := c.Query("difficulty")

	limit := defaultQuestionLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	questions, err := h.engine.Questions(ctx, category, difficulty, limit)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	total, err := h.engine.PoolSize(ctx, category, difficulty)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	categories, err := h.engine.Categories(ctx)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	difficulties, err := h.engine.Difficulties(ctx)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	out := make([]questionResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, toQuestionResponse(q))
	}
	respond(c, http.StatusOK, questionListResponse{
		Questions:    out,
		TotalCount:   total,
		Categories:   categories,
		Difficulties: difficulties,
	})
}

func (h *Handler) categories(c *gin.Context) {
	categories, err := h.engine.Categories(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	respond(c, http.StatusOK, categories)
}

func (h *Handler) difficulties(c *gin.Context) {
	difficulties, err := h.engine.Difficulties(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	respond(c, http.StatusOK, difficulties)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
