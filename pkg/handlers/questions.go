package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/services"
)

// UpdateAnswerRequest for PUT /api/questions/{id}/answer
type UpdateAnswerRequest struct {
	Answer string `json:"answer"`
	Status string `json:"status"`
}

// BulkStatusRequest for PUT /api/questions/bulk-status
type BulkStatusRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids"`
	Status      string      `json:"status"`
}

// QuestionHandler serves the review workflow of individual questions.
type QuestionHandler struct {
	questionService services.QuestionService
	logger          *zap.Logger
}

// NewQuestionHandler creates a new question handler.
func NewQuestionHandler(questionService services.QuestionService, logger *zap.Logger) *QuestionHandler {
	return &QuestionHandler{questionService: questionService, logger: logger}
}

// RegisterRoutes registers the question handler's routes on the given mux.
func (h *QuestionHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/questions/{id}", scope(h.Get))
	mux.HandleFunc("PUT /api/questions/{id}/answer", scope(h.UpdateAnswer))
	mux.HandleFunc("PUT /api/questions/{id}/approve", scope(h.Approve))
	mux.HandleFunc("PUT /api/questions/{id}/unapprove", scope(h.Unapprove))
	mux.HandleFunc("PUT /api/questions/bulk-status", scope(h.BulkStatus))
}

// Get handles GET /api/questions/{id}
func (h *QuestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "question", h.logger)
	if !ok {
		return
	}

	q, err := h.questionService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_question", h.logger)
		return
	}

	writeData(w, http.StatusOK, q, h.logger)
}

// UpdateAnswer handles PUT /api/questions/{id}/answer. Status defaults to
// unapproved.
func (h *QuestionHandler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "question", h.logger)
	if !ok {
		return
	}

	var req UpdateAnswerRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	status := models.QuestionStatusUnapproved
	if s := strings.TrimSpace(req.Status); s != "" {
		status = models.QuestionStatus(strings.ToLower(s))
	}

	q, err := h.questionService.UpdateAnswer(r.Context(), id, req.Answer, status)
	if err != nil {
		writeServiceError(w, err, "update_answer", h.logger)
		return
	}

	writeData(w, http.StatusOK, q, h.logger)
}

// Approve handles PUT /api/questions/{id}/approve
func (h *QuestionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.questionService.Approve, "approve_question")
}

// Unapprove handles PUT /api/questions/{id}/unapprove
func (h *QuestionHandler) Unapprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.questionService.Unapprove, "unapprove_question")
}

func (h *QuestionHandler) review(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, id uuid.UUID) (*models.Question, error),
	op string,
) {
	id, ok := ParseID(w, r, "question", h.logger)
	if !ok {
		return
	}

	q, err := apply(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, op, h.logger)
		return
	}

	writeData(w, http.StatusOK, q, h.logger)
}

// BulkStatus handles PUT /api/questions/bulk-status. Per-item failures are
// reported in the result; the request itself succeeds.
func (h *QuestionHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	status := models.QuestionStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	result, err := h.questionService.BulkSetStatus(r.Context(), req.QuestionIDs, status)
	if err != nil {
		writeServiceError(w, err, "bulk_status", h.logger)
		return
	}

	writeData(w, http.StatusOK, result, h.logger)
}
