package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ============================================================================
// Request/Response Types
// ============================================================================

// QuestionnaireListResponse for GET /api/questionnaires
type QuestionnaireListResponse struct {
	Questionnaires []*models.Questionnaire `json:"questionnaires"`
	Total          int                     `json:"total"`
}

// QuestionListResponse for GET /api/questionnaires/{id}/questions
type QuestionListResponse struct {
	Questions []*models.Question `json:"questions"`
	Total     int                `json:"total"`
}

// ExportResponse for GET /api/questionnaires/{id}/export
type ExportResponse struct {
	QuestionnaireID string             `json:"questionnaire_id"`
	Rows            []models.ExportRow `json:"rows"`
	Total           int                `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// QuestionnaireHandler serves questionnaires, their questions and exports.
type QuestionnaireHandler struct {
	questionnaireService services.QuestionnaireService
	logger               *zap.Logger
}

// NewQuestionnaireHandler creates a new questionnaire handler.
func NewQuestionnaireHandler(questionnaireService services.QuestionnaireService, logger *zap.Logger) *QuestionnaireHandler {
	return &QuestionnaireHandler{questionnaireService: questionnaireService, logger: logger}
}

// RegisterRoutes registers the questionnaire handler's routes on the given mux.
func (h *QuestionnaireHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/api/questionnaires"

	mux.HandleFunc("GET "+base, scope(h.List))
	mux.HandleFunc("GET "+base+"/{id}", scope(h.Get))
	mux.HandleFunc("DELETE "+base+"/{id}", scope(h.Delete))
	mux.HandleFunc("GET "+base+"/{id}/questions", scope(h.ListQuestions))
	mux.HandleFunc("GET "+base+"/{id}/export", scope(h.Export))
	mux.HandleFunc("GET "+base+"/{id}/export.xlsx", scope(h.ExportWorkbook))
	mux.HandleFunc("GET /api/statistics", scope(h.Statistics))
}

// List handles GET /api/questionnaires
func (h *QuestionnaireHandler) List(w http.ResponseWriter, r *http.Request) {
	questionnaires, err := h.questionnaireService.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "list_questionnaires", h.logger)
		return
	}
	if questionnaires == nil {
		questionnaires = []*models.Questionnaire{}
	}

	writeData(w, http.StatusOK, QuestionnaireListResponse{Questionnaires: questionnaires, Total: len(questionnaires)}, h.logger)
}

// Get handles GET /api/questionnaires/{id}
func (h *QuestionnaireHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "questionnaire", h.logger)
	if !ok {
		return
	}

	q, err := h.questionnaireService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_questionnaire", h.logger)
		return
	}

	writeData(w, http.StatusOK, q, h.logger)
}

// Delete handles DELETE /api/questionnaires/{id}
func (h *QuestionnaireHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "questionnaire", h.logger)
	if !ok {
		return
	}

	if err := h.questionnaireService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete_questionnaire", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Questionnaire deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListQuestions handles GET /api/questionnaires/{id}/questions[?status=]
func (h *QuestionnaireHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "questionnaire", h.logger)
	if !ok {
		return
	}

	var status *models.QuestionStatus
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		qs := models.QuestionStatus(strings.ToLower(s))
		status = &qs
	}

	questions, err := h.questionnaireService.ListQuestions(r.Context(), id, status)
	if err != nil {
		writeServiceError(w, err, "list_questions", h.logger)
		return
	}
	if questions == nil {
		questions = []*models.Question{}
	}

	writeData(w, http.StatusOK, QuestionListResponse{Questions: questions, Total: len(questions)}, h.logger)
}

// Export handles GET /api/questionnaires/{id}/export
func (h *QuestionnaireHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "questionnaire", h.logger)
	if !ok {
		return
	}

	rows, err := h.questionnaireService.ExportApproved(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "export_questionnaire", h.logger)
		return
	}

	writeData(w, http.StatusOK, ExportResponse{QuestionnaireID: id.String(), Rows: rows, Total: len(rows)}, h.logger)
}

// ExportWorkbook handles GET /api/questionnaires/{id}/export.xlsx
func (h *QuestionnaireHandler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "questionnaire", h.logger)
	if !ok {
		return
	}

	data, err := h.questionnaireService.ExportWorkbook(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "export_questionnaire", h.logger)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"questionnaire-%s-approved.xlsx\"", id))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write export", zap.Error(err))
	}
}

// Statistics handles GET /api/statistics
func (h *QuestionnaireHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.questionnaireService.Statistics(r.Context())
	if err != nil {
		writeServiceError(w, err, "get_statistics", h.logger)
		return
	}

	writeData(w, http.StatusOK, stats, h.logger)
}
