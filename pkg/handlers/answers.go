package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/config"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// AnswerRequest for POST /api/answers and PUT /api/answers/{id}
type AnswerRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// BulkAnswersRequest for POST /api/answers/bulk
type BulkAnswersRequest struct {
	Answers    []models.AnswerPair `json:"answers"`
	SourceName string              `json:"source_name,omitempty"`
}

// AnswerListResponse for GET /api/answers
type AnswerListResponse struct {
	Answers []*models.AnswerLibraryEntry `json:"answers"`
	Total   int                          `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// AnswerLibraryHandler serves the reusable answer library.
type AnswerLibraryHandler struct {
	answerService services.AnswerLibraryService
	upload        config.UploadConfig
	logger        *zap.Logger
}

// NewAnswerLibraryHandler creates a new answer library handler. upload gates
// spreadsheet imports the same way questionnaire uploads are gated.
func NewAnswerLibraryHandler(answerService services.AnswerLibraryService, upload config.UploadConfig, logger *zap.Logger) *AnswerLibraryHandler {
	return &AnswerLibraryHandler{answerService: answerService, upload: upload, logger: logger}
}

// RegisterRoutes registers the answer library routes on the given mux.
func (h *AnswerLibraryHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/api/answers"

	mux.HandleFunc("GET "+base, scope(h.List))
	mux.HandleFunc("POST "+base, scope(h.Create))
	mux.HandleFunc("POST "+base+"/bulk", scope(h.BulkCreate))
	mux.HandleFunc("POST "+base+"/import", scope(h.Import))
	mux.HandleFunc("GET "+base+"/{id}", scope(h.Get))
	mux.HandleFunc("PUT "+base+"/{id}", scope(h.Update))
	mux.HandleFunc("DELETE "+base+"/{id}", scope(h.Delete))
}

// List handles GET /api/answers
func (h *AnswerLibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.answerService.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "list_answers", h.logger)
		return
	}
	if entries == nil {
		entries = []*models.AnswerLibraryEntry{}
	}

	writeData(w, http.StatusOK, AnswerListResponse{Answers: entries, Total: len(entries)}, h.logger)
}

// Create handles POST /api/answers
func (h *AnswerLibraryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	entry, err := h.answerService.Create(r.Context(), req.Question, req.Answer)
	if err != nil {
		writeServiceError(w, err, "create_answer", h.logger)
		return
	}

	writeData(w, http.StatusCreated, entry, h.logger)
}

// Get handles GET /api/answers/{id}
func (h *AnswerLibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "answer", h.logger)
	if !ok {
		return
	}

	entry, err := h.answerService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_answer", h.logger)
		return
	}

	writeData(w, http.StatusOK, entry, h.logger)
}

// Update handles PUT /api/answers/{id}
func (h *AnswerLibraryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "answer", h.logger)
	if !ok {
		return
	}

	var req AnswerRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	entry, err := h.answerService.Update(r.Context(), id, req.Question, req.Answer)
	if err != nil {
		writeServiceError(w, err, "update_answer", h.logger)
		return
	}

	writeData(w, http.StatusOK, entry, h.logger)
}

// Delete handles DELETE /api/answers/{id}
func (h *AnswerLibraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "answer", h.logger)
	if !ok {
		return
	}

	if err := h.answerService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete_answer", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Answer deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// BulkCreate handles POST /api/answers/bulk
func (h *AnswerLibraryHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req BulkAnswersRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	result, err := h.answerService.BulkImport(r.Context(), req.Answers, req.SourceName)
	if err != nil {
		writeServiceError(w, err, "bulk_import_answers", h.logger)
		return
	}

	writeData(w, http.StatusOK, result, h.logger)
}

// Import handles POST /api/answers/import (multipart "file", a two-column
// spreadsheet of question/answer rows).
func (h *AnswerLibraryHandler) Import(w http.ResponseWriter, r *http.Request) {
	filename, content, ok := readMultipartFile(w, r, h.upload.MaxFileSize, h.upload.QuestionnaireExtensions, h.logger)
	if !ok {
		return
	}

	result, err := h.answerService.ImportFile(r.Context(), filename, content)
	if err != nil {
		writeServiceError(w, err, "import_answers", h.logger)
		return
	}

	writeData(w, http.StatusOK, result, h.logger)
}
