package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/services"
)

// GenerationHandler starts, polls and cancels batch answer generation.
type GenerationHandler struct {
	generationService services.GenerationService
	logger            *zap.Logger
}

// NewGenerationHandler creates a new generation handler.
func NewGenerationHandler(generationService services.GenerationService, logger *zap.Logger) *GenerationHandler {
	return &GenerationHandler{generationService: generationService, logger: logger}
}

// RegisterRoutes registers the generation handler's routes on the given mux.
func (h *GenerationHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/questionnaires/{id}/generate-answers", scope(h.Start))
	mux.HandleFunc("GET /api/questionnaires/{id}/generation", scope(h.Latest))
	mux.HandleFunc("GET /api/generation-jobs/{id}", scope(h.Get))
	mux.HandleFunc("POST /api/generation-jobs/{id}/cancel", scope(h.Cancel))
}

// Start handles POST /api/questionnaires/{id}/generate-answers.
// Returns 202 with the job; progress is polled through Get.
func (h *GenerationHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "questionnaire", h.logger)
	if !ok {
		return
	}

	job, err := h.generationService.Start(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "start_generation", h.logger)
		return
	}

	writeData(w, http.StatusAccepted, job, h.logger)
}

// Latest handles GET /api/questionnaires/{id}/generation
func (h *GenerationHandler) Latest(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "questionnaire", h.logger)
	if !ok {
		return
	}

	job, err := h.generationService.GetLatestJob(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_generation", h.logger)
		return
	}

	writeData(w, http.StatusOK, job, h.logger)
}

// Get handles GET /api/generation-jobs/{id}
func (h *GenerationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "job", h.logger)
	if !ok {
		return
	}

	job, err := h.generationService.GetJob(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_generation_job", h.logger)
		return
	}

	writeData(w, http.StatusOK, job, h.logger)
}

// Cancel handles POST /api/generation-jobs/{id}/cancel
func (h *GenerationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "job", h.logger)
	if !ok {
		return
	}

	job, err := h.generationService.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "cancel_generation_job", h.logger)
		return
	}

	writeData(w, http.StatusOK, job, h.logger)
}
