package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/services"
)

// PolicyListResponse for GET /api/policies
type PolicyListResponse struct {
	Policies []*models.Policy `json:"policies"`
	Total    int              `json:"total"`
}

// PolicyHandler serves the ingested policy documents.
type PolicyHandler struct {
	policyService services.PolicyService
	logger        *zap.Logger
}

// NewPolicyHandler creates a new policy handler.
func NewPolicyHandler(policyService services.PolicyService, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{policyService: policyService, logger: logger}
}

// RegisterRoutes registers the policy handler's routes on the given mux.
func (h *PolicyHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/policies", scope(h.List))
	mux.HandleFunc("GET /api/policies/{id}", scope(h.Get))
	mux.HandleFunc("DELETE /api/policies/{id}", scope(h.Delete))
}

// List handles GET /api/policies
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policyService.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "list_policies", h.logger)
		return
	}
	if policies == nil {
		policies = []*models.Policy{}
	}

	writeData(w, http.StatusOK, PolicyListResponse{Policies: policies, Total: len(policies)}, h.logger)
}

// Get handles GET /api/policies/{id}
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "policy", h.logger)
	if !ok {
		return
	}

	policy, err := h.policyService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get_policy", h.logger)
		return
	}

	writeData(w, http.StatusOK, policy, h.logger)
}

// Delete handles DELETE /api/policies/{id}
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "policy", h.logger)
	if !ok {
		return
	}

	if err := h.policyService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete_policy", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Policy deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
