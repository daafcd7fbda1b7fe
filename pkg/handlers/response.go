package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
)

// ApiResponse is the envelope of every successful JSON response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeData wraps data in a successful ApiResponse.
func writeData(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeServiceError maps a service error onto its HTTP status. Unexpected
// errors are logged and reported without their details.
func writeServiceError(w http.ResponseWriter, err error, op string, logger *zap.Logger) {
	var ve *apperrors.ValidationError

	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", ve.Error(), logger)
	case errors.Is(err, apperrors.ErrCorruptDocument),
		errors.Is(err, apperrors.ErrNoExtractableText),
		errors.Is(err, apperrors.ErrNoQuestionsFound):
		writeError(w, http.StatusBadRequest, "ingestion_failed", err.Error(), logger)
	case errors.Is(err, apperrors.ErrNoPolicyContext):
		writeError(w, http.StatusBadRequest, "no_policy_context", err.Error(), logger)
	case errors.Is(err, apperrors.ErrNoApprovedAnswers):
		writeError(w, http.StatusNotFound, "no_approved_answers", err.Error(), logger)
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), logger)
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error(), logger)
	default:
		logger.Error("Request failed", zap.String("operation", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, op+"_failed", "Internal server error", logger)
	}
}

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", logger)
		return false
	}
	return true
}
