package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/config"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/services"
)

// uploadField is the multipart form field that carries the file.
const uploadField = "file"

// multipartOverhead is the slack allowed on top of the file size for the
// multipart envelope.
const multipartOverhead = 1 << 20

// ScopeMiddleware wraps a handler with a per-request database scope.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// UploadHandler accepts policy and questionnaire files. Size and extension
// are gated here, before any content reaches the extractors.
type UploadHandler struct {
	policyService        services.PolicyService
	questionnaireService services.QuestionnaireService
	cfg                  config.UploadConfig
	logger               *zap.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(
	policyService services.PolicyService,
	questionnaireService services.QuestionnaireService,
	cfg config.UploadConfig,
	logger *zap.Logger,
) *UploadHandler {
	return &UploadHandler{
		policyService:        policyService,
		questionnaireService: questionnaireService,
		cfg:                  cfg,
		logger:               logger,
	}
}

// RegisterRoutes registers the upload routes on the given mux.
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/upload/pdf", scope(h.UploadPolicy))
	mux.HandleFunc("POST /api/upload/excel", scope(h.UploadQuestionnaire))
}

// UploadPolicy handles POST /api/upload/pdf
func (h *UploadHandler) UploadPolicy(w http.ResponseWriter, r *http.Request) {
	filename, content, ok := h.readUpload(w, r, h.cfg.PolicyExtensions)
	if !ok {
		return
	}

	policy, err := h.policyService.Upload(r.Context(), filename, content)
	if err != nil {
		writeServiceError(w, err, "upload_policy", h.logger)
		return
	}

	writeData(w, http.StatusCreated, policy, h.logger)
}

// UploadQuestionnaire handles POST /api/upload/excel
func (h *UploadHandler) UploadQuestionnaire(w http.ResponseWriter, r *http.Request) {
	filename, content, ok := h.readUpload(w, r, h.cfg.QuestionnaireExtensions)
	if !ok {
		return
	}

	questionnaire, err := h.questionnaireService.Upload(r.Context(), filename, content)
	if err != nil {
		writeServiceError(w, err, "upload_questionnaire", h.logger)
		return
	}

	writeData(w, http.StatusCreated, questionnaire, h.logger)
}

// readUpload returns the uploaded file's base name and bytes, or writes the
// error response and returns false.
func (h *UploadHandler) readUpload(w http.ResponseWriter, r *http.Request, exts []string) (string, []byte, bool) {
	return readMultipartFile(w, r, h.cfg.MaxFileSize, exts, h.logger)
}

func readMultipartFile(w http.ResponseWriter, r *http.Request, maxSize int64, exts []string, logger *zap.Logger) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeTooLarge(w, maxSize, logger)
			return "", nil, false
		}
		writeError(w, http.StatusBadRequest, "missing_file", "A file must be uploaded in the \"file\" field", logger)
		return "", nil, false
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !config.HasExtension(filename, exts) {
		writeError(w, http.StatusBadRequest, "unsupported_file_type",
			fmt.Sprintf("File type not allowed, expected one of: %s", strings.Join(exts, ", ")), logger)
		return "", nil, false
	}
	if header.Size > maxSize {
		writeTooLarge(w, maxSize, logger)
		return "", nil, false
	}

	content, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_file", "Could not read uploaded file", logger)
		return "", nil, false
	}
	if int64(len(content)) > maxSize {
		writeTooLarge(w, maxSize, logger)
		return "", nil, false
	}
	if len(content) == 0 {
		writeError(w, http.StatusBadRequest, "empty_file", "Uploaded file is empty", logger)
		return "", nil, false
	}

	return filename, content, true
}

func writeTooLarge(w http.ResponseWriter, maxSize int64, logger *zap.Logger) {
	writeError(w, http.StatusRequestEntityTooLarge, "file_too_large",
		fmt.Sprintf("File exceeds the maximum size of %d bytes", maxSize), logger)
}
