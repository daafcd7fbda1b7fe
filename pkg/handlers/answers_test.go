package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

func TestAnswerLibraryHandler_Create(t *testing.T) {
	svc := &mockAnswerLibraryService{}
	h := NewAnswerLibraryHandler(svc, testUploadConfig(), zap.NewNop())
	register := func(mux *http.ServeMux) { h.RegisterRoutes(mux, noScope) }

	rec := serve(register, httptest.NewRequest(http.MethodPost, "/api/answers", strings.NewReader(`{"question":"Q","answer":"A"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"question":"Q"`)

	svc.createErr = apperrors.NewValidationError("answer", "answer must not be empty")
	rec = serve(register, httptest.NewRequest(http.MethodPost, "/api/answers", strings.NewReader(`{"question":"Q"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnswerLibraryHandler_Bulk(t *testing.T) {
	svc := &mockAnswerLibraryService{bulkFunc: func(ctx context.Context, pairs []models.AnswerPair, sourceName string) (*models.BulkResult, error) {
		assert.Len(t, pairs, 2)
		assert.Equal(t, "Vendor X", sourceName)
		r := models.NewBulkResult(len(pairs))
		r.Succeeded()
		r.Failed("Row %d: Missing question or answer", 2)
		return r, nil
	}}
	h := NewAnswerLibraryHandler(svc, testUploadConfig(), zap.NewNop())

	body := `{"answers":[{"question":"Q1","answer":"A1"},{"question":"","answer":"A2"}],"source_name":"Vendor X"}`
	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, noScope) },
		httptest.NewRequest(http.MethodPost, "/api/answers/bulk", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success_count":1`)
	assert.Contains(t, rec.Body.String(), "Row 2: Missing question or answer")
}

func TestAnswerLibraryHandler_Import(t *testing.T) {
	svc := &mockAnswerLibraryService{importFunc: func(ctx context.Context, filename string, content []byte) (*models.BulkResult, error) {
		assert.Equal(t, "library.csv", filename)
		r := models.NewBulkResult(1)
		r.Succeeded()
		return r, nil
	}}
	h := NewAnswerLibraryHandler(svc, testUploadConfig(), zap.NewNop())
	register := func(mux *http.ServeMux) { h.RegisterRoutes(mux, noScope) }

	rec := serve(register, multipartRequest(t, "/api/answers/import", "library.csv", []byte("Q,A\n")))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(register, multipartRequest(t, "/api/answers/import", "library.pdf", []byte("%PDF")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
