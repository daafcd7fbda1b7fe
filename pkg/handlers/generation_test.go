package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

func TestGenerationHandler_Start(t *testing.T) {
	qid := uuid.New()
	svc := &mockGenerationService{startFunc: func(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error) {
		assert.Equal(t, qid, questionnaireID)
		return &models.GenerationJob{ID: uuid.New(), QuestionnaireID: questionnaireID, Status: models.JobStatusRunning, TotalQuestions: 3}, nil
	}}
	h := NewGenerationHandler(svc, zap.NewNop())

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, noScope) },
		httptest.NewRequest(http.MethodPost, "/api/questionnaires/"+qid.String()+"/generate-answers", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"running"`)
	assert.Contains(t, rec.Body.String(), `"total_questions":3`)
}

func TestGenerationHandler_Start_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"no policies", apperrors.ErrNoPolicyContext, http.StatusBadRequest},
		{"no questions", apperrors.ErrNoQuestionsFound, http.StatusBadRequest},
		{"unknown questionnaire", apperrors.ErrNotFound, http.StatusNotFound},
		{"locked elsewhere", fmt.Errorf("generation already running: %w", apperrors.ErrConflict), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockGenerationService{startFunc: func(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error) {
				return nil, tt.err
			}}
			h := NewGenerationHandler(svc, zap.NewNop())

			rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, noScope) },
				httptest.NewRequest(http.MethodPost, "/api/questionnaires/"+uuid.NewString()+"/generate-answers", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestGenerationHandler_GetAndCancel(t *testing.T) {
	jobID := uuid.New()
	svc := &mockGenerationService{cancelFunc: func(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
		return &models.GenerationJob{ID: id, Status: models.JobStatusCancelled}, nil
	}}
	h := NewGenerationHandler(svc, zap.NewNop())
	register := func(mux *http.ServeMux) { h.RegisterRoutes(mux, noScope) }

	rec := serve(register, httptest.NewRequest(http.MethodGet, "/api/generation-jobs/"+jobID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), jobID.String())

	rec = serve(register, httptest.NewRequest(http.MethodPost, "/api/generation-jobs/"+jobID.String()+"/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	svc.getErr = apperrors.ErrNotFound
	rec = serve(register, httptest.NewRequest(http.MethodGet, "/api/generation-jobs/"+jobID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerationHandler_Latest_NoJob(t *testing.T) {
	svc := &mockGenerationService{latestErr: fmt.Errorf("no generation job: %w", apperrors.ErrNotFound)}
	h := NewGenerationHandler(svc, zap.NewNop())

	rec := serve(func(mux *http.ServeMux) { h.RegisterRoutes(mux, noScope) },
		httptest.NewRequest(http.MethodGet, "/api/questionnaires/"+uuid.NewString()+"/generation", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
