package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/services"
)

// ============================================================================
// Mock Implementations
// ============================================================================

type mockPolicyService struct {
	uploadFunc func(ctx context.Context, filename string, content []byte) (*models.Policy, error)
	policies   []*models.Policy
	getErr     error
	deleteErr  error
}

var _ services.PolicyService = (*mockPolicyService)(nil)

func (m *mockPolicyService) Upload(ctx context.Context, filename string, content []byte) (*models.Policy, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, filename, content)
	}
	return &models.Policy{ID: uuid.New(), Name: filename, Filename: filename, FileSize: int64(len(content))}, nil
}
func (m *mockPolicyService) List(ctx context.Context) ([]*models.Policy, error) {
	return m.policies, nil
}
func (m *mockPolicyService) Get(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.Policy{ID: id}, nil
}
func (m *mockPolicyService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteErr
}
func (m *mockPolicyService) Corpus(ctx context.Context) (string, error) {
	return "", nil
}

type mockQuestionnaireService struct {
	uploadFunc        func(ctx context.Context, filename string, content []byte) (*models.Questionnaire, error)
	listQuestionsFunc func(ctx context.Context, id uuid.UUID, status *models.QuestionStatus) ([]*models.Question, error)
	exportRows        []models.ExportRow
	exportErr         error
	workbook          []byte
	stats             *models.Statistics
}

var _ services.QuestionnaireService = (*mockQuestionnaireService)(nil)

func (m *mockQuestionnaireService) Upload(ctx context.Context, filename string, content []byte) (*models.Questionnaire, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, filename, content)
	}
	return &models.Questionnaire{ID: uuid.New(), Name: filename, Filename: filename}, nil
}
func (m *mockQuestionnaireService) List(ctx context.Context) ([]*models.Questionnaire, error) {
	return nil, nil
}
func (m *mockQuestionnaireService) Get(ctx context.Context, id uuid.UUID) (*models.Questionnaire, error) {
	return &models.Questionnaire{ID: id}, nil
}
func (m *mockQuestionnaireService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}
func (m *mockQuestionnaireService) ListQuestions(ctx context.Context, id uuid.UUID, status *models.QuestionStatus) ([]*models.Question, error) {
	if m.listQuestionsFunc != nil {
		return m.listQuestionsFunc(ctx, id, status)
	}
	return nil, nil
}
func (m *mockQuestionnaireService) ExportApproved(ctx context.Context, id uuid.UUID) ([]models.ExportRow, error) {
	return m.exportRows, m.exportErr
}
func (m *mockQuestionnaireService) ExportWorkbook(ctx context.Context, id uuid.UUID) ([]byte, error) {
	return m.workbook, m.exportErr
}
func (m *mockQuestionnaireService) Statistics(ctx context.Context) (*models.Statistics, error) {
	return m.stats, nil
}

type mockQuestionService struct {
	updateAnswerFunc func(ctx context.Context, id uuid.UUID, answer string, status models.QuestionStatus) (*models.Question, error)
	approveErr       error
	bulkFunc         func(ctx context.Context, ids []uuid.UUID, status models.QuestionStatus) (*models.BulkResult, error)
}

var _ services.QuestionService = (*mockQuestionService)(nil)

func (m *mockQuestionService) Get(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	return &models.Question{ID: id}, nil
}
func (m *mockQuestionService) UpdateAnswer(ctx context.Context, id uuid.UUID, answer string, status models.QuestionStatus) (*models.Question, error) {
	return m.updateAnswerFunc(ctx, id, answer, status)
}
func (m *mockQuestionService) Approve(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	return &models.Question{ID: id, Status: models.QuestionStatusApproved}, nil
}
func (m *mockQuestionService) Unapprove(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	return &models.Question{ID: id, Status: models.QuestionStatusUnapproved}, nil
}
func (m *mockQuestionService) BulkSetStatus(ctx context.Context, ids []uuid.UUID, status models.QuestionStatus) (*models.BulkResult, error) {
	return m.bulkFunc(ctx, ids, status)
}

type mockAnswerLibraryService struct {
	createErr  error
	bulkFunc   func(ctx context.Context, pairs []models.AnswerPair, sourceName string) (*models.BulkResult, error)
	importFunc func(ctx context.Context, filename string, content []byte) (*models.BulkResult, error)
}

var _ services.AnswerLibraryService = (*mockAnswerLibraryService)(nil)

func (m *mockAnswerLibraryService) Create(ctx context.Context, question, answer string) (*models.AnswerLibraryEntry, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.AnswerLibraryEntry{ID: uuid.New(), Question: question, Answer: answer}, nil
}
func (m *mockAnswerLibraryService) List(ctx context.Context) ([]*models.AnswerLibraryEntry, error) {
	return nil, nil
}
func (m *mockAnswerLibraryService) Get(ctx context.Context, id uuid.UUID) (*models.AnswerLibraryEntry, error) {
	return &models.AnswerLibraryEntry{ID: id}, nil
}
func (m *mockAnswerLibraryService) Update(ctx context.Context, id uuid.UUID, question, answer string) (*models.AnswerLibraryEntry, error) {
	return &models.AnswerLibraryEntry{ID: id, Question: question, Answer: answer}, nil
}
func (m *mockAnswerLibraryService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}
func (m *mockAnswerLibraryService) BulkImport(ctx context.Context, pairs []models.AnswerPair, sourceName string) (*models.BulkResult, error) {
	return m.bulkFunc(ctx, pairs, sourceName)
}
func (m *mockAnswerLibraryService) ImportFile(ctx context.Context, filename string, content []byte) (*models.BulkResult, error) {
	return m.importFunc(ctx, filename, content)
}

type mockGenerationService struct {
	startFunc  func(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error)
	getErr     error
	latestErr  error
	cancelFunc func(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error)
}

var _ services.GenerationService = (*mockGenerationService)(nil)

func (m *mockGenerationService) Start(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error) {
	return m.startFunc(ctx, questionnaireID)
}
func (m *mockGenerationService) GetJob(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.GenerationJob{ID: jobID, Status: models.JobStatusRunning}, nil
}
func (m *mockGenerationService) GetLatestJob(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	return &models.GenerationJob{ID: uuid.New(), QuestionnaireID: questionnaireID}, nil
}
func (m *mockGenerationService) Cancel(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error) {
	return m.cancelFunc(ctx, jobID)
}
func (m *mockGenerationService) Shutdown(ctx context.Context) error {
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func noScope(next http.HandlerFunc) http.HandlerFunc {
	return next
}

// serve routes req through a mux with the handler's routes registered.
func serve(register func(mux *http.ServeMux), req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
