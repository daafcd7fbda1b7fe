package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/audit"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/documents"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/metrics"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/repositories"
)

// ============================================================================
// In-memory record store shared by the mock repositories
// ============================================================================

type memStore struct {
	mu             sync.Mutex
	clock          time.Time
	policies       map[uuid.UUID]*models.Policy
	questionnaires map[uuid.UUID]*models.Questionnaire
	questions      map[uuid.UUID]*models.Question
	answers        map[uuid.UUID]*models.AnswerLibraryEntry
	jobs           map[uuid.UUID]*models.GenerationJob

	bulkCreateErr error
}

func newMemStore() *memStore {
	return &memStore{
		clock:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		policies:       make(map[uuid.UUID]*models.Policy),
		questionnaires: make(map[uuid.UUID]*models.Questionnaire),
		questions:      make(map[uuid.UUID]*models.Question),
		answers:        make(map[uuid.UUID]*models.AnswerLibraryEntry),
		jobs:           make(map[uuid.UUID]*models.GenerationJob),
	}
}

// tick returns a strictly increasing timestamp. Caller holds mu.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func copyQuestion(q *models.Question) *models.Question {
	c := *q
	if q.Answer != nil {
		a := *q.Answer
		c.Answer = &a
	}
	if q.AnswerSource != nil {
		s := *q.AnswerSource
		c.AnswerSource = &s
	}
	return &c
}

func copyJob(j *models.GenerationJob) *models.GenerationJob {
	c := *j
	c.Errors = append([]models.JobError{}, j.Errors...)
	return &c
}

func (m *memStore) question(id uuid.UUID) *models.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.questions[id]; ok {
		return copyQuestion(q)
	}
	return nil
}

// seedQuestionnaire stores a questionnaire with one created question per text
// and returns it with its questions in position order.
func (m *memStore) seedQuestionnaire(texts ...string) (uuid.UUID, []*models.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	m.questionnaires[id] = &models.Questionnaire{ID: id, Name: "seed.xlsx", Filename: "seed.xlsx", CreatedAt: m.tick()}

	var out []*models.Question
	for i, text := range texts {
		q := &models.Question{
			ID:              uuid.New(),
			QuestionnaireID: id,
			Position:        i + 1,
			QuestionText:    text,
			Status:          models.QuestionStatusCreated,
		}
		m.questions[q.ID] = q
		out = append(out, copyQuestion(q))
	}
	return id, out
}

func (m *memStore) seedPolicy(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.policies[id] = &models.Policy{ID: id, Name: "p.pdf", Filename: "p.pdf", Content: content, CreatedAt: m.tick()}
}

// ============================================================================
// Policies
// ============================================================================

type memPolicyRepo struct{ *memStore }

var _ repositories.PolicyRepository = memPolicyRepo{}

func (r memPolicyRepo) Create(_ context.Context, p *models.Policy) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = r.tick()
	p.TextLength = len([]rune(p.Content))
	c := *p
	r.policies[p.ID] = &c
	return p.ID, nil
}

func (r memPolicyRepo) sorted() []*models.Policy {
	var out []*models.Policy
	for _, p := range r.policies {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memPolicyRepo) List(_ context.Context) ([]*models.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted()
	for _, p := range out {
		p.Content = ""
	}
	return out, nil
}

func (r memPolicyRepo) Get(_ context.Context, id uuid.UUID) (*models.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r memPolicyRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.policies[id]
	delete(r.policies, id)
	return ok, nil
}

func (r memPolicyRepo) ListContents(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.sorted() {
		if p.Content != "" {
			out = append(out, p.Content)
		}
	}
	return out, nil
}

// ============================================================================
// Questionnaires
// ============================================================================

type memQuestionnaireRepo struct{ *memStore }

var _ repositories.QuestionnaireRepository = memQuestionnaireRepo{}

func (r memQuestionnaireRepo) CreateWithQuestions(_ context.Context, q *models.Questionnaire, extracted []models.ExtractedQuestion) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q.ID = uuid.New()
	q.CreatedAt = r.tick()
	c := *q
	r.questionnaires[q.ID] = &c

	for i, eq := range extracted {
		question := &models.Question{
			ID:              uuid.New(),
			QuestionnaireID: q.ID,
			Position:        i + 1,
			QuestionText:    eq.QuestionText,
			Status:          models.QuestionStatusCreated,
		}
		if eq.Answer != nil {
			a := *eq.Answer
			src := models.AnswerSourceImported
			question.Answer = &a
			question.AnswerSource = &src
			question.Status = models.QuestionStatusUnapproved
			q.UnapprovedCount++
		} else {
			q.CreatedCount++
		}
		r.questions[question.ID] = question
	}
	q.QuestionCount = len(extracted)
	return q.ID, nil
}

func (r memQuestionnaireRepo) withCounts(q *models.Questionnaire) *models.Questionnaire {
	c := *q
	c.QuestionCount, c.CreatedCount, c.UnapprovedCount, c.ApprovedCount = 0, 0, 0, 0
	for _, question := range r.questions {
		if question.QuestionnaireID != q.ID {
			continue
		}
		c.QuestionCount++
		switch question.Status {
		case models.QuestionStatusCreated:
			c.CreatedCount++
		case models.QuestionStatusUnapproved:
			c.UnapprovedCount++
		case models.QuestionStatusApproved:
			c.ApprovedCount++
		}
	}
	return &c
}

func (r memQuestionnaireRepo) ListWithCounts(_ context.Context) ([]*models.Questionnaire, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Questionnaire
	for _, q := range r.questionnaires {
		out = append(out, r.withCounts(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memQuestionnaireRepo) Get(_ context.Context, id uuid.UUID) (*models.Questionnaire, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questionnaires[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return r.withCounts(q), nil
}

func (r memQuestionnaireRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.questionnaires[id]; !ok {
		return false, nil
	}
	delete(r.questionnaires, id)
	for qid, q := range r.questions {
		if q.QuestionnaireID == id {
			delete(r.questions, qid)
		}
	}
	for jid, j := range r.jobs {
		if j.QuestionnaireID == id {
			delete(r.jobs, jid)
		}
	}
	return true, nil
}

// ============================================================================
// Questions
// ============================================================================

type memQuestionRepo struct{ *memStore }

var _ repositories.QuestionRepository = memQuestionRepo{}

func (r memQuestionRepo) filter(questionnaireID uuid.UUID, status *models.QuestionStatus) []*models.Question {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Question, 0)
	for _, q := range r.questions {
		if q.QuestionnaireID != questionnaireID {
			continue
		}
		if status != nil && q.Status != *status {
			continue
		}
		out = append(out, copyQuestion(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (r memQuestionRepo) ListByQuestionnaire(_ context.Context, questionnaireID uuid.UUID) ([]*models.Question, error) {
	return r.filter(questionnaireID, nil), nil
}

func (r memQuestionRepo) ListByQuestionnaireAndStatus(_ context.Context, questionnaireID uuid.UUID, status models.QuestionStatus) ([]*models.Question, error) {
	return r.filter(questionnaireID, &status), nil
}

func (r memQuestionRepo) Get(_ context.Context, id uuid.UUID) (*models.Question, error) {
	if q := r.question(id); q != nil {
		return q, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r memQuestionRepo) UpdateAnswerAndStatus(_ context.Context, id uuid.UUID, answer string, status models.QuestionStatus, source models.AnswerSource) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return false, nil
	}
	q.Answer = &answer
	q.Status = status
	q.AnswerSource = &source
	q.UpdatedAt = r.tick()
	return true, nil
}

func (r memQuestionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.QuestionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok || q.Answer == nil {
		return false, nil
	}
	q.Status = status
	q.UpdatedAt = r.tick()
	return true, nil
}

// ============================================================================
// Answer library
// ============================================================================

type memAnswerRepo struct{ *memStore }

var _ repositories.AnswerRepository = memAnswerRepo{}

func (r memAnswerRepo) Create(_ context.Context, e *models.AnswerLibraryEntry) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = r.tick()
	e.UpdatedAt = e.CreatedAt
	c := *e
	r.answers[e.ID] = &c
	return e.ID, nil
}

func (r memAnswerRepo) BulkCreate(_ context.Context, entries []*models.AnswerLibraryEntry) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bulkCreateErr != nil {
		return nil, r.bulkCreateErr
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		e.ID = uuid.New()
		e.CreatedAt = r.tick()
		c := *e
		r.answers[e.ID] = &c
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (r memAnswerRepo) List(_ context.Context) ([]*models.AnswerLibraryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.AnswerLibraryEntry, 0, len(r.answers))
	for _, e := range r.answers {
		c := *e
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memAnswerRepo) Get(_ context.Context, id uuid.UUID) (*models.AnswerLibraryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.answers[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (r memAnswerRepo) Update(_ context.Context, id uuid.UUID, question, answer string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.answers[id]
	if !ok {
		return false, nil
	}
	e.Question, e.Answer = question, answer
	e.UpdatedAt = r.tick()
	return true, nil
}

func (r memAnswerRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.answers[id]
	delete(r.answers, id)
	return ok, nil
}

// ============================================================================
// Generation jobs
// ============================================================================

type memJobRepo struct{ *memStore }

var _ repositories.GenerationJobRepository = memJobRepo{}

func (r memJobRepo) Create(_ context.Context, job *models.GenerationJob) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.QuestionnaireID == job.QuestionnaireID && j.Status.IsActive() {
			return uuid.Nil, apperrors.ErrConflict
		}
	}
	job.ID = uuid.New()
	job.CreatedAt = r.tick()
	r.jobs[job.ID] = copyJob(job)
	return job.ID, nil
}

func (r memJobRepo) Get(_ context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyJob(j), nil
}

func (r memJobRepo) latest(questionnaireID uuid.UUID, activeOnly bool) *models.GenerationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *models.GenerationJob
	for _, j := range r.jobs {
		if j.QuestionnaireID != questionnaireID || (activeOnly && !j.Status.IsActive()) {
			continue
		}
		if found == nil || j.CreatedAt.After(found.CreatedAt) {
			found = j
		}
	}
	if found == nil {
		return nil
	}
	return copyJob(found)
}

func (r memJobRepo) GetActiveByQuestionnaire(_ context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error) {
	return r.latest(questionnaireID, true), nil
}

func (r memJobRepo) GetLatestByQuestionnaire(_ context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error) {
	return r.latest(questionnaireID, false), nil
}

func (r memJobRepo) UpdateProgress(_ context.Context, job *models.GenerationJob) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[job.ID]
	if !ok {
		return false, nil
	}
	j.Processed, j.Succeeded, j.Failed = job.Processed, job.Succeeded, job.Failed
	j.Errors = append([]models.JobError{}, job.Errors...)
	return true, nil
}

func (r memJobRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.JobStatus, errorMessage *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || !j.Status.IsActive() {
		return false, nil
	}
	j.Status = status
	if errorMessage != nil {
		msg := *errorMessage
		j.ErrorMessage = &msg
	}
	if status.IsTerminal() {
		now := r.tick()
		j.CompletedAt = &now
	}
	return true, nil
}

// ============================================================================
// Stubs
// ============================================================================

type stubTextExtractor struct {
	text string
	err  error
}

func (s stubTextExtractor) ExtractText(_ []byte) (*documents.ExtractedText, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &documents.ExtractedText{Text: s.text, PageCount: 1, PagesRead: 1}, nil
}

func noScope(ctx context.Context) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

func testMetrics() *metrics.Metrics {
	return metrics.New()
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testAuditor() *audit.ReviewAuditor {
	return audit.NewReviewAuditor(zap.NewNop())
}

func strPtr(s string) *string { return &s }
