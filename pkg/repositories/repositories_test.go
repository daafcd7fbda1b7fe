//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/testhelpers"
)

func setupRepoTest(t *testing.T) context.Context {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)
	testDB.Truncate(t)
	return testDB.ScopedContext(t)
}

func strPtr(s string) *string { return &s }

func createQuestionnaire(t *testing.T, ctx context.Context, questions ...models.ExtractedQuestion) uuid.UUID {
	t.Helper()
	id, err := NewQuestionnaireRepository().CreateWithQuestions(ctx,
		&models.Questionnaire{Name: "vendor.xlsx", Filename: "vendor.xlsx"}, questions)
	require.NoError(t, err)
	return id
}

func TestPolicyRepository_CRUD(t *testing.T) {
	ctx := setupRepoTest(t)
	repo := NewPolicyRepository()

	older := &models.Policy{Name: "a.pdf", Filename: "a.pdf", Content: "Older policy text", FileSize: 100}
	_, err := repo.Create(ctx, older)
	require.NoError(t, err)

	newer := &models.Policy{Name: "b.pdf", Filename: "b.pdf", Content: "Newer policy", FileSize: 50}
	id, err := repo.Create(ctx, newer)
	require.NoError(t, err)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Newer policy", got.Content)
	assert.Equal(t, len("Newer policy"), got.TextLength)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, id, list[0].ID)
	assert.Empty(t, list[0].Content)

	contents, err := repo.ListContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Newer policy", "Older policy text"}, contents)

	deleted, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = repo.Get(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestQuestionnaireRepository_CreateWithQuestions(t *testing.T) {
	ctx := setupRepoTest(t)

	id := createQuestionnaire(t, ctx,
		models.ExtractedQuestion{RowNumber: 2, QuestionText: "Do you encrypt data at rest?"},
		models.ExtractedQuestion{RowNumber: 3, QuestionText: "Do you have an SLA?", Answer: strPtr("Yes, 99.9%")},
		models.ExtractedQuestion{RowNumber: 5, QuestionText: "Is MFA enforced?"},
	)

	q, err := NewQuestionnaireRepository().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, q.QuestionCount)
	assert.Equal(t, 2, q.CreatedCount)
	assert.Equal(t, 1, q.UnapprovedCount)
	assert.Equal(t, 0, q.ApprovedCount)

	questions, err := NewQuestionRepository().ListByQuestionnaire(ctx, id)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, "Do you encrypt data at rest?", questions[0].QuestionText)
	assert.Equal(t, 1, questions[0].Position)
	assert.Nil(t, questions[0].Answer)
	assert.Nil(t, questions[0].AnswerSource)

	imported := questions[1]
	assert.Equal(t, models.QuestionStatusUnapproved, imported.Status)
	require.NotNil(t, imported.AnswerSource)
	assert.Equal(t, models.AnswerSourceImported, *imported.AnswerSource)
}

func TestQuestionnaireRepository_DeleteCascades(t *testing.T) {
	ctx := setupRepoTest(t)
	repo := NewQuestionnaireRepository()

	id := createQuestionnaire(t, ctx, models.ExtractedQuestion{RowNumber: 1, QuestionText: "Q1"})

	deleted, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	questions, err := NewQuestionRepository().ListByQuestionnaire(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, questions)

	_, err = repo.Get(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestQuestionRepository_StatusUpdates(t *testing.T) {
	ctx := setupRepoTest(t)
	repo := NewQuestionRepository()

	qid := createQuestionnaire(t, ctx,
		models.ExtractedQuestion{RowNumber: 1, QuestionText: "Q1"},
		models.ExtractedQuestion{RowNumber: 2, QuestionText: "Q2"},
	)
	questions, err := repo.ListByQuestionnaire(ctx, qid)
	require.NoError(t, err)
	first, second := questions[0], questions[1]

	// no answer yet
	ok, err := repo.UpdateStatus(ctx, first.ID, models.QuestionStatusApproved)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateAnswerAndStatus(ctx, first.ID, "Yes", models.QuestionStatusUnapproved, models.AnswerSourceGenerated)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, first.ID, models.QuestionStatusApproved)
	require.NoError(t, err)
	assert.True(t, ok)

	approved, err := repo.ListByQuestionnaireAndStatus(ctx, qid, models.QuestionStatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, first.ID, approved[0].ID)
	assert.Equal(t, models.AnswerSourceGenerated, *approved[0].AnswerSource)

	got, err := repo.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStatusCreated, got.Status)

	ok, err = repo.UpdateAnswerAndStatus(ctx, uuid.New(), "x", models.QuestionStatusApproved, models.AnswerSourceManual)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnswerRepository_BulkCreateAndCRUD(t *testing.T) {
	ctx := setupRepoTest(t)
	repo := NewAnswerRepository()

	ids, err := repo.BulkCreate(ctx, []*models.AnswerLibraryEntry{
		{Question: "Q1", Answer: "A1", SourceType: models.AnswerSourceTypeBulkImport, SourceName: "import.csv"},
		{Question: "Q2", Answer: "A2", SourceType: models.AnswerSourceTypeBulkImport, SourceName: "import.csv"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	id, err := repo.Create(ctx, &models.AnswerLibraryEntry{Question: "Q3", Answer: "A3"})
	require.NoError(t, err)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.AnswerSourceTypeUser, got.SourceType)
	assert.Equal(t, "User", got.SourceName)

	ok, err := repo.Update(ctx, id, "Q3 edited", "A3 edited")
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	ok, err = repo.Delete(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.Get(ctx, ids[0])
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGenerationJobRepository_Lifecycle(t *testing.T) {
	ctx := setupRepoTest(t)
	repo := NewGenerationJobRepository()

	qid := createQuestionnaire(t, ctx, models.ExtractedQuestion{RowNumber: 1, QuestionText: "Q1"})

	none, err := repo.GetLatestByQuestionnaire(ctx, qid)
	require.NoError(t, err)
	assert.Nil(t, none)

	job := &models.GenerationJob{QuestionnaireID: qid, Status: models.JobStatusRunning, TotalQuestions: 1}
	_, err = repo.Create(ctx, job)
	require.NoError(t, err)

	// one active job per questionnaire
	_, err = repo.Create(ctx, &models.GenerationJob{QuestionnaireID: qid, Status: models.JobStatusPending})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	active, err := repo.GetActiveByQuestionnaire(ctx, qid)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, job.ID, active.ID)

	job.RecordFailure(uuid.New(), "rate limited")
	ok, err := repo.UpdateProgress(ctx, job)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, job.ID, models.JobStatusCompleted, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "rate limited", got.Errors[0].Message)
	assert.NotNil(t, got.CompletedAt)

	active, err = repo.GetActiveByQuestionnaire(ctx, qid)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestStatisticsRepository_Get(t *testing.T) {
	ctx := setupRepoTest(t)

	_, err := NewPolicyRepository().Create(ctx, &models.Policy{Name: "p.pdf", Filename: "p.pdf", Content: "text"})
	require.NoError(t, err)
	qid := createQuestionnaire(t, ctx,
		models.ExtractedQuestion{RowNumber: 1, QuestionText: "Q1", Answer: strPtr("A")},
		models.ExtractedQuestion{RowNumber: 2, QuestionText: "Q2"},
	)
	questions, err := NewQuestionRepository().ListByQuestionnaire(ctx, qid)
	require.NoError(t, err)
	_, err = NewQuestionRepository().UpdateStatus(ctx, questions[0].ID, models.QuestionStatusApproved)
	require.NoError(t, err)

	stats, err := NewStatisticsRepository().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.Statistics{
		Policies:          1,
		Questionnaires:    1,
		Questions:         2,
		ApprovedQuestions: 1,
		LibraryAnswers:    0,
	}, stats)
}

func TestRepositories_RequireScope(t *testing.T) {
	_, err := NewPolicyRepository().List(context.Background())
	assert.ErrorIs(t, err, errNoScope)
}
