package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

// QuestionnaireRepository provides data access for questionnaires. Question
// counts are always computed from the live question rows.
type QuestionnaireRepository interface {
	// CreateWithQuestions stores the questionnaire and all of its questions
	// in one transaction. Rows that carry an answer are stored as
	// unapproved with source imported.
	CreateWithQuestions(ctx context.Context, q *models.Questionnaire, questions []models.ExtractedQuestion) (uuid.UUID, error)

	// ListWithCounts returns all questionnaires newest first.
	ListWithCounts(ctx context.Context) ([]*models.Questionnaire, error)

	// Get returns one questionnaire with counts, or apperrors.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.Questionnaire, error)

	// Delete removes the questionnaire and, by cascade, its questions and jobs.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type questionnaireRepository struct{}

// NewQuestionnaireRepository creates a new QuestionnaireRepository.
func NewQuestionnaireRepository() QuestionnaireRepository {
	return &questionnaireRepository{}
}

var _ QuestionnaireRepository = (*questionnaireRepository)(nil)

var questionCopyColumns = []string{
	"id", "questionnaire_id", "position", "question_text",
	"answer", "status", "answer_source", "created_at", "updated_at",
}

func (r *questionnaireRepository) CreateWithQuestions(ctx context.Context, q *models.Questionnaire, questions []models.ExtractedQuestion) (uuid.UUID, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	q.CreatedAt = time.Now()

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return uuid.Nil, apperrors.NewStoreError("begin questionnaire transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO questionnaires (id, name, filename, created_at)
		VALUES ($1, $2, $3, $4)`,
		q.ID, q.Name, q.Filename, q.CreatedAt)
	if err != nil {
		return uuid.Nil, apperrors.NewStoreError("create questionnaire", err)
	}

	rows := make([][]any, 0, len(questions))
	for i, eq := range questions {
		status := models.QuestionStatusCreated
		var source *string
		if eq.Answer != nil {
			status = models.QuestionStatusUnapproved
			imported := string(models.AnswerSourceImported)
			source = &imported
		}
		rows = append(rows, []any{
			uuid.New(), q.ID, i + 1, eq.QuestionText,
			eq.Answer, string(status), source, q.CreatedAt, q.CreatedAt,
		})
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"questions"}, questionCopyColumns, pgx.CopyFromRows(rows)); err != nil {
		return uuid.Nil, apperrors.NewStoreError("create questions", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, apperrors.NewStoreError("commit questionnaire", err)
	}

	q.QuestionCount = len(questions)
	for _, eq := range questions {
		if eq.Answer != nil {
			q.UnapprovedCount++
		} else {
			q.CreatedCount++
		}
	}

	return q.ID, nil
}

const questionnaireWithCountsQuery = `
	SELECT q.id, q.name, q.filename, q.created_at,
	       COUNT(qs.id),
	       COUNT(qs.id) FILTER (WHERE qs.status = 'created'),
	       COUNT(qs.id) FILTER (WHERE qs.status = 'unapproved'),
	       COUNT(qs.id) FILTER (WHERE qs.status = 'approved')
	FROM questionnaires q
	LEFT JOIN questions qs ON qs.questionnaire_id = q.id`

func scanQuestionnaire(row pgx.Row) (*models.Questionnaire, error) {
	var q models.Questionnaire
	err := row.Scan(&q.ID, &q.Name, &q.Filename, &q.CreatedAt,
		&q.QuestionCount, &q.CreatedCount, &q.UnapprovedCount, &q.ApprovedCount)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *questionnaireRepository) ListWithCounts(ctx context.Context) ([]*models.Questionnaire, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := questionnaireWithCountsQuery + `
		GROUP BY q.id
		ORDER BY q.created_at DESC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewStoreError("list questionnaires", err)
	}
	defer rows.Close()

	questionnaires := make([]*models.Questionnaire, 0)
	for rows.Next() {
		q, err := scanQuestionnaire(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("scan questionnaire", err)
		}
		questionnaires = append(questionnaires, q)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list questionnaires", err)
	}

	return questionnaires, nil
}

func (r *questionnaireRepository) Get(ctx context.Context, id uuid.UUID) (*models.Questionnaire, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := questionnaireWithCountsQuery + `
		WHERE q.id = $1
		GROUP BY q.id`

	q, err := scanQuestionnaire(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, apperrors.NewStoreError("get questionnaire", notFoundOr(err))
	}
	return q, nil
}

func (r *questionnaireRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return false, err
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM questionnaires WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.NewStoreError("delete questionnaire", err)
	}

	return tag.RowsAffected() > 0, nil
}
