package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

// QuestionRepository provides data access for questionnaire questions.
type QuestionRepository interface {
	// ListByQuestionnaire returns all questions in stored order.
	ListByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) ([]*models.Question, error)

	// ListByQuestionnaireAndStatus returns the questions in one status, in stored order.
	ListByQuestionnaireAndStatus(ctx context.Context, questionnaireID uuid.UUID, status models.QuestionStatus) ([]*models.Question, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Question, error)

	// UpdateAnswerAndStatus writes the answer, its status and provenance together.
	UpdateAnswerAndStatus(ctx context.Context, id uuid.UUID, answer string, status models.QuestionStatus, source models.AnswerSource) (bool, error)

	// UpdateStatus changes the review status of a question that has an answer.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.QuestionStatus) (bool, error)
}

type questionRepository struct{}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository() QuestionRepository {
	return &questionRepository{}
}

var _ QuestionRepository = (*questionRepository)(nil)

const questionColumns = `
	id, questionnaire_id, position, question_text,
	answer, status, answer_source, created_at, updated_at`

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	var status string
	var source *string
	err := row.Scan(&q.ID, &q.QuestionnaireID, &q.Position, &q.QuestionText,
		&q.Answer, &status, &source, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.Status = models.QuestionStatus(status)
	if source != nil {
		s := models.AnswerSource(*source)
		q.AnswerSource = &s
	}
	return &q, nil
}

func (r *questionRepository) list(ctx context.Context, op, query string, args ...any) ([]*models.Question, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError(op, err)
	}
	defer rows.Close()

	questions := make([]*models.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("scan question", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError(op, err)
	}

	return questions, nil
}

func (r *questionRepository) ListByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + `
		FROM questions
		WHERE questionnaire_id = $1
		ORDER BY position`
	return r.list(ctx, "list questions", query, questionnaireID)
}

func (r *questionRepository) ListByQuestionnaireAndStatus(ctx context.Context, questionnaireID uuid.UUID, status models.QuestionStatus) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + `
		FROM questions
		WHERE questionnaire_id = $1 AND status = $2
		ORDER BY position`
	return r.list(ctx, "list questions by status", query, questionnaireID, string(status))
}

func (r *questionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`

	q, err := scanQuestion(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, apperrors.NewStoreError("get question", notFoundOr(err))
	}
	return q, nil
}

func (r *questionRepository) UpdateAnswerAndStatus(ctx context.Context, id uuid.UUID, answer string, status models.QuestionStatus, source models.AnswerSource) (bool, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE questions
		SET answer = $2, status = $3, answer_source = $4, updated_at = NOW()
		WHERE id = $1`

	tag, err := scope.Conn.Exec(ctx, query, id, answer, string(status), string(source))
	if err != nil {
		return false, apperrors.NewStoreError("update question answer", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *questionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.QuestionStatus) (bool, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE questions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND answer IS NOT NULL`

	tag, err := scope.Conn.Exec(ctx, query, id, string(status))
	if err != nil {
		return false, apperrors.NewStoreError("update question status", err)
	}

	return tag.RowsAffected() > 0, nil
}
