package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

// AnswerRepository provides data access for the answer library.
type AnswerRepository interface {
	Create(ctx context.Context, entry *models.AnswerLibraryEntry) (uuid.UUID, error)

	// BulkCreate inserts all entries with a single COPY and returns their IDs
	// in input order.
	BulkCreate(ctx context.Context, entries []*models.AnswerLibraryEntry) ([]uuid.UUID, error)

	// List returns all entries newest first.
	List(ctx context.Context) ([]*models.AnswerLibraryEntry, error)

	Get(ctx context.Context, id uuid.UUID) (*models.AnswerLibraryEntry, error)
	Update(ctx context.Context, id uuid.UUID, question, answer string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type answerRepository struct{}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository() AnswerRepository {
	return &answerRepository{}
}

var _ AnswerRepository = (*answerRepository)(nil)

var answerColumns = []string{
	"id", "question", "answer", "source_type", "source_name", "created_at", "updated_at",
}

func prepareAnswer(entry *models.AnswerLibraryEntry, now time.Time) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.SourceType == "" {
		entry.SourceType = models.AnswerSourceTypeUser
	}
	if entry.SourceName == "" {
		entry.SourceName = "User"
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now
}

func (r *answerRepository) Create(ctx context.Context, entry *models.AnswerLibraryEntry) (uuid.UUID, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	prepareAnswer(entry, time.Now())

	query := `
		INSERT INTO answers (id, question, answer, source_type, source_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = scope.Conn.Exec(ctx, query,
		entry.ID, entry.Question, entry.Answer, string(entry.SourceType), entry.SourceName,
		entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return uuid.Nil, apperrors.NewStoreError("create answer", err)
	}

	return entry.ID, nil
}

func (r *answerRepository) BulkCreate(ctx context.Context, entries []*models.AnswerLibraryEntry) ([]uuid.UUID, error) {
	if len(entries) == 0 {
		return []uuid.UUID{}, nil
	}

	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ids := make([]uuid.UUID, 0, len(entries))
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		prepareAnswer(e, now)
		ids = append(ids, e.ID)
		rows = append(rows, []any{
			e.ID, e.Question, e.Answer, string(e.SourceType), e.SourceName, e.CreatedAt, e.UpdatedAt,
		})
	}

	if _, err := scope.Conn.CopyFrom(ctx, pgx.Identifier{"answers"}, answerColumns, pgx.CopyFromRows(rows)); err != nil {
		return nil, apperrors.NewStoreError("bulk create answers", err)
	}

	return ids, nil
}

func scanAnswer(row pgx.Row) (*models.AnswerLibraryEntry, error) {
	var e models.AnswerLibraryEntry
	var sourceType string
	if err := row.Scan(&e.ID, &e.Question, &e.Answer, &sourceType, &e.SourceName, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.SourceType = models.AnswerSourceType(sourceType)
	return &e, nil
}

func (r *answerRepository) List(ctx context.Context) ([]*models.AnswerLibraryEntry, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, question, answer, source_type, source_name, created_at, updated_at
		FROM answers
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewStoreError("list answers", err)
	}
	defer rows.Close()

	entries := make([]*models.AnswerLibraryEntry, 0)
	for rows.Next() {
		e, err := scanAnswer(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("scan answer", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list answers", err)
	}

	return entries, nil
}

func (r *answerRepository) Get(ctx context.Context, id uuid.UUID) (*models.AnswerLibraryEntry, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, question, answer, source_type, source_name, created_at, updated_at
		FROM answers
		WHERE id = $1`

	e, err := scanAnswer(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, apperrors.NewStoreError("get answer", notFoundOr(err))
	}
	return e, nil
}

func (r *answerRepository) Update(ctx context.Context, id uuid.UUID, question, answer string) (bool, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE answers
		SET question = $2, answer = $3, updated_at = NOW()
		WHERE id = $1`

	tag, err := scope.Conn.Exec(ctx, query, id, question, answer)
	if err != nil {
		return false, apperrors.NewStoreError("update answer", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *answerRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return false, err
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM answers WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.NewStoreError("delete answer", err)
	}

	return tag.RowsAffected() > 0, nil
}
