package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

// GenerationJobRepository provides data access for batch generation jobs.
type GenerationJobRepository interface {
	// Create stores a new job. A second active job for the same
	// questionnaire fails with apperrors.ErrConflict.
	Create(ctx context.Context, job *models.GenerationJob) (uuid.UUID, error)

	Get(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)

	// GetActiveByQuestionnaire returns the pending or running job, or nil if none.
	GetActiveByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error)

	// GetLatestByQuestionnaire returns the most recent job, or nil if none.
	GetLatestByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error)

	// UpdateProgress persists the counters and per-question errors.
	UpdateProgress(ctx context.Context, job *models.GenerationJob) (bool, error)

	// UpdateStatus moves an active job to status. Terminal statuses stamp
	// completed_at and are final: false means the job was not active.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errorMessage *string) (bool, error)
}

type generationJobRepository struct{}

// NewGenerationJobRepository creates a new GenerationJobRepository.
func NewGenerationJobRepository() GenerationJobRepository {
	return &generationJobRepository{}
}

var _ GenerationJobRepository = (*generationJobRepository)(nil)

const jobColumns = `
	id, questionnaire_id, status, total_questions,
	processed, succeeded, failed, errors, error_message,
	started_at, completed_at, created_at, updated_at`

func (r *generationJobRepository) Create(ctx context.Context, job *models.GenerationJob) (uuid.UUID, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	now := time.Now()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Errors == nil {
		job.Errors = []models.JobError{}
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	errorsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal job errors: %w", err)
	}

	query := `
		INSERT INTO generation_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = scope.Conn.Exec(ctx, query,
		job.ID, job.QuestionnaireID, string(job.Status), job.TotalQuestions,
		job.Processed, job.Succeeded, job.Failed, errorsJSON, job.ErrorMessage,
		job.StartedAt, job.CompletedAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, fmt.Errorf("questionnaire %s already has an active job: %w", job.QuestionnaireID, apperrors.ErrConflict)
		}
		return uuid.Nil, apperrors.NewStoreError("create generation job", err)
	}

	return job.ID, nil
}

func scanJob(row pgx.Row) (*models.GenerationJob, error) {
	var job models.GenerationJob
	var status string
	var errorsJSON []byte
	err := row.Scan(&job.ID, &job.QuestionnaireID, &status, &job.TotalQuestions,
		&job.Processed, &job.Succeeded, &job.Failed, &errorsJSON, &job.ErrorMessage,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)

	job.Errors = []models.JobError{}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &job.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal job errors: %w", err)
		}
	}
	return &job, nil
}

func (r *generationJobRepository) Get(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`

	job, err := scanJob(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, apperrors.NewStoreError("get generation job", notFoundOr(err))
	}
	return job, nil
}

func (r *generationJobRepository) getOne(ctx context.Context, op, query string, args ...any) (*models.GenerationJob, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	job, err := scanJob(scope.Conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(op, err)
	}
	return job, nil
}

func (r *generationJobRepository) GetActiveByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE questionnaire_id = $1 AND status IN ('pending', 'running')
		ORDER BY created_at DESC
		LIMIT 1`
	return r.getOne(ctx, "get active generation job", query, questionnaireID)
}

func (r *generationJobRepository) GetLatestByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE questionnaire_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return r.getOne(ctx, "get latest generation job", query, questionnaireID)
}

func (r *generationJobRepository) UpdateProgress(ctx context.Context, job *models.GenerationJob) (bool, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return false, err
	}

	errorsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return false, fmt.Errorf("marshal job errors: %w", err)
	}
	job.UpdatedAt = time.Now()

	query := `
		UPDATE generation_jobs
		SET processed = $2, succeeded = $3, failed = $4, errors = $5, updated_at = $6
		WHERE id = $1`

	tag, err := scope.Conn.Exec(ctx, query,
		job.ID, job.Processed, job.Succeeded, job.Failed, errorsJSON, job.UpdatedAt)
	if err != nil {
		return false, apperrors.NewStoreError("update generation job progress", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *generationJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errorMessage *string) (bool, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return false, err
	}

	var completedAt *time.Time
	if status.IsTerminal() {
		now := time.Now()
		completedAt = &now
	}

	query := `
		UPDATE generation_jobs
		SET status = $2,
		    error_message = COALESCE($3, error_message),
		    completed_at = COALESCE($4, completed_at),
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'running')`

	tag, err := scope.Conn.Exec(ctx, query, id, string(status), errorMessage, completedAt)
	if err != nil {
		return false, apperrors.NewStoreError("update generation job status", err)
	}

	return tag.RowsAffected() > 0, nil
}
