package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/audit"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/repositories"
)

// QuestionService owns the review workflow of questionnaire questions.
type QuestionService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Question, error)

	// UpdateAnswer stores a manually written answer with the requested
	// review status (unapproved or approved).
	UpdateAnswer(ctx context.Context, id uuid.UUID, answer string, status models.QuestionStatus) (*models.Question, error)

	Approve(ctx context.Context, id uuid.UUID) (*models.Question, error)
	Unapprove(ctx context.Context, id uuid.UUID) (*models.Question, error)

	// BulkSetStatus applies status to every question independently and
	// reports per-item failures in the result.
	BulkSetStatus(ctx context.Context, ids []uuid.UUID, status models.QuestionStatus) (*models.BulkResult, error)
}

type questionService struct {
	repo    repositories.QuestionRepository
	auditor *audit.ReviewAuditor
	logger  *zap.Logger
}

// NewQuestionService creates a new QuestionService. Review decisions are
// recorded through auditor.
func NewQuestionService(repo repositories.QuestionRepository, auditor *audit.ReviewAuditor, logger *zap.Logger) QuestionService {
	return &questionService{
		repo:    repo,
		auditor: auditor,
		logger:  logger.Named("question"),
	}
}

var _ QuestionService = (*questionService)(nil)

func (s *questionService) Get(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	return s.repo.Get(ctx, id)
}

func (s *questionService) UpdateAnswer(ctx context.Context, id uuid.UUID, answer string, status models.QuestionStatus) (*models.Question, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, apperrors.NewValidationError("answer", "answer must not be empty")
	}
	if !status.IsReviewState() {
		return nil, apperrors.NewValidationError("status", "status must be %q or %q",
			models.QuestionStatusUnapproved, models.QuestionStatusApproved)
	}

	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAnswerAndStatus(ctx, id, answer, status, models.AnswerSourceManual)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("question %s: %w", id, apperrors.ErrNotFound)
	}

	s.logger.Debug("Answer updated",
		zap.String("question_id", id.String()),
		zap.String("status", string(status)))

	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.auditor.LogAnswerEdited(ctx, q, before.Status)
	return q, nil
}

func (s *questionService) Approve(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	return s.setStatus(ctx, id, models.QuestionStatusApproved)
}

func (s *questionService) Unapprove(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	return s.setStatus(ctx, id, models.QuestionStatusUnapproved)
}

// setStatus is the single-item review transition shared by the single and
// bulk operations. It touches only the one question.
func (s *questionService) setStatus(ctx context.Context, id uuid.UUID, target models.QuestionStatus) (*models.Question, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !q.HasAnswer() {
		return nil, apperrors.NewValidationError("status", "question has no answer to review")
	}
	if !q.Status.CanTransitionTo(target) {
		return nil, apperrors.NewValidationError("status", "cannot move from %s to %s", q.Status, target)
	}
	if q.Status == target {
		return q, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, target)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("question %s: %w", id, apperrors.ErrNotFound)
	}

	from := q.Status
	q.Status = target
	s.auditor.LogStatusChange(ctx, q, from)
	return q, nil
}

func (s *questionService) BulkSetStatus(ctx context.Context, ids []uuid.UUID, status models.QuestionStatus) (*models.BulkResult, error) {
	if len(ids) == 0 {
		return nil, apperrors.NewValidationError("question_ids", "at least one question id is required")
	}
	if !status.IsReviewState() {
		return nil, apperrors.NewValidationError("status", "status must be %q or %q",
			models.QuestionStatusUnapproved, models.QuestionStatusApproved)
	}

	result := models.NewBulkResult(len(ids))
	for _, id := range ids {
		if _, err := s.setStatus(ctx, id, status); err != nil {
			s.logger.Debug("Bulk status item failed", zap.String("question_id", id.String()), zap.Error(err))
			result.Failed("Question %s: %s", id, bulkItemMessage(err))
			continue
		}
		result.Succeeded()
	}

	s.logger.Info("Bulk status update",
		zap.String("status", string(status)),
		zap.Int("requested", result.TotalRequested),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.ErrorCount))

	return result, nil
}

// bulkItemMessage turns a per-item error into the reason shown to the caller.
func bulkItemMessage(err error) string {
	var ve *apperrors.ValidationError
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "not found"
	case errors.As(err, &ve):
		return ve.Message
	default:
		return "update failed"
	}
}
