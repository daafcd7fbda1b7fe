package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/documents"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/metrics"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/repositories"
)

// QuestionnaireService ingests questionnaires and serves their questions and
// approved exports.
type QuestionnaireService interface {
	// Upload extracts the question rows and stores them in sheet order.
	Upload(ctx context.Context, filename string, content []byte) (*models.Questionnaire, error)

	List(ctx context.Context) ([]*models.Questionnaire, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Questionnaire, error)

	// Delete removes the questionnaire together with its questions.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListQuestions returns the questions in stored order, optionally
	// restricted to one status.
	ListQuestions(ctx context.Context, id uuid.UUID, status *models.QuestionStatus) ([]*models.Question, error)

	// ExportApproved returns the approved question/answer pairs.
	// Returns apperrors.ErrNoApprovedAnswers when nothing is approved.
	ExportApproved(ctx context.Context, id uuid.UUID) ([]models.ExportRow, error)

	// ExportWorkbook renders the approved questions as an xlsx file.
	ExportWorkbook(ctx context.Context, id uuid.UUID) ([]byte, error)

	Statistics(ctx context.Context) (*models.Statistics, error)
}

type questionnaireService struct {
	questionnaireRepo repositories.QuestionnaireRepository
	questionRepo      repositories.QuestionRepository
	statsRepo         repositories.StatisticsRepository
	extractor         QuestionListExtractor
	metrics           *metrics.Metrics
	logger            *zap.Logger
}

// NewQuestionnaireService creates a new QuestionnaireService.
func NewQuestionnaireService(
	questionnaireRepo repositories.QuestionnaireRepository,
	questionRepo repositories.QuestionRepository,
	statsRepo repositories.StatisticsRepository,
	extractor QuestionListExtractor,
	m *metrics.Metrics,
	logger *zap.Logger,
) QuestionnaireService {
	return &questionnaireService{
		questionnaireRepo: questionnaireRepo,
		questionRepo:      questionRepo,
		statsRepo:         statsRepo,
		extractor:         extractor,
		metrics:           m,
		logger:            logger.Named("questionnaire"),
	}
}

var _ QuestionnaireService = (*questionnaireService)(nil)

func (s *questionnaireService) Upload(ctx context.Context, filename string, content []byte) (*models.Questionnaire, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." {
		return nil, apperrors.NewValidationError("file", "filename is required")
	}

	extracted, err := s.extractor.ExtractQuestions(name, content)
	if err != nil {
		s.metrics.DocumentsIngested.WithLabelValues("questionnaire", "failure").Inc()
		s.logger.Warn("Questionnaire extraction failed",
			zap.String("filename", name),
			zap.Error(err))
		return nil, err
	}

	q := &models.Questionnaire{Name: name, Filename: name}
	if _, err := s.questionnaireRepo.CreateWithQuestions(ctx, q, extracted); err != nil {
		return nil, err
	}

	s.metrics.DocumentsIngested.WithLabelValues("questionnaire", "success").Inc()
	s.logger.Info("Questionnaire uploaded",
		zap.String("questionnaire_id", q.ID.String()),
		zap.String("filename", name),
		zap.Int("questions", q.QuestionCount),
		zap.Int("prefilled", q.UnapprovedCount))

	return q, nil
}

func (s *questionnaireService) List(ctx context.Context) ([]*models.Questionnaire, error) {
	return s.questionnaireRepo.ListWithCounts(ctx)
}

func (s *questionnaireService) Get(ctx context.Context, id uuid.UUID) (*models.Questionnaire, error) {
	return s.questionnaireRepo.Get(ctx, id)
}

func (s *questionnaireService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.questionnaireRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("questionnaire %s: %w", id, apperrors.ErrNotFound)
	}

	s.logger.Info("Questionnaire deleted", zap.String("questionnaire_id", id.String()))
	return nil
}

func (s *questionnaireService) ListQuestions(ctx context.Context, id uuid.UUID, status *models.QuestionStatus) ([]*models.Question, error) {
	if _, err := s.questionnaireRepo.Get(ctx, id); err != nil {
		return nil, err
	}

	if status == nil {
		return s.questionRepo.ListByQuestionnaire(ctx, id)
	}
	if !models.IsValidQuestionStatus(*status) {
		return nil, apperrors.NewValidationError("status", "invalid status %q", *status)
	}
	return s.questionRepo.ListByQuestionnaireAndStatus(ctx, id, *status)
}

func (s *questionnaireService) approvedQuestions(ctx context.Context, id uuid.UUID) ([]*models.Question, error) {
	if _, err := s.questionnaireRepo.Get(ctx, id); err != nil {
		return nil, err
	}

	approved, err := s.questionRepo.ListByQuestionnaireAndStatus(ctx, id, models.QuestionStatusApproved)
	if err != nil {
		return nil, err
	}
	if len(approved) == 0 {
		return nil, apperrors.ErrNoApprovedAnswers
	}
	return approved, nil
}

func (s *questionnaireService) ExportApproved(ctx context.Context, id uuid.UUID) ([]models.ExportRow, error) {
	approved, err := s.approvedQuestions(ctx, id)
	if err != nil {
		return nil, err
	}

	rows := make([]models.ExportRow, 0, len(approved))
	for _, q := range approved {
		row := models.ExportRow{Question: q.QuestionText}
		if q.Answer != nil {
			row.Answer = *q.Answer
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *questionnaireService) ExportWorkbook(ctx context.Context, id uuid.UUID) ([]byte, error) {
	approved, err := s.approvedQuestions(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := documents.WriteAnswerWorkbook(approved)
	if err != nil {
		return nil, fmt.Errorf("render export workbook: %w", err)
	}
	return data, nil
}

func (s *questionnaireService) Statistics(ctx context.Context) (*models.Statistics, error) {
	return s.statsRepo.Get(ctx)
}
