package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/repositories"
)

// DefaultImportSourceName labels bulk-imported entries when the caller gives no name.
const DefaultImportSourceName = "Bulk Import"

// AnswerLibraryService manages reusable question/answer pairs.
type AnswerLibraryService interface {
	Create(ctx context.Context, question, answer string) (*models.AnswerLibraryEntry, error)
	List(ctx context.Context) ([]*models.AnswerLibraryEntry, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AnswerLibraryEntry, error)
	Update(ctx context.Context, id uuid.UUID, question, answer string) (*models.AnswerLibraryEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// BulkImport validates each pair independently and inserts the valid
	// ones. Batches above the configured maximum are rejected whole.
	BulkImport(ctx context.Context, pairs []models.AnswerPair, sourceName string) (*models.BulkResult, error)

	// ImportFile reads question/answer pairs from a questionnaire-shaped
	// spreadsheet and imports them like BulkImport.
	ImportFile(ctx context.Context, filename string, content []byte) (*models.BulkResult, error)
}

type answerLibraryService struct {
	repo          repositories.AnswerRepository
	extractor     QuestionListExtractor
	maxBulkImport int
	logger        *zap.Logger
}

// NewAnswerLibraryService creates a new AnswerLibraryService.
func NewAnswerLibraryService(
	repo repositories.AnswerRepository,
	extractor QuestionListExtractor,
	maxBulkImport int,
	logger *zap.Logger,
) AnswerLibraryService {
	return &answerLibraryService{
		repo:          repo,
		extractor:     extractor,
		maxBulkImport: maxBulkImport,
		logger:        logger.Named("answer-library"),
	}
}

var _ AnswerLibraryService = (*answerLibraryService)(nil)

func validatePair(question, answer string) (string, string, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" {
		return "", "", apperrors.NewValidationError("question", "question must not be empty")
	}
	if answer == "" {
		return "", "", apperrors.NewValidationError("answer", "answer must not be empty")
	}
	return question, answer, nil
}

func (s *answerLibraryService) Create(ctx context.Context, question, answer string) (*models.AnswerLibraryEntry, error) {
	question, answer, err := validatePair(question, answer)
	if err != nil {
		return nil, err
	}

	entry := &models.AnswerLibraryEntry{
		Question:   question,
		Answer:     answer,
		SourceType: models.AnswerSourceTypeUser,
		SourceName: "User",
	}
	if _, err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *answerLibraryService) List(ctx context.Context) ([]*models.AnswerLibraryEntry, error) {
	return s.repo.List(ctx)
}

func (s *answerLibraryService) Get(ctx context.Context, id uuid.UUID) (*models.AnswerLibraryEntry, error) {
	return s.repo.Get(ctx, id)
}

func (s *answerLibraryService) Update(ctx context.Context, id uuid.UUID, question, answer string) (*models.AnswerLibraryEntry, error) {
	question, answer, err := validatePair(question, answer)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, question, answer)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("answer %s: %w", id, apperrors.ErrNotFound)
	}
	return s.repo.Get(ctx, id)
}

func (s *answerLibraryService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("answer %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// importRow is one candidate pair with the row number used in error messages.
type importRow struct {
	row      int
	question string
	answer   string
}

func (s *answerLibraryService) BulkImport(ctx context.Context, pairs []models.AnswerPair, sourceName string) (*models.BulkResult, error) {
	rows := make([]importRow, 0, len(pairs))
	for i, p := range pairs {
		rows = append(rows, importRow{row: i + 1, question: p.Question, answer: p.Answer})
	}
	return s.importRows(ctx, rows, sourceName)
}

func (s *answerLibraryService) ImportFile(ctx context.Context, filename string, content []byte) (*models.BulkResult, error) {
	extracted, err := s.extractor.ExtractQuestions(filename, content)
	if err != nil {
		return nil, err
	}

	rows := make([]importRow, 0, len(extracted))
	for _, eq := range extracted {
		r := importRow{row: eq.RowNumber, question: eq.QuestionText}
		if eq.Answer != nil {
			r.answer = *eq.Answer
		}
		rows = append(rows, r)
	}
	return s.importRows(ctx, rows, filename)
}

func (s *answerLibraryService) importRows(ctx context.Context, rows []importRow, sourceName string) (*models.BulkResult, error) {
	if len(rows) == 0 {
		return nil, apperrors.NewValidationError("answers", "no answers provided")
	}
	if s.maxBulkImport > 0 && len(rows) > s.maxBulkImport {
		return nil, apperrors.NewValidationError("answers",
			"maximum %d answers per import, got %d", s.maxBulkImport, len(rows))
	}

	sourceName = strings.TrimSpace(sourceName)
	if sourceName == "" {
		sourceName = DefaultImportSourceName
	}

	result := models.NewBulkResult(len(rows))
	entries := make([]*models.AnswerLibraryEntry, 0, len(rows))
	for _, r := range rows {
		question, answer, err := validatePair(r.question, r.answer)
		if err != nil {
			result.Failed("Row %d: Missing question or answer", r.row)
			continue
		}
		entries = append(entries, &models.AnswerLibraryEntry{
			Question:   question,
			Answer:     answer,
			SourceType: models.AnswerSourceTypeBulkImport,
			SourceName: sourceName,
		})
	}

	if len(entries) > 0 {
		ids, err := s.repo.BulkCreate(ctx, entries)
		if err != nil {
			return nil, err
		}
		result.CreatedIDs = ids
		result.SuccessCount = len(ids)
	}

	s.logger.Info("Answer library import",
		zap.String("source", sourceName),
		zap.Int("requested", result.TotalRequested),
		zap.Int("created", result.SuccessCount),
		zap.Int("failed", result.ErrorCount))

	return result, nil
}
