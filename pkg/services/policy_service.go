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

// previewLength is how much extracted text is logged after an upload.
const previewLength = 200

// PolicyService ingests policy documents and assembles the policy corpus.
type PolicyService interface {
	// Upload extracts the document text and stores the policy.
	Upload(ctx context.Context, filename string, content []byte) (*models.Policy, error)

	List(ctx context.Context) ([]*models.Policy, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Policy, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Corpus returns every non-empty policy text, newest first, joined by a
	// blank line. An empty string means there is nothing to ground on.
	Corpus(ctx context.Context) (string, error)
}

type policyService struct {
	repo      repositories.PolicyRepository
	extractor TextExtractor
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPolicyService creates a new PolicyService.
func NewPolicyService(
	repo repositories.PolicyRepository,
	extractor TextExtractor,
	m *metrics.Metrics,
	logger *zap.Logger,
) PolicyService {
	return &policyService{
		repo:      repo,
		extractor: extractor,
		metrics:   m,
		logger:    logger.Named("policy"),
	}
}

var _ PolicyService = (*policyService)(nil)

func (s *policyService) Upload(ctx context.Context, filename string, content []byte) (*models.Policy, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." {
		return nil, apperrors.NewValidationError("file", "filename is required")
	}

	extracted, err := s.extractor.ExtractText(content)
	if err != nil {
		s.metrics.DocumentsIngested.WithLabelValues("policy", "failure").Inc()
		s.logger.Warn("Policy extraction failed",
			zap.String("filename", name),
			zap.Int("size", len(content)),
			zap.Error(err))
		return nil, err
	}

	policy := &models.Policy{
		Name:     name,
		Filename: name,
		Content:  extracted.Text,
		FileSize: int64(len(content)),
	}
	if _, err := s.repo.Create(ctx, policy); err != nil {
		return nil, err
	}

	s.metrics.DocumentsIngested.WithLabelValues("policy", "success").Inc()
	s.logger.Info("Policy uploaded",
		zap.String("policy_id", policy.ID.String()),
		zap.String("filename", name),
		zap.Int("pages", extracted.PageCount),
		zap.Ints("skipped_pages", extracted.SkippedPages),
		zap.Int("text_length", extracted.Length()),
		zap.String("preview", extracted.Preview(previewLength)))

	return policy, nil
}

func (s *policyService) List(ctx context.Context) ([]*models.Policy, error) {
	return s.repo.List(ctx)
}

func (s *policyService) Get(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	return s.repo.Get(ctx, id)
}

func (s *policyService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("policy %s: %w", id, apperrors.ErrNotFound)
	}

	s.logger.Info("Policy deleted", zap.String("policy_id", id.String()))
	return nil
}

func (s *policyService) Corpus(ctx context.Context) (string, error) {
	contents, err := s.repo.ListContents(ctx)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		if strings.TrimSpace(c) != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, documents.PageSeparator), nil
}
