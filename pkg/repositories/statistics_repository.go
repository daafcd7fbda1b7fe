package repositories

import (
	"context"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

// StatisticsRepository reports record-store totals.
type StatisticsRepository interface {
	Get(ctx context.Context) (*models.Statistics, error)
}

type statisticsRepository struct{}

// NewStatisticsRepository creates a new StatisticsRepository.
func NewStatisticsRepository() StatisticsRepository {
	return &statisticsRepository{}
}

var _ StatisticsRepository = (*statisticsRepository)(nil)

func (r *statisticsRepository) Get(ctx context.Context) (*models.Statistics, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			(SELECT COUNT(*) FROM policies),
			(SELECT COUNT(*) FROM questionnaires),
			(SELECT COUNT(*) FROM questions),
			(SELECT COUNT(*) FROM questions WHERE status = 'approved'),
			(SELECT COUNT(*) FROM answers)`

	var s models.Statistics
	err = scope.Conn.QueryRow(ctx, query).Scan(
		&s.Policies, &s.Questionnaires, &s.Questions, &s.ApprovedQuestions, &s.LibraryAnswers)
	if err != nil {
		return nil, apperrors.NewStoreError("get statistics", err)
	}

	return &s, nil
}
