package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

// PolicyRepository provides data access for ingested policy documents.
type PolicyRepository interface {
	// Create stores the policy and returns its generated ID.
	Create(ctx context.Context, policy *models.Policy) (uuid.UUID, error)

	// List returns all policies newest first, without their content.
	List(ctx context.Context) ([]*models.Policy, error)

	// Get returns one policy including content, or apperrors.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.Policy, error)

	// Delete removes the policy; false means nothing matched.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// ListContents returns the non-empty texts of all policies, newest first.
	ListContents(ctx context.Context) ([]string, error)
}

type policyRepository struct{}

// NewPolicyRepository creates a new PolicyRepository.
func NewPolicyRepository() PolicyRepository {
	return &policyRepository{}
}

var _ PolicyRepository = (*policyRepository)(nil)

func (r *policyRepository) Create(ctx context.Context, policy *models.Policy) (uuid.UUID, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	policy.CreatedAt = time.Now()
	policy.TextLength = len([]rune(policy.Content))

	query := `
		INSERT INTO policies (id, name, filename, content, file_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = scope.Conn.Exec(ctx, query,
		policy.ID, policy.Name, policy.Filename, policy.Content, policy.FileSize, policy.CreatedAt)
	if err != nil {
		return uuid.Nil, apperrors.NewStoreError("create policy", err)
	}

	return policy.ID, nil
}

func (r *policyRepository) List(ctx context.Context) ([]*models.Policy, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, filename, file_size, char_length(content), created_at
		FROM policies
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewStoreError("list policies", err)
	}
	defer rows.Close()

	policies := make([]*models.Policy, 0)
	for rows.Next() {
		var p models.Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.Filename, &p.FileSize, &p.TextLength, &p.CreatedAt); err != nil {
			return nil, apperrors.NewStoreError("scan policy", err)
		}
		policies = append(policies, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list policies", err)
	}

	return policies, nil
}

func (r *policyRepository) Get(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, filename, content, file_size, char_length(content), created_at
		FROM policies
		WHERE id = $1`

	var p models.Policy
	err = scope.Conn.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Filename, &p.Content, &p.FileSize, &p.TextLength, &p.CreatedAt)
	if err != nil {
		return nil, apperrors.NewStoreError("get policy", notFoundOr(err))
	}

	return &p, nil
}

func (r *policyRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return false, err
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.NewStoreError("delete policy", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *policyRepository) ListContents(ctx context.Context) ([]string, error) {
	scope, err := scopeFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT content
		FROM policies
		WHERE btrim(content) <> ''
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewStoreError("list policy contents", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, apperrors.NewStoreError("scan policy content", err)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list policy contents", err)
	}

	return contents, nil
}
