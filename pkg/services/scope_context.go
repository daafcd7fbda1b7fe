package services

import (
	"context"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/database"
)

// ScopeContextFunc acquires a connection-scoped context for background work.
// Returns the scoped context, a cleanup function (MUST be called), and any error.
type ScopeContextFunc func(ctx context.Context) (context.Context, func(), error)

// NewScopeContextFunc creates a ScopeContextFunc that uses the given database.
func NewScopeContextFunc(db *database.DB) ScopeContextFunc {
	return database.NewScopeProvider(db).WithScope
}
