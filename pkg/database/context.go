package database

import (
	"context"
)

type contextKey string

const (
	// ScopeKey is the context key for storing the scoped database connection.
	ScopeKey contextKey = "dbScope"
)

// GetScope retrieves the scoped database connection from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	if !ok || scope == nil || scope.Conn == nil {
		return nil, false
	}
	return scope, true
}

// SetScope stores the scoped database connection in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeProvider creates connection-scoped contexts for work that runs outside
// an HTTP request, such as generation jobs.
type ScopeProvider struct {
	db *DB
}

// NewScopeProvider creates a ScopeProvider for the given database.
func NewScopeProvider(db *DB) *ScopeProvider {
	return &ScopeProvider{db: db}
}

// WithScope returns a context carrying a fresh connection scope.
// The cleanup function must be called when the scope is no longer needed.
func (p *ScopeProvider) WithScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := p.db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}
