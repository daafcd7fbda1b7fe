package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/database"
)

var errNoScope = errors.New("no database scope in context")

// scopeFrom returns the connection scope placed in ctx by the request
// middleware or a background job.
func scopeFrom(ctx context.Context) (*database.Scope, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}
	return scope, nil
}

// notFoundOr maps pgx.ErrNoRows to apperrors.ErrNotFound.
func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
