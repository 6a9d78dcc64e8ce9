package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"dentallab/internal/core/apperror"
)

// PostgreSQL error codes mapped to application errors.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
	pgLockNotAvailable    = "55P03"
)

// MapError translates constraint violations into application errors and
// wraps everything else with op.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return apperror.NewNotFound("referenced record", pgErr.ConstraintName).WithCause(err)
		case pgUniqueViolation:
			return apperror.NewConflict("record already exists").
				WithDetail("constraint", pgErr.ConstraintName).WithCause(err)
		case pgCheckViolation:
			return apperror.NewValidation("value violates a constraint").
				WithDetail("constraint", pgErr.ConstraintName).WithCause(err)
		case pgLockNotAvailable:
			return apperror.NewLocked(pgErr.TableName).WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
