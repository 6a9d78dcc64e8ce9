package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"dentallab/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError("op", nil))

	fk := &pgconn.PgError{Code: "23503", ConstraintName: "order_items_work_item_id_fkey"}
	assert.True(t, apperror.IsNotFound(MapError("insert item", fk)))

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "salary_records_uniq"}
	assert.True(t, apperror.HasCode(MapError("insert", dup), apperror.CodeConflict))

	check := &pgconn.PgError{Code: "23514", ConstraintName: "materials_current_stock_check"}
	assert.True(t, apperror.HasCode(MapError("update", check), apperror.CodeValidation))

	plain := errors.New("connection reset")
	err := MapError("select orders", plain)
	assert.ErrorIs(t, err, plain)
	assert.Contains(t, err.Error(), "select orders")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, isRetryable(fmt.Errorf("decrease stock: %w", &pgconn.PgError{Code: "40001"})))
	assert.False(t, isRetryable(&pgconn.PgError{Code: "23514"}))
	assert.False(t, isRetryable(errors.New("connection reset")))
}
