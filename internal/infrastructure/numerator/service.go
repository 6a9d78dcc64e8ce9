// Package numerator implements sequential numbering on PostgreSQL.
package numerator

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	corenumerator "dentallab/internal/core/numerator"
	"dentallab/internal/infrastructure/storage/postgres"
)

// Querier is the subset of pgx used by the service.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service allocates numbers from the order_number_sequences table.
type Service struct {
	querier func(ctx context.Context) Querier
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a service bound to a fixed querier. Used by tests.
func New(q Querier) *Service {
	return &Service{
		querier: func(context.Context) Querier { return q },
	}
}

// NewFromTxManager creates a service that joins the transaction found in ctx.
// Order creation calls Next inside RunInTransaction, so the increment commits
// or rolls back together with the order row.
func NewFromTxManager(txm *postgres.TxManager) *Service {
	return &Service{
		querier: func(ctx context.Context) Querier { return txm.GetQuerier(ctx) },
	}
}

// Next returns the next formatted number of cfg's sequence.
func (s *Service) Next(ctx context.Context, cfg corenumerator.Config) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if cfg.Sequence == "" {
		return "", fmt.Errorf("numerator: empty sequence name")
	}
	num, err := s.nextStrict(ctx, cfg.Key())
	if err != nil {
		return "", err
	}
	return Format(cfg, num), nil
}

// nextStrict increments the counter row atomically. Concurrent callers queue
// on the row lock, so no two of them read the same value.
func (s *Service) nextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO order_number_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = order_number_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next %s: %w", key, err)
	}
	return num, nil
}

// Format renders num with cfg's zero padding.
func Format(cfg corenumerator.Config, num int64) string {
	width := cfg.PadWidth
	if width <= 0 {
		width = 6
	}
	return fmt.Sprintf("%0*d", width, num)
}
