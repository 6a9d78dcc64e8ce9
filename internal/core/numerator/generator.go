package numerator

import (
	"context"
)

// Generator hands out the next number of a sequence.
// Implementations must be safe under concurrent callers: two callers never
// receive the same value for the same key. Called inside the creation
// transaction, a rollback also gives the number back, so sequences have no gaps.
type Generator interface {
	// Next returns the next formatted number, e.g. "000042".
	Next(ctx context.Context, cfg Config) (string, error)
}
