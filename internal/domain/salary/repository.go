package salary

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository reads completed work and stores accrual records.
type Repository interface {
	// CompletedStages returns stages the employee completed in [from, to).
	CompletedStages(ctx context.Context, orgID, employeeID uuid.UUID, from, to time.Time) ([]StageWork, error)
	// OrderLines returns the priced lines of the given orders with their pay rules.
	OrderLines(ctx context.Context, orgID uuid.UUID, orderIDs []uuid.UUID) ([]Line, error)
	// EmployeesWithCompletedStages lists assignees of stages completed in [from, to).
	EmployeesWithCompletedStages(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]uuid.UUID, error)
	// UpsertRecord inserts or overwrites the record of (organization, employee, period).
	UpsertRecord(ctx context.Context, r *Record) error
	ListRecords(ctx context.Context, orgID uuid.UUID, period string) ([]Record, error)
}

// Locker serializes recomputation of one (employee, period).
type Locker interface {
	// Obtain returns a release func, or a RESOURCE_LOCKED error when another
	// holder has the key.
	Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}
