package inventory

import (
	"context"

	"github.com/google/uuid"

	"dentallab/internal/core/types"
)

// ListFilter narrows material listings.
type ListFilter struct {
	LowStockOnly bool
	Search       string
	Limit        int
	Offset       int
}

// Repository persists materials and their ledger.
// Stock mutations are single conditional statements so concurrent callers
// cannot interleave between reading and writing a stock level.
type Repository interface {
	GetMaterial(ctx context.Context, orgID, materialID uuid.UUID) (*Material, error)
	ListMaterials(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]Material, error)
	ListMovements(ctx context.Context, orgID, materialID uuid.UUID, limit int) ([]Movement, error)

	// Decrease subtracts qty only if stock stays non-negative.
	// ok is false when the material is missing or stock is insufficient; stock is then unchanged.
	Decrease(ctx context.Context, orgID, materialID uuid.UUID, qty types.Quantity) (level StockLevel, ok bool, err error)

	// Increase adds qty and re-weights the average price when unitPrice is given.
	Increase(ctx context.Context, orgID, materialID uuid.UUID, qty types.Quantity, unitPrice *types.Money) (StockLevel, error)

	// SetStock overwrites stock with a counted value.
	SetStock(ctx context.Context, orgID, materialID uuid.UUID, counted types.Quantity) (StockLevel, error)

	InsertMovements(ctx context.Context, movements []Movement) error

	// OrderItemUsage lists the lines of an order.
	OrderItemUsage(ctx context.Context, orgID, orderID uuid.UUID) ([]ItemUsage, error)
	NormsForWorkItems(ctx context.Context, orgID uuid.UUID, workItemIDs []uuid.UUID) ([]Norm, error)

	// ClaimOrderWriteOff records that the order's consumption pass ran.
	// Reports false if it was already claimed.
	ClaimOrderWriteOff(ctx context.Context, orgID, orderID uuid.UUID, trigger Trigger) (bool, error)
}
