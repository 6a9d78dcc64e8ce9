package pricing

import (
	"context"

	"github.com/google/uuid"

	"dentallab/internal/core/types"
)

// Repository reads pricing reference data. Every method is read-only and
// scoped to one organization.
type Repository interface {
	// GetWorkItem returns apperror NotFound if the item does not exist in orgID.
	GetWorkItem(ctx context.Context, orgID, workItemID uuid.UUID) (*WorkItem, error)

	// ClientExists reports whether the client belongs to orgID.
	ClientExists(ctx context.Context, orgID, clientID uuid.UUID) (bool, error)

	// ClientPrice returns the client's override for the work item, or nil.
	ClientPrice(ctx context.Context, orgID, clientID, workItemID uuid.UUID) (*types.Money, error)

	// ClientPriceListID returns the active price list assigned to the client, or nil.
	ClientPriceListID(ctx context.Context, orgID, clientID uuid.UUID) (*uuid.UUID, error)

	// DefaultPriceListID returns the organization's active default price list, or nil.
	DefaultPriceListID(ctx context.Context, orgID uuid.UUID) (*uuid.UUID, error)

	// PriceListEntry returns the price of the work item in the list, or nil.
	PriceListEntry(ctx context.Context, priceListID, workItemID uuid.UUID) (*types.Money, error)
}
