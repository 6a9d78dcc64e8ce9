package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/types"
)

// Resolver picks the price to charge for a work item. It never writes.
//
// Precedence, first match wins:
//  1. manual price supplied for the order line
//  2. client-specific override
//  3. the client's assigned price list, then the organization default list
//  4. the work item base price
type Resolver struct {
	repo Repository
}

// NewResolver creates a price resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the unit price of workItemID for clientID.
// A nil clientID skips the client levels. A manual price wins over every level,
// but the work item and the client must still belong to orgID.
func (r *Resolver) Resolve(ctx context.Context, orgID uuid.UUID, clientID *uuid.UUID, workItemID uuid.UUID, manual *types.Money) (Resolution, error) {
	if manual != nil && manual.IsNegative() {
		return Resolution{}, apperror.NewValidation("manual price must not be negative").
			WithDetail("work_item_id", workItemID)
	}

	item, err := r.repo.GetWorkItem(ctx, orgID, workItemID)
	if err != nil {
		return Resolution{}, err
	}
	if clientID != nil {
		if err := r.CheckClient(ctx, orgID, *clientID); err != nil {
			return Resolution{}, err
		}
	}

	if manual != nil {
		return Resolution{Price: *manual, Source: SourceManual}, nil
	}

	if clientID != nil {
		res, found, err := r.resolveForClient(ctx, orgID, *clientID, workItemID)
		if err != nil {
			return Resolution{}, err
		}
		if found {
			return res, nil
		}
	}

	res, found, err := r.resolveDefaultList(ctx, orgID, workItemID)
	if err != nil {
		return Resolution{}, err
	}
	if found {
		return res, nil
	}

	return Resolution{Price: item.BasePrice, Source: SourceBasePrice}, nil
}

// CheckClient returns apperror NotFound unless the client belongs to orgID.
func (r *Resolver) CheckClient(ctx context.Context, orgID, clientID uuid.UUID) error {
	ok, err := r.repo.ClientExists(ctx, orgID, clientID)
	if err != nil {
		return fmt.Errorf("check client: %w", err)
	}
	if !ok {
		return apperror.NewNotFound("client", clientID)
	}
	return nil
}

func (r *Resolver) resolveForClient(ctx context.Context, orgID, clientID, workItemID uuid.UUID) (Resolution, bool, error) {
	price, err := r.repo.ClientPrice(ctx, orgID, clientID, workItemID)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("client price: %w", err)
	}
	if price != nil {
		return Resolution{Price: *price, Source: SourceClientPrice}, true, nil
	}

	listID, err := r.repo.ClientPriceListID(ctx, orgID, clientID)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("client price list: %w", err)
	}
	if listID == nil {
		return Resolution{}, false, nil
	}
	return r.fromList(ctx, *listID, workItemID)
}

func (r *Resolver) resolveDefaultList(ctx context.Context, orgID, workItemID uuid.UUID) (Resolution, bool, error) {
	listID, err := r.repo.DefaultPriceListID(ctx, orgID)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("default price list: %w", err)
	}
	if listID == nil {
		return Resolution{}, false, nil
	}
	return r.fromList(ctx, *listID, workItemID)
}

func (r *Resolver) fromList(ctx context.Context, listID, workItemID uuid.UUID) (Resolution, bool, error) {
	price, err := r.repo.PriceListEntry(ctx, listID, workItemID)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("price list entry: %w", err)
	}
	if price == nil {
		return Resolution{}, false, nil
	}
	return Resolution{Price: *price, Source: SourcePriceList}, true, nil
}
