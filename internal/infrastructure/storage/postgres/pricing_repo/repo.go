// Package pricing_repo reads work items, client prices and price lists.
package pricing_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/types"
	"dentallab/internal/domain/pricing"
	"dentallab/internal/infrastructure/storage/postgres"
)

var workItemColumns = postgres.ExtractDBColumns[pricing.WorkItem]()

// Repo implements pricing.Repository.
type Repo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// New creates the pricing repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm, builder: postgres.Builder()}
}

func (r *Repo) GetWorkItem(ctx context.Context, orgID, workItemID uuid.UUID) (*pricing.WorkItem, error) {
	sql, args, err := r.builder.Select(workItemColumns...).From("work_items").
		Where(squirrel.Eq{"organization_id": orgID, "id": workItemID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var item pricing.WorkItem
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("work item", workItemID)
		}
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return &item, nil
}

func (r *Repo) clientExistsQuery(orgID, clientID uuid.UUID) squirrel.SelectBuilder {
	return r.builder.Select("1").From("clients").
		Where(squirrel.Eq{"organization_id": orgID, "id": clientID}).
		Prefix("SELECT EXISTS (").Suffix(")")
}

func (r *Repo) ClientExists(ctx context.Context, orgID, clientID uuid.UUID) (bool, error) {
	sql, args, err := r.clientExistsQuery(orgID, clientID).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var ok bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("check client: %w", err)
	}
	return ok, nil
}

func (r *Repo) clientPriceQuery(orgID, clientID, workItemID uuid.UUID) squirrel.SelectBuilder {
	return r.builder.Select("cp.price").From("client_prices cp").
		Join("clients c ON c.id = cp.client_id").
		Where(squirrel.Eq{"c.organization_id": orgID, "cp.client_id": clientID, "cp.work_item_id": workItemID}).
		Limit(1)
}

func (r *Repo) ClientPrice(ctx context.Context, orgID, clientID, workItemID uuid.UUID) (*types.Money, error) {
	return r.optionalMoney(ctx, "client price", r.clientPriceQuery(orgID, clientID, workItemID))
}

func (r *Repo) ClientPriceListID(ctx context.Context, orgID, clientID uuid.UUID) (*uuid.UUID, error) {
	q := r.builder.Select("pl.id").From("clients c").
		Join("price_lists pl ON pl.id = c.price_list_id").
		Where(squirrel.Eq{"c.organization_id": orgID, "c.id": clientID, "pl.is_active": true}).
		Limit(1)
	return r.optionalID(ctx, "client price list", q)
}

func (r *Repo) DefaultPriceListID(ctx context.Context, orgID uuid.UUID) (*uuid.UUID, error) {
	q := r.builder.Select("id").From("price_lists").
		Where(squirrel.Eq{"organization_id": orgID, "is_default": true, "is_active": true}).
		OrderBy("created_at").
		Limit(1)
	return r.optionalID(ctx, "default price list", q)
}

func (r *Repo) PriceListEntry(ctx context.Context, priceListID, workItemID uuid.UUID) (*types.Money, error) {
	q := r.builder.Select("price").From("price_list_items").
		Where(squirrel.Eq{"price_list_id": priceListID, "work_item_id": workItemID}).
		Limit(1)
	return r.optionalMoney(ctx, "price list entry", q)
}

func (r *Repo) optionalMoney(ctx context.Context, what string, q squirrel.SelectBuilder) (*types.Money, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var price types.Money
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	return &price, nil
}

func (r *Repo) optionalID(ctx context.Context, what string, q squirrel.SelectBuilder) (*uuid.UUID, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var id uuid.UUID
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	return &id, nil
}

var _ pricing.Repository = (*Repo)(nil)
