// Package inventory_repo stores materials and the stock movement ledger.
package inventory_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/types"
	"dentallab/internal/domain/inventory"
	"dentallab/internal/infrastructure/storage/postgres"
)

const (
	materialsTable = "materials"
	movementsTable = "material_movements"
	normsTable     = "material_norms"
	writeOffsTable = "order_write_offs"
)

var (
	materialColumns = postgres.ExtractDBColumns[inventory.Material]()
	movementColumns = postgres.ExtractDBColumns[inventory.Movement]()
)

// Repo implements inventory.Repository.
type Repo struct {
	txm      *postgres.TxManager
	inserter *postgres.BatchInserter
	builder  squirrel.StatementBuilderType
}

// New creates the inventory repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:      txm,
		inserter: postgres.NewBatchInserter(txm),
		builder:  postgres.Builder(),
	}
}

func (r *Repo) GetMaterial(ctx context.Context, orgID, materialID uuid.UUID) (*inventory.Material, error) {
	sql, args, err := r.builder.Select(materialColumns...).From(materialsTable).
		Where(squirrel.Eq{"organization_id": orgID, "id": materialID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var m inventory.Material
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("material", materialID)
		}
		return nil, fmt.Errorf("get material: %w", err)
	}
	return &m, nil
}

func (r *Repo) listMaterialsQuery(orgID uuid.UUID, f inventory.ListFilter) squirrel.SelectBuilder {
	q := r.builder.Select(materialColumns...).From(materialsTable).
		Where(squirrel.Eq{"organization_id": orgID})
	if f.LowStockOnly {
		q = q.Where("current_stock < min_stock")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where(squirrel.ILike{"name": "%" + s + "%"})
	}
	q = q.OrderBy("name", "id")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

func (r *Repo) ListMaterials(ctx context.Context, orgID uuid.UUID, f inventory.ListFilter) ([]inventory.Material, error) {
	sql, args, err := r.listMaterialsQuery(orgID, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	materials := []inventory.Material{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &materials, sql, args...); err != nil {
		return nil, fmt.Errorf("select materials: %w", err)
	}
	return materials, nil
}

func (r *Repo) ListMovements(ctx context.Context, orgID, materialID uuid.UUID, limit int) ([]inventory.Movement, error) {
	q := r.builder.Select(movementColumns...).From(movementsTable).
		Where(squirrel.Eq{"organization_id": orgID, "material_id": materialID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	movements := []inventory.Movement{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// decreaseSQL subtracts only while the result stays non-negative. No row
// means a missing material or insufficient stock, and nothing changed.
const decreaseSQL = `
	UPDATE materials
	SET current_stock = current_stock - $1, updated_at = NOW()
	WHERE organization_id = $2 AND id = $3 AND current_stock >= $1
	RETURNING id, name, unit, current_stock + $1 AS stock_before, current_stock, min_stock`

func (r *Repo) Decrease(ctx context.Context, orgID, materialID uuid.UUID, qty types.Quantity) (inventory.StockLevel, bool, error) {
	var level inventory.StockLevel
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &level, decreaseSQL, qty, orgID, materialID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return level, false, nil
		}
		return level, false, postgres.MapError("decrease stock", err)
	}
	return level, true, nil
}

// increaseSQL adds stock and re-weights the average price over the old and
// received quantities when a unit price is supplied.
const increaseSQL = `
	UPDATE materials
	SET avg_price = CASE
			WHEN $2::numeric IS NULL OR current_stock + $1 <= 0 THEN avg_price
			ELSE ROUND((avg_price * current_stock + $2::numeric * $1) / (current_stock + $1), 2)
		END,
		current_stock = current_stock + $1,
		updated_at = NOW()
	WHERE organization_id = $3 AND id = $4
	RETURNING id, name, unit, current_stock - $1 AS stock_before, current_stock, min_stock`

func (r *Repo) Increase(ctx context.Context, orgID, materialID uuid.UUID, qty types.Quantity, unitPrice *types.Money) (inventory.StockLevel, error) {
	var level inventory.StockLevel
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &level, increaseSQL, qty, unitPrice, orgID, materialID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return level, apperror.NewNotFound("material", materialID)
		}
		return level, postgres.MapError("increase stock", err)
	}
	return level, nil
}

const setStockSQL = `
	UPDATE materials m
	SET current_stock = $1, updated_at = NOW()
	FROM (
		SELECT id, current_stock AS stock_before
		FROM materials
		WHERE organization_id = $2 AND id = $3
		FOR UPDATE
	) old
	WHERE m.id = old.id
	RETURNING m.id, m.name, m.unit, old.stock_before, m.current_stock, m.min_stock`

func (r *Repo) SetStock(ctx context.Context, orgID, materialID uuid.UUID, counted types.Quantity) (inventory.StockLevel, error) {
	var level inventory.StockLevel
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &level, setStockSQL, counted, orgID, materialID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return level, apperror.NewNotFound("material", materialID)
		}
		return level, postgres.MapError("set stock", err)
	}
	return level, nil
}

// InsertMovements appends ledger rows, with COPY inside a transaction.
func (r *Repo) InsertMovements(ctx context.Context, movements []inventory.Movement) error {
	rows := make([][]any, 0, len(movements))
	for i := range movements {
		rows = append(rows, postgres.ColumnValues(postgres.StructToMap(&movements[i]), movementColumns))
	}
	return postgres.MapError("insert movements", r.inserter.Insert(ctx, movementsTable, movementColumns, rows))
}

func (r *Repo) OrderItemUsage(ctx context.Context, orgID, orderID uuid.UUID) ([]inventory.ItemUsage, error) {
	sql, args, err := r.builder.Select("i.work_item_id", "i.quantity").
		From("order_items i").
		Join("orders o ON o.id = i.order_id").
		Where(squirrel.Eq{"o.organization_id": orgID, "o.id": orderID}).
		OrderBy("i.position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []inventory.ItemUsage
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	return items, nil
}

func (r *Repo) NormsForWorkItems(ctx context.Context, orgID uuid.UUID, workItemIDs []uuid.UUID) ([]inventory.Norm, error) {
	if len(workItemIDs) == 0 {
		return nil, nil
	}
	sql, args, err := r.builder.Select("work_item_id", "material_id", "quantity").
		From(normsTable).
		Where(squirrel.Eq{"organization_id": orgID, "work_item_id": workItemIDs}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var norms []inventory.Norm
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &norms, sql, args...); err != nil {
		return nil, fmt.Errorf("select norms: %w", err)
	}
	return norms, nil
}

// ClaimOrderWriteOff inserts the claim row; a conflict means an earlier pass owns it.
func (r *Repo) ClaimOrderWriteOff(ctx context.Context, orgID, orderID uuid.UUID, trigger inventory.Trigger) (bool, error) {
	sql, args, err := r.builder.Insert(writeOffsTable).
		Columns("order_id", "organization_id", "trigger", "created_at").
		Values(orderID, orgID, trigger, squirrel.Expr("NOW()")).
		Suffix("ON CONFLICT (order_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, postgres.MapError("claim write-off", err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ inventory.Repository = (*Repo)(nil)
