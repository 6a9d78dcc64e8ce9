// Package order_repo stores orders with their items, stages and history.
package order_repo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
	"dentallab/internal/domain/orders"
	"dentallab/internal/infrastructure/storage/postgres"
)

const (
	ordersTable  = "orders"
	itemsTable   = "order_items"
	stagesTable  = "order_stages"
	historyTable = "order_history"
)

var (
	orderColumns = postgres.ExtractDBColumns[orders.Order]()
	itemColumns  = postgres.ExtractDBColumns[orders.Item]()
	stageColumns = postgres.ExtractDBColumns[orders.Stage]()

	readyOrClosed = []orders.Status{orders.StatusReady, orders.StatusDelivered, orders.StatusCancelled}
)

// immutable order columns are never rewritten by UpdateHeader.
var immutable = map[string]bool{
	"id": true, "organization_id": true, "number": true,
	"created_by": true, "created_at": true,
}

// Repo implements orders.Repository.
type Repo struct {
	txm      *postgres.TxManager
	inserter *postgres.BatchInserter
	codec    *postgres.PayloadCodec
	builder  squirrel.StatementBuilderType
}

// New creates the order repository. History payloads go through codec.
func New(txm *postgres.TxManager, codec *postgres.PayloadCodec) *Repo {
	return &Repo{
		txm:      txm,
		inserter: postgres.NewBatchInserter(txm),
		codec:    codec,
		builder:  postgres.Builder(),
	}
}

// Create inserts the header, the items and the stages of a new order.
func (r *Repo) Create(ctx context.Context, o *orders.Order) error {
	sql, args, err := r.builder.Insert(ordersTable).SetMap(postgres.StructToMap(o)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert order", err)
	}
	if err := r.insertItems(ctx, o.Items); err != nil {
		return err
	}

	rows := make([][]any, 0, len(o.Stages))
	for i := range o.Stages {
		rows = append(rows, postgres.ColumnValues(postgres.StructToMap(&o.Stages[i]), stageColumns))
	}
	return postgres.MapError("insert stages", r.inserter.Insert(ctx, stagesTable, stageColumns, rows))
}

func (r *Repo) insertItems(ctx context.Context, items []orders.Item) error {
	rows := make([][]any, 0, len(items))
	for i := range items {
		rows = append(rows, postgres.ColumnValues(postgres.StructToMap(&items[i]), itemColumns))
	}
	return postgres.MapError("insert items", r.inserter.Insert(ctx, itemsTable, itemColumns, rows))
}

func (r *Repo) Get(ctx context.Context, orgID, orderID uuid.UUID) (*orders.Order, error) {
	return r.get(ctx, orgID, orderID, false)
}

func (r *Repo) GetForUpdate(ctx context.Context, orgID, orderID uuid.UUID) (*orders.Order, error) {
	return r.get(ctx, orgID, orderID, true)
}

func (r *Repo) get(ctx context.Context, orgID, orderID uuid.UUID, forUpdate bool) (*orders.Order, error) {
	q := r.builder.Select(orderColumns...).From(ordersTable).
		Where(squirrel.Eq{"organization_id": orgID, "id": orderID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var o orders.Order
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &o, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("order", orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// filtered applies ListFilter conditions shared by the page and count queries.
func filtered(q squirrel.SelectBuilder, orgID uuid.UUID, f orders.ListFilter) squirrel.SelectBuilder {
	q = q.Where(squirrel.Eq{"organization_id": orgID})
	if len(f.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": f.Statuses})
	}
	if f.IsUrgent != nil {
		q = q.Where(squirrel.Eq{"is_urgent": *f.IsUrgent})
	}
	if f.ClientID != nil {
		q = q.Where(squirrel.Eq{"client_id": *f.ClientID})
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"patient_name": pattern},
		})
	}
	if f.DueFrom != nil {
		q = q.Where(squirrel.GtOrEq{"due_date": *f.DueFrom})
	}
	if f.DueTo != nil {
		q = q.Where(squirrel.Lt{"due_date": *f.DueTo})
	}
	return q
}

func (r *Repo) listQueries(orgID uuid.UUID, f orders.ListFilter) (page, count squirrel.SelectBuilder) {
	page = filtered(r.builder.Select(orderColumns...).From(ordersTable), orgID, f).
		OrderBy("is_urgent DESC", "created_at DESC", "id DESC")
	if f.Limit > 0 {
		page = page.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		page = page.Offset(uint64(f.Offset))
	}
	count = filtered(r.builder.Select("COUNT(*)").From(ordersTable), orgID, f)
	return page, count
}

func (r *Repo) List(ctx context.Context, orgID uuid.UUID, f orders.ListFilter) (orders.ListResult, error) {
	res := orders.ListResult{Items: []orders.Order{}}
	pageQ, countQ := r.listQueries(orgID, f)

	sql, args, err := pageQ.ToSql()
	if err != nil {
		return res, fmt.Errorf("build query: %w", err)
	}
	q := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, q, &res.Items, sql, args...); err != nil {
		return res, fmt.Errorf("select orders: %w", err)
	}

	sql, args, err = countQ.ToSql()
	if err != nil {
		return res, fmt.Errorf("build count: %w", err)
	}
	if err := q.QueryRow(ctx, sql, args...).Scan(&res.TotalCount); err != nil {
		return res, fmt.Errorf("count orders: %w", err)
	}
	return res, nil
}

const dashboardTotalsSQL = `
	SELECT
		COUNT(*) FILTER (WHERE is_urgent AND status NOT IN ('DELIVERED', 'CANCELLED')) AS urgent,
		COUNT(*) FILTER (WHERE due_date < $2 AND status NOT IN ('READY', 'DELIVERED', 'CANCELLED')) AS overdue,
		COALESCE(SUM(total_price) FILTER (WHERE status NOT IN ('DELIVERED', 'CANCELLED')), 0) AS open_total
	FROM orders
	WHERE organization_id = $1`

func (r *Repo) Dashboard(ctx context.Context, orgID uuid.UUID, now time.Time) (*orders.Dashboard, error) {
	q := r.txm.GetQuerier(ctx)
	d := &orders.Dashboard{}

	if err := q.QueryRow(ctx, dashboardTotalsSQL, orgID, now).Scan(&d.Urgent, &d.Overdue, &d.OpenTotal); err != nil {
		return nil, fmt.Errorf("dashboard totals: %w", err)
	}

	sql, args, err := r.builder.Select("status", "COUNT(*) AS count").From(ordersTable).
		Where(squirrel.Eq{"organization_id": orgID}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &d.ByStatus, sql, args...); err != nil {
		return nil, fmt.Errorf("dashboard statuses: %w", err)
	}
	rank := make(map[orders.Status]int, len(orders.AllStatuses))
	for i, s := range orders.AllStatuses {
		rank[s] = i
	}
	sort.Slice(d.ByStatus, func(i, j int) bool { return rank[d.ByStatus[i].Status] < rank[d.ByStatus[j].Status] })
	return d, nil
}

func (r *Repo) UpdateHeader(ctx context.Context, o *orders.Order) error {
	set := make(map[string]any, len(orderColumns))
	for col, v := range postgres.StructToMap(o) {
		if !immutable[col] {
			set[col] = v
		}
	}
	sql, args, err := r.builder.Update(ordersTable).SetMap(set).
		Where(squirrel.Eq{"organization_id": o.OrgID, "id": o.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update order", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("order", o.ID)
	}
	return nil
}

func (r *Repo) markReadyQuery(orgID, orderID uuid.UUID, at time.Time) squirrel.UpdateBuilder {
	return r.builder.Update(ordersTable).
		Set("status", orders.StatusReady).
		Set("updated_at", at).
		Where(squirrel.Eq{"organization_id": orgID, "id": orderID}).
		Where(squirrel.NotEq{"status": readyOrClosed})
}

// MarkReady moves an open order to READY. The status guard makes repeated
// calls report false.
func (r *Repo) MarkReady(ctx context.Context, orgID, orderID uuid.UUID, at time.Time) (bool, error) {
	sql, args, err := r.markReadyQuery(orgID, orderID, at).ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("mark ready: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) Items(ctx context.Context, orderID uuid.UUID) ([]orders.Item, error) {
	sql, args, err := r.builder.Select(itemColumns...).From(itemsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	items := []orders.Item{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

// ReplaceItems deletes every line of the order and inserts items.
func (r *Repo) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []orders.Item) error {
	sql, args, err := r.builder.Delete(itemsTable).Where(squirrel.Eq{"order_id": orderID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	return r.insertItems(ctx, items)
}

func (r *Repo) Stages(ctx context.Context, orderID uuid.UUID) ([]orders.Stage, error) {
	sql, args, err := r.builder.Select(stageColumns...).From(stagesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	stages := []orders.Stage{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &stages, sql, args...); err != nil {
		return nil, fmt.Errorf("select stages: %w", err)
	}
	return stages, nil
}

func (r *Repo) UpdateStage(ctx context.Context, s *orders.Stage) error {
	sql, args, err := r.builder.Update(stagesTable).
		Set("assignee_id", s.AssigneeID).
		Set("status", s.Status).
		Set("started_at", s.StartedAt).
		Set("completed_at", s.CompletedAt).
		Where(squirrel.Eq{"id": s.ID, "order_id": s.OrderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update stage", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stage", s.ID)
	}
	return nil
}

var _ orders.Repository = (*Repo)(nil)
