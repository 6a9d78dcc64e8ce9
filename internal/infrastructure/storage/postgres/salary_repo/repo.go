// Package salary_repo reads completed stage work and stores salary records.
package salary_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"dentallab/internal/domain/salary"
	"dentallab/internal/infrastructure/storage/postgres"
)

const recordsTable = "salary_records"

var recordColumns = postgres.ExtractDBColumns[salary.Record]()

// Repo implements salary.Repository.
type Repo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm, builder: postgres.Builder()}
}

// stageCounts adds per-order completed and total stage counts.
const stageCounts = `(
	SELECT order_id,
		COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed_stages,
		COUNT(*) AS total_stages
	FROM order_stages
	GROUP BY order_id
) cnt ON cnt.order_id = s.order_id`

// completedRank numbers each order's completed stages by completion time.
const completedRank = `(
	SELECT id,
		ROW_NUMBER() OVER (PARTITION BY order_id ORDER BY completed_at, id) AS completed_rank
	FROM order_stages
	WHERE status = 'COMPLETED'
) rnk ON rnk.id = s.id`

func (r *Repo) completedStagesQuery(orgID, employeeID uuid.UUID, from, to time.Time) squirrel.SelectBuilder {
	return r.builder.Select(
		"s.id AS stage_id", "s.order_id", "o.number AS order_number", "s.name AS stage_name",
		"s.completed_at", "cnt.completed_stages", "cnt.total_stages", "rnk.completed_rank",
	).
		From("order_stages s").
		Join("orders o ON o.id = s.order_id").
		Join(stageCounts).
		Join(completedRank).
		Where(squirrel.Eq{"o.organization_id": orgID, "s.assignee_id": employeeID, "s.status": "COMPLETED"}).
		Where(squirrel.GtOrEq{"s.completed_at": from}).
		Where(squirrel.Lt{"s.completed_at": to}).
		Where(squirrel.NotEq{"o.status": "CANCELLED"}).
		OrderBy("s.completed_at", "s.id")
}

func (r *Repo) CompletedStages(ctx context.Context, orgID, employeeID uuid.UUID, from, to time.Time) ([]salary.StageWork, error) {
	sql, args, err := r.completedStagesQuery(orgID, employeeID, from, to).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var work []salary.StageWork
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &work, sql, args...); err != nil {
		return nil, fmt.Errorf("select completed stages: %w", err)
	}
	return work, nil
}

func (r *Repo) orderLinesQuery(orgID uuid.UUID, orderIDs []uuid.UUID) squirrel.SelectBuilder {
	return r.builder.Select(
		"i.order_id", "i.work_item_id", "i.quantity", "i.total", "w.tech_pay_rate", "w.tech_pay_percent",
	).
		From("order_items i").
		Join("orders o ON o.id = i.order_id").
		Join("work_items w ON w.id = i.work_item_id AND w.organization_id = o.organization_id").
		Where(squirrel.Eq{"o.organization_id": orgID, "i.order_id": orderIDs}).
		OrderBy("i.order_id", "i.position")
}

func (r *Repo) OrderLines(ctx context.Context, orgID uuid.UUID, orderIDs []uuid.UUID) ([]salary.Line, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	sql, args, err := r.orderLinesQuery(orgID, orderIDs).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var lines []salary.Line
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	return lines, nil
}

func (r *Repo) EmployeesWithCompletedStages(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]uuid.UUID, error) {
	sql, args, err := r.builder.Select("DISTINCT s.assignee_id").
		From("order_stages s").
		Join("orders o ON o.id = s.order_id").
		Where(squirrel.Eq{"o.organization_id": orgID, "s.status": "COMPLETED"}).
		Where(squirrel.NotEq{"s.assignee_id": nil}).
		Where(squirrel.GtOrEq{"s.completed_at": from}).
		Where(squirrel.Lt{"s.completed_at": to}).
		Where(squirrel.NotEq{"o.status": "CANCELLED"}).
		OrderBy("s.assignee_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var ids []uuid.UUID
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("select employees: %w", err)
	}
	return ids, nil
}

// ActiveOrganizations lists organizations the accrual worker should serve.
func (r *Repo) ActiveOrganizations(ctx context.Context) ([]uuid.UUID, error) {
	sql, args, err := r.builder.Select("id").
		From("organizations").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var ids []uuid.UUID
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("select organizations: %w", err)
	}
	return ids, nil
}

func (r *Repo) upsertQuery(rec *salary.Record) squirrel.InsertBuilder {
	return r.builder.Insert(recordsTable).
		SetMap(postgres.StructToMap(rec)).
		Suffix(`ON CONFLICT (organization_id, employee_id, period) DO UPDATE SET
			stage_count = EXCLUDED.stage_count,
			amount = EXCLUDED.amount,
			policy = EXCLUDED.policy,
			calculated_at = EXCLUDED.calculated_at
		RETURNING id`)
}

// UpsertRecord overwrites the period's record; rec.ID is set to the stored id.
func (r *Repo) UpsertRecord(ctx context.Context, rec *salary.Record) error {
	sql, args, err := r.upsertQuery(rec).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&rec.ID); err != nil {
		return postgres.MapError("upsert salary record", err)
	}
	return nil
}

func (r *Repo) ListRecords(ctx context.Context, orgID uuid.UUID, period string) ([]salary.Record, error) {
	sql, args, err := r.builder.Select(recordColumns...).From(recordsTable).
		Where(squirrel.Eq{"organization_id": orgID, "period": period}).
		OrderBy("employee_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	records := []salary.Record{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select salary records: %w", err)
	}
	return records, nil
}

var _ salary.Repository = (*Repo)(nil)
