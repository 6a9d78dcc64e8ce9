package order_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"dentallab/internal/domain/orders"
	"dentallab/internal/infrastructure/storage/postgres"
)

// historyRow is the stored shape of orders.HistoryEntry.
type historyRow struct {
	ID                uuid.UUID                `db:"id"`
	OrderID           uuid.UUID                `db:"order_id"`
	OrgID             uuid.UUID                `db:"organization_id"`
	Action            orders.HistoryAction     `db:"action"`
	FromStatus        *orders.Status           `db:"from_status"`
	ToStatus          *orders.Status           `db:"to_status"`
	Comment           string                   `db:"comment"`
	Payload           []byte                   `db:"payload"`
	PayloadCompressed []byte                   `db:"payload_compressed"`
	CompressionAlgo   postgres.CompressionAlgo `db:"compression_algo"`
	UserID            *uuid.UUID               `db:"user_id"`
	CreatedAt         time.Time                `db:"created_at"`
}

var historyColumns = postgres.ExtractDBColumns[historyRow]()

func (r *Repo) toRow(e orders.HistoryEntry) (historyRow, error) {
	var payload any
	if len(e.Payload) > 0 {
		payload = e.Payload
	}
	enc, err := r.codec.Encode(payload)
	if err != nil {
		return historyRow{}, err
	}
	return historyRow{
		ID:                e.ID,
		OrderID:           e.OrderID,
		OrgID:             e.OrgID,
		Action:            e.Action,
		FromStatus:        e.FromStatus,
		ToStatus:          e.ToStatus,
		Comment:           e.Comment,
		Payload:           enc.JSON,
		PayloadCompressed: enc.Compressed,
		CompressionAlgo:   enc.Algo,
		UserID:            e.UserID,
		CreatedAt:         e.CreatedAt,
	}, nil
}

func (r *Repo) fromRow(row historyRow) (orders.HistoryEntry, error) {
	e := orders.HistoryEntry{
		ID:         row.ID,
		OrderID:    row.OrderID,
		OrgID:      row.OrgID,
		Action:     row.Action,
		FromStatus: row.FromStatus,
		ToStatus:   row.ToStatus,
		Comment:    row.Comment,
		UserID:     row.UserID,
		CreatedAt:  row.CreatedAt,
	}
	err := r.codec.Decode(postgres.EncodedPayload{
		JSON:       row.Payload,
		Compressed: row.PayloadCompressed,
		Algo:       row.CompressionAlgo,
	}, &e.Payload)
	return e, err
}

// AppendHistory inserts entries; large payloads are stored compressed.
func (r *Repo) AppendHistory(ctx context.Context, entries ...orders.HistoryEntry) error {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		row, err := r.toRow(e)
		if err != nil {
			return fmt.Errorf("encode history %s: %w", e.Action, err)
		}
		rows = append(rows, postgres.ColumnValues(postgres.StructToMap(&row), historyColumns))
	}
	return postgres.MapError("insert history", r.inserter.Insert(ctx, historyTable, historyColumns, rows))
}

func (r *Repo) History(ctx context.Context, orderID uuid.UUID) ([]orders.HistoryEntry, error) {
	sql, args, err := r.builder.Select(historyColumns...).From(historyTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []historyRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}

	out := make([]orders.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		e, err := r.fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode history %s: %w", row.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}
