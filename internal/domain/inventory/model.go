// Package inventory keeps per-material stock through an append-only movement ledger.
package inventory

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/core/types"
)

// MovementType classifies a ledger row.
type MovementType string

const (
	MovementIn        MovementType = "IN"
	MovementOut       MovementType = "OUT"
	MovementWriteOff  MovementType = "WRITE_OFF"
	MovementInventory MovementType = "INVENTORY"
)

// Trigger records which pathway started an order write-off.
type Trigger string

const (
	// TriggerStagesCompleted runs when the last stage of an order turns terminal.
	TriggerStagesCompleted Trigger = "STAGES_COMPLETED"
	// TriggerManual is the user's "write off now" action.
	TriggerManual Trigger = "MANUAL"
)

// Material is a stocked consumable.
type Material struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	OrgID        uuid.UUID      `db:"organization_id" json:"-"`
	Name         string         `db:"name" json:"name"`
	Unit         string         `db:"unit" json:"unit"`
	CurrentStock types.Quantity `db:"current_stock" json:"currentStock"`
	MinStock     types.Quantity `db:"min_stock" json:"minStock"`
	AvgPrice     types.Money    `db:"avg_price" json:"avgPrice"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

// IsLow reports whether stock is under the minimum threshold.
func (m *Material) IsLow() bool {
	return m.CurrentStock < m.MinStock
}

// Movement is one ledger row. Quantity is signed: positive for IN,
// negative for OUT and WRITE_OFF, the delta for INVENTORY corrections.
type Movement struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	OrgID      uuid.UUID      `db:"organization_id" json:"-"`
	MaterialID uuid.UUID      `db:"material_id" json:"materialId"`
	Type       MovementType   `db:"type" json:"type"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	StockAfter types.Quantity `db:"stock_after" json:"stockAfter"`
	UnitPrice  *types.Money   `db:"unit_price" json:"unitPrice,omitempty"`
	OrderID    *uuid.UUID     `db:"order_id" json:"orderId,omitempty"`
	Note       string         `db:"note" json:"note,omitempty"`
	CreatedBy  *uuid.UUID     `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// Norm says one unit of a work item consumes Quantity of a material.
type Norm struct {
	WorkItemID uuid.UUID      `db:"work_item_id"`
	MaterialID uuid.UUID      `db:"material_id"`
	Quantity   types.Quantity `db:"quantity"`
}

// ItemUsage is one order line as seen by the ledger.
type ItemUsage struct {
	WorkItemID uuid.UUID `db:"work_item_id"`
	Quantity   int       `db:"quantity"`
}

// Demand is the total consumption of one material by an order.
type Demand struct {
	MaterialID uuid.UUID
	Quantity   types.Quantity
}

// StockLevel is the state of a material right after a stock update.
type StockLevel struct {
	MaterialID uuid.UUID      `db:"id"`
	Name       string         `db:"name"`
	Unit       string         `db:"unit"`
	Before     types.Quantity `db:"stock_before"`
	After      types.Quantity `db:"current_stock"`
	Min        types.Quantity `db:"min_stock"`
}

// CrossedBelowMin reports a transition from at-or-above the threshold to below it.
// Deductions on a material already below the threshold do not qualify.
func (l StockLevel) CrossedBelowMin() bool {
	return l.Before >= l.Min && l.After < l.Min
}

// AggregateDemand sums norm × quantity per material across all items.
// Materials with zero demand are dropped. The result is sorted by material id
// so concurrent passes lock rows in the same order.
func AggregateDemand(items []ItemUsage, norms []Norm) []Demand {
	byItem := make(map[uuid.UUID][]Norm, len(norms))
	for _, n := range norms {
		byItem[n.WorkItemID] = append(byItem[n.WorkItemID], n)
	}

	totals := make(map[uuid.UUID]types.Quantity)
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		for _, n := range byItem[it.WorkItemID] {
			totals[n.MaterialID] += n.Quantity.MulInt(it.Quantity)
		}
	}

	out := make([]Demand, 0, len(totals))
	for materialID, qty := range totals {
		if qty.IsPositive() {
			out = append(out, Demand{MaterialID: materialID, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].MaterialID[:], out[j].MaterialID[:]) < 0
	})
	return out
}

// Deduction is a successful write-off line of a report.
type Deduction struct {
	MaterialID uuid.UUID      `json:"materialId"`
	Name       string         `json:"name"`
	Quantity   types.Quantity `json:"quantity"`
	StockAfter types.Quantity `json:"stockAfter"`
}

// Shortage is a material skipped because stock would go negative.
type Shortage struct {
	MaterialID uuid.UUID      `json:"materialId"`
	Name       string         `json:"name"`
	Required   types.Quantity `json:"required"`
	Available  types.Quantity `json:"available"`
}

// WriteOffReport summarizes a consumption pass.
type WriteOffReport struct {
	OrderID   uuid.UUID    `json:"orderId"`
	Trigger   Trigger      `json:"trigger"`
	Deducted  []Deduction  `json:"deducted"`
	Shortages []Shortage   `json:"shortages"`
	LowStock  []StockLevel `json:"lowStock"`
}

// HasShortages reports whether any material was skipped.
func (r *WriteOffReport) HasShortages() bool {
	return len(r.Shortages) > 0
}
