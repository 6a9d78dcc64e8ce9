// Package pricing resolves the unit price of a catalog work item for a client.
package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dentallab/internal/core/types"
)

// Source tags where a resolved price came from.
type Source string

const (
	SourceManual      Source = "manual"
	SourceClientPrice Source = "client_price"
	SourcePriceList   Source = "price_list"
	SourceBasePrice   Source = "base_price"
)

// Resolution is the outcome of a price lookup.
type Resolution struct {
	Price  types.Money `json:"price"`
	Source Source      `json:"source"`
}

// WorkItem is a billable production task from the catalog.
type WorkItem struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	OrgID     uuid.UUID   `db:"organization_id" json:"-"`
	Code      string      `db:"code" json:"code"`
	Name      string      `db:"name" json:"name"`
	BasePrice types.Money `db:"base_price" json:"basePrice"`

	// Technician pay rule: fixed rate per unit, or a percentage of the line total.
	TechPayRate    types.Money      `db:"tech_pay_rate" json:"techPayRate"`
	TechPayPercent *decimal.Decimal `db:"tech_pay_percent" json:"techPayPercent,omitempty"`

	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// PriceList is a named set of prices. At most one active list per organization is the default.
type PriceList struct {
	ID        uuid.UUID `db:"id"`
	OrgID     uuid.UUID `db:"organization_id"`
	Name      string    `db:"name"`
	IsDefault bool      `db:"is_default"`
	IsActive  bool      `db:"is_active"`
}
