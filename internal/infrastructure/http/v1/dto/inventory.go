package dto

import (
	"github.com/shopspring/decimal"

	"dentallab/internal/core/types"
	"dentallab/internal/domain/inventory"
)

// ListMaterialsQuery filters the material list.
type ListMaterialsQuery struct {
	PageQuery
	LowStock bool   `form:"lowStock"`
	Search   string `form:"search" binding:"max=100"`
}

func (q ListMaterialsQuery) ToFilter() inventory.ListFilter {
	return inventory.ListFilter{
		LowStockOnly: q.LowStock,
		Search:       q.Search,
		Limit:        q.LimitOr(100),
		Offset:       q.Offset,
	}
}

// MovementsQuery limits the movement history.
type MovementsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ReceiveRequest books incoming stock.
type ReceiveRequest struct {
	Quantity  types.Quantity   `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
	Note      string           `json:"note" binding:"max=1000"`
}

// DeductRequest books an explicit outgoing movement.
type DeductRequest struct {
	Quantity types.Quantity `json:"quantity"`
	Note     string         `json:"note" binding:"max=1000"`
}

// InventoryRequest sets the counted stock of a material.
type InventoryRequest struct {
	CountedStock types.Quantity `json:"countedStock"`
	Note         string         `json:"note" binding:"max=1000"`
}
