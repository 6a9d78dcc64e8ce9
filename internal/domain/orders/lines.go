package orders

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/types"
	"dentallab/internal/domain/pricing"
)

var maxDiscount = decimal.NewFromInt(100)

// ItemInput is a requested order line.
type ItemInput struct {
	WorkItemID      uuid.UUID
	Quantity        int
	ManualPrice     *types.Money
	DiscountPercent decimal.Decimal
	Teeth           string
	Comment         string
}

func (in ItemInput) validate(pos int) error {
	if in.WorkItemID == uuid.Nil {
		return apperror.NewValidation(fmt.Sprintf("item %d: work item is required", pos)).WithDetail("field", "workItemId")
	}
	if in.Quantity < 1 {
		return apperror.NewValidation(fmt.Sprintf("item %d: quantity must be at least 1", pos)).WithDetail("field", "quantity")
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(maxDiscount) {
		return apperror.NewValidation(fmt.Sprintf("item %d: discount must be between 0 and 100", pos)).WithDetail("field", "discountPercent")
	}
	return nil
}

// LineAmounts computes discount and total of a line.
// gross = price × qty; discount = round(gross × pct / 100, 2); total = gross − discount.
func LineAmounts(unitPrice types.Money, qty int, discountPercent decimal.Decimal) (discount, total types.Money) {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
	discount = types.Percent(gross, discountPercent)
	return discount, gross.Sub(discount)
}

// Totals sums the line totals and discounts of items.
func Totals(items []Item) (total, discount types.Money) {
	total, discount = types.Zero(), types.Zero()
	for _, it := range items {
		total = total.Add(it.Total)
		discount = discount.Add(it.DiscountAmount)
	}
	return total, discount
}

// ApplyTotals recomputes the order aggregate from its current items.
func (o *Order) ApplyTotals() {
	o.TotalPrice, o.TotalDiscount = Totals(o.Items)
}

// newItem builds a priced line.
func newItem(orderID uuid.UUID, pos int, in ItemInput, res pricing.Resolution, newID func() uuid.UUID) Item {
	discount, total := LineAmounts(res.Price, in.Quantity, in.DiscountPercent)
	return Item{
		ID:              newID(),
		OrderID:         orderID,
		WorkItemID:      in.WorkItemID,
		Position:        pos,
		Quantity:        in.Quantity,
		UnitPrice:       res.Price,
		PriceSource:     res.Source,
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  discount,
		Total:           total,
		Teeth:           in.Teeth,
		Comment:         in.Comment,
	}
}
