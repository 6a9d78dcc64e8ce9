// Package salary computes the technician pay accrued from completed production stages.
package salary

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/types"
)

// Period is one calendar month, written as YYYY-MM.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses "2026-03".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, apperror.NewValidation("period must look like YYYY-MM").WithDetail("period", s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the month containing t in UTC.
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Range returns the half-open UTC interval [from, to) covered by the period.
func (p Period) Range() (from, to time.Time) {
	from = time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// StageWork is a stage completed by a technician, with the size of its order's pipeline.
type StageWork struct {
	StageID         uuid.UUID `db:"stage_id" json:"stageId"`
	OrderID         uuid.UUID `db:"order_id" json:"orderId"`
	OrderNumber     string    `db:"order_number" json:"orderNumber"`
	StageName       string    `db:"stage_name" json:"stageName"`
	CompletedAt     time.Time `db:"completed_at" json:"completedAt"`
	CompletedStages int       `db:"completed_stages" json:"completedStages"`
	TotalStages     int       `db:"total_stages" json:"totalStages"`
	// CompletedRank orders the completed stages of the order by completion time, from 1.
	CompletedRank int `db:"completed_rank" json:"completedRank"`
}

// Line is an order line with the pay rule of its work item.
type Line struct {
	OrderID        uuid.UUID        `db:"order_id"`
	WorkItemID     uuid.UUID        `db:"work_item_id"`
	Quantity       int              `db:"quantity"`
	Total          types.Money      `db:"total"`
	TechPayRate    types.Money      `db:"tech_pay_rate"`
	TechPayPercent *decimal.Decimal `db:"tech_pay_percent"`
}

// PayRule is the technician pay definition of a work item.
type PayRule struct {
	Rate    types.Money
	Percent *decimal.Decimal
}

// Contribution is the pay produced by one order line. A positive rate wins
// (rate × quantity); otherwise the percent of the line total applies; with
// neither the line pays nothing.
func (r PayRule) Contribution(qty int, lineTotal types.Money) types.Money {
	if r.Rate.IsPositive() {
		return r.Rate.Mul(decimal.NewFromInt(int64(qty)))
	}
	if r.Percent != nil {
		return types.Percent(lineTotal, *r.Percent)
	}
	return types.Zero()
}

func (l Line) contribution() types.Money {
	return PayRule{Rate: l.TechPayRate, Percent: l.TechPayPercent}.Contribution(l.Quantity, l.Total)
}

// Record is the stored accrual of one technician for one period.
// (organization, employee, period) is unique; recomputation overwrites it.
type Record struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	OrgID        uuid.UUID   `db:"organization_id" json:"-"`
	EmployeeID   uuid.UUID   `db:"employee_id" json:"employeeId"`
	Period       string      `db:"period" json:"period"`
	StageCount   int         `db:"stage_count" json:"stageCount"`
	Amount       types.Money `db:"amount" json:"amount"`
	Policy       string      `db:"policy" json:"policy"`
	CalculatedAt time.Time   `db:"calculated_at" json:"calculatedAt"`
}

// StageAccrual is the credit one stage earned.
type StageAccrual struct {
	StageWork
	Contribution types.Money `json:"contribution"`
	Share        types.Money `json:"share"`
}

// Accrual is a computed record with its per-stage breakdown.
type Accrual struct {
	Record    Record         `json:"record"`
	Breakdown []StageAccrual `json:"breakdown"`
}
