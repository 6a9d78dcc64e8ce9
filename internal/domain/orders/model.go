// Package orders implements the production work order: its items, stages,
// status lifecycle and history.
package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dentallab/internal/core/types"
	"dentallab/internal/domain/pricing"
)

// Status is the lifecycle status of an order.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFitting    Status = "FITTING"
	StatusReady      Status = "READY"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// AllStatuses lists statuses in board order.
var AllStatuses = []Status{StatusNew, StatusInProgress, StatusFitting, StatusReady, StatusDelivered, StatusCancelled}

var statusLabels = map[Status]string{
	StatusNew:        "New",
	StatusInProgress: "In progress",
	StatusFitting:    "On fitting",
	StatusReady:      "Ready",
	StatusDelivered:  "Delivered",
	StatusCancelled:  "Cancelled",
}

// Label is the human-readable name used in notifications.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsClosed reports whether the order no longer accepts edits.
func (s Status) IsClosed() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentStatus tracks how much of the order was paid.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
)

// IsValid reports whether p is a known payment status.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentUnpaid, PaymentPartial, PaymentPaid:
		return true
	}
	return false
}

// Order is one manufacturing work order.
type Order struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	OrgID         uuid.UUID     `db:"organization_id" json:"-"`
	Number        string        `db:"number" json:"number"`
	ClientID      *uuid.UUID    `db:"client_id" json:"clientId,omitempty"`
	PatientID     *uuid.UUID    `db:"patient_id" json:"patientId,omitempty"`
	PatientName   string        `db:"patient_name" json:"patientName,omitempty"`
	DoctorName    string        `db:"doctor_name" json:"doctorName,omitempty"`
	Status        Status        `db:"status" json:"status"`
	IsUrgent      bool          `db:"is_urgent" json:"isUrgent"`
	TotalPrice    types.Money   `db:"total_price" json:"totalPrice"`
	TotalDiscount types.Money   `db:"total_discount" json:"totalDiscount"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
	Notes         string        `db:"notes" json:"notes,omitempty"`

	DueDate           *time.Time `db:"due_date" json:"dueDate,omitempty"`
	FrameworkReadyAt  *time.Time `db:"framework_ready_at" json:"frameworkReadyAt,omitempty"`
	SettingAt         *time.Time `db:"setting_at" json:"settingAt,omitempty"`
	FittingSentAt     *time.Time `db:"fitting_sent_at" json:"fittingSentAt,omitempty"`
	FittingReturnedAt *time.Time `db:"fitting_returned_at" json:"fittingReturnedAt,omitempty"`
	DeliveredAt       *time.Time `db:"delivered_at" json:"deliveredAt,omitempty"`

	CreatedBy *uuid.UUID `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`

	Items   []Item         `db:"-" json:"items,omitempty"`
	Stages  []Stage        `db:"-" json:"stages,omitempty"`
	History []HistoryEntry `db:"-" json:"history,omitempty"`
}

// IsOverdue reports whether an open order is past its due date.
func (o *Order) IsOverdue(now time.Time) bool {
	return o.DueDate != nil && o.DueDate.Before(now) && !o.Status.IsClosed() && o.Status != StatusReady
}

// Item is one work item line of an order.
type Item struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	OrderID         uuid.UUID       `db:"order_id" json:"-"`
	WorkItemID      uuid.UUID       `db:"work_item_id" json:"workItemId"`
	Position        int             `db:"position" json:"position"`
	Quantity        int             `db:"quantity" json:"quantity"`
	UnitPrice       types.Money     `db:"unit_price" json:"unitPrice"`
	PriceSource     pricing.Source  `db:"price_source" json:"priceSource"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discountPercent"`
	DiscountAmount  types.Money     `db:"discount_amount" json:"discountAmount"`
	Total           types.Money     `db:"total" json:"total"`
	Teeth           string          `db:"teeth" json:"teeth,omitempty"`
	Comment         string          `db:"comment" json:"comment,omitempty"`
}

// HistoryAction names an order history event.
type HistoryAction string

const (
	ActionCreated        HistoryAction = "CREATED"
	ActionUpdated        HistoryAction = "UPDATED"
	ActionStatusChanged  HistoryAction = "STATUS_CHANGED"
	ActionItemsReplaced  HistoryAction = "ITEMS_REPLACED"
	ActionComment        HistoryAction = "COMMENT"
	ActionStageStarted   HistoryAction = "STAGE_STARTED"
	ActionStageCompleted HistoryAction = "STAGE_COMPLETED"
	ActionStageSkipped   HistoryAction = "STAGE_SKIPPED"
	ActionStageAssigned  HistoryAction = "STAGE_ASSIGNED"
	ActionWrittenOff     HistoryAction = "MATERIALS_WRITTEN_OFF"
)

// HistoryEntry is an append-only record of something that happened to an order.
type HistoryEntry struct {
	ID         uuid.UUID      `json:"id"`
	OrderID    uuid.UUID      `json:"orderId"`
	OrgID      uuid.UUID      `json:"-"`
	Action     HistoryAction  `json:"action"`
	FromStatus *Status        `json:"fromStatus,omitempty"`
	ToStatus   *Status        `json:"toStatus,omitempty"`
	Comment    string         `json:"comment,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	UserID     *uuid.UUID     `json:"userId,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// StageTemplate is one configured production step of an organization.
type StageTemplate struct {
	Name     string `db:"name"`
	Position int    `db:"position"`
}

// DefaultStageTemplate is used when an organization has not configured its own pipeline.
var DefaultStageTemplate = []StageTemplate{
	{Name: "Gypsum model", Position: 1},
	{Name: "CAD design", Position: 2},
	{Name: "Framework", Position: 3},
	{Name: "Ceramic layering", Position: 4},
	{Name: "Fitting", Position: 5},
	{Name: "Finishing", Position: 6},
}

// Patient is the person the work is made for.
type Patient struct {
	ID         uuid.UUID `db:"id"`
	OrgID      uuid.UUID `db:"organization_id"`
	LastName   string    `db:"last_name"`
	FirstName  string    `db:"first_name"`
	MiddleName string    `db:"middle_name"`
	CreatedAt  time.Time `db:"created_at"`
}

// FullName joins the non-empty name parts.
func (p *Patient) FullName() string {
	return joinNonEmpty(p.LastName, p.FirstName, p.MiddleName)
}
