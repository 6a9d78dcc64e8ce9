package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/types"
	"dentallab/internal/domain/orders"
)

// OrderItemRequest is one order line.
type OrderItemRequest struct {
	WorkItemID      uuid.UUID        `json:"workItemId" binding:"required"`
	Quantity        int              `json:"quantity" binding:"required,min=1,max=1000"`
	ManualPrice     *decimal.Decimal `json:"manualPrice"`
	DiscountPercent decimal.Decimal  `json:"discountPercent"`
	Teeth           string           `json:"teeth" binding:"max=200"`
	Comment         string           `json:"comment" binding:"max=1000"`
}

func (r OrderItemRequest) toInput() orders.ItemInput {
	var manual *types.Money
	if r.ManualPrice != nil {
		m := *r.ManualPrice
		manual = &m
	}
	return orders.ItemInput{
		WorkItemID:      r.WorkItemID,
		Quantity:        r.Quantity,
		ManualPrice:     manual,
		DiscountPercent: r.DiscountPercent,
		Teeth:           r.Teeth,
		Comment:         r.Comment,
	}
}

func itemInputs(items []OrderItemRequest) []orders.ItemInput {
	out := make([]orders.ItemInput, len(items))
	for i, it := range items {
		out[i] = it.toInput()
	}
	return out
}

// CreateOrderRequest creates an order. PatientName creates a patient inline
// when PatientID is empty.
type CreateOrderRequest struct {
	ClientID    *uuid.UUID         `json:"clientId"`
	PatientID   *uuid.UUID         `json:"patientId"`
	PatientName string             `json:"patientName" binding:"max=300"`
	DoctorName  string             `json:"doctorName" binding:"max=300"`
	IsUrgent    bool               `json:"isUrgent"`
	DueDate     *time.Time         `json:"dueDate"`
	Notes       string             `json:"notes" binding:"max=4000"`
	Items       []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (r CreateOrderRequest) ToInput() orders.CreateInput {
	return orders.CreateInput{
		ClientID:    r.ClientID,
		PatientID:   r.PatientID,
		PatientName: r.PatientName,
		DoctorName:  r.DoctorName,
		IsUrgent:    r.IsUrgent,
		DueDate:     r.DueDate,
		Notes:       r.Notes,
		Items:       itemInputs(r.Items),
	}
}

// UpdateOrderRequest patches an order; absent fields are unchanged.
type UpdateOrderRequest struct {
	Status            *orders.Status        `json:"status" binding:"omitempty,oneof=NEW IN_PROGRESS FITTING READY DELIVERED CANCELLED"`
	IsUrgent          *bool                 `json:"isUrgent"`
	PaymentStatus     *orders.PaymentStatus `json:"paymentStatus" binding:"omitempty,oneof=UNPAID PARTIAL PAID"`
	ClientID          *uuid.UUID            `json:"clientId"`
	DoctorName        *string               `json:"doctorName" binding:"omitempty,max=300"`
	Notes             *string               `json:"notes" binding:"omitempty,max=4000"`
	DueDate           *time.Time            `json:"dueDate"`
	FrameworkReadyAt  *time.Time            `json:"frameworkReadyAt"`
	SettingAt         *time.Time            `json:"settingAt"`
	FittingSentAt     *time.Time            `json:"fittingSentAt"`
	FittingReturnedAt *time.Time            `json:"fittingReturnedAt"`
}

func (r UpdateOrderRequest) ToInput() orders.UpdateInput {
	return orders.UpdateInput{
		Status:            r.Status,
		IsUrgent:          r.IsUrgent,
		PaymentStatus:     r.PaymentStatus,
		ClientID:          r.ClientID,
		DoctorName:        r.DoctorName,
		Notes:             r.Notes,
		DueDate:           r.DueDate,
		FrameworkReadyAt:  r.FrameworkReadyAt,
		SettingAt:         r.SettingAt,
		FittingSentAt:     r.FittingSentAt,
		FittingReturnedAt: r.FittingReturnedAt,
	}
}

// ReplaceItemsRequest replaces every line of an order.
type ReplaceItemsRequest struct {
	Items []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (r ReplaceItemsRequest) ToInputs() []orders.ItemInput {
	return itemInputs(r.Items)
}

// CommentRequest adds a history comment.
type CommentRequest struct {
	Text string `json:"text" binding:"required,max=4000"`
}

// AssignStageRequest sets the technician of a stage; null clears it.
type AssignStageRequest struct {
	AssigneeID *uuid.UUID `json:"assigneeId"`
}

// ListOrdersQuery filters the order list. Status accepts repeated or
// comma-separated values.
type ListOrdersQuery struct {
	PageQuery
	Status   []string   `form:"status"`
	Urgent   *bool      `form:"urgent"`
	ClientID string     `form:"clientId"`
	Search   string     `form:"search" binding:"max=100"`
	DueFrom  *time.Time `form:"dueFrom" time_format:"2006-01-02"`
	DueTo    *time.Time `form:"dueTo" time_format:"2006-01-02"`
}

func (q ListOrdersQuery) ToFilter() (orders.ListFilter, error) {
	clientID, err := parseOptionalID("clientId", q.ClientID)
	if err != nil {
		return orders.ListFilter{}, apperror.NewValidation("invalid client id").WithDetail("field", "clientId")
	}
	f := orders.ListFilter{
		IsUrgent: q.Urgent,
		ClientID: clientID,
		Search:   strings.TrimSpace(q.Search),
		DueFrom:  q.DueFrom,
		DueTo:    q.DueTo,
		Limit:    q.LimitOr(50),
		Offset:   q.Offset,
	}
	for _, raw := range q.Status {
		for _, s := range strings.Split(raw, ",") {
			st := orders.Status(strings.ToUpper(strings.TrimSpace(s)))
			if st == "" {
				continue
			}
			if !st.IsValid() {
				return orders.ListFilter{}, apperror.NewValidation("unknown order status").WithDetail("status", st)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	return f, nil
}
