package orders

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/core/types"
)

// ListFilter narrows order listings.
type ListFilter struct {
	Statuses []Status
	IsUrgent *bool
	ClientID *uuid.UUID
	// Search matches the order number or the patient name.
	Search  string
	DueFrom *time.Time
	DueTo   *time.Time
	Limit   int
	Offset  int
}

// IsDefaultPage reports whether the filter is the unfiltered first page,
// the only list shape that is cached.
func (f ListFilter) IsDefaultPage() bool {
	return len(f.Statuses) == 0 && f.IsUrgent == nil && f.ClientID == nil &&
		f.Search == "" && f.DueFrom == nil && f.DueTo == nil && f.Offset == 0
}

// ListResult is one page of orders.
type ListResult struct {
	Items      []Order `json:"items"`
	TotalCount int     `json:"totalCount"`
}

// StatusCount is the number of orders in one status.
type StatusCount struct {
	Status Status `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// Dashboard is the order overview of an organization.
type Dashboard struct {
	ByStatus  []StatusCount `json:"byStatus"`
	Urgent    int           `json:"urgent"`
	Overdue   int           `json:"overdue"`
	OpenTotal types.Money   `json:"openTotal"`
}

// KanbanColumn is one status column of the order board.
type KanbanColumn struct {
	Status Status  `json:"status"`
	Label  string  `json:"label"`
	Orders []Order `json:"orders"`
}

// Repository persists orders with their items, stages and history.
// Every lookup is scoped to the organization; rows of another organization are NotFound.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orgID, orderID uuid.UUID) (*Order, error)
	// GetForUpdate locks the order row until the transaction ends.
	GetForUpdate(ctx context.Context, orgID, orderID uuid.UUID) (*Order, error)
	List(ctx context.Context, orgID uuid.UUID, filter ListFilter) (ListResult, error)
	Dashboard(ctx context.Context, orgID uuid.UUID, now time.Time) (*Dashboard, error)

	UpdateHeader(ctx context.Context, o *Order) error
	// MarkReady sets READY only if the order is still open and not ready.
	// Reports whether the row changed.
	MarkReady(ctx context.Context, orgID, orderID uuid.UUID, at time.Time) (bool, error)

	Items(ctx context.Context, orderID uuid.UUID) ([]Item, error)
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []Item) error

	Stages(ctx context.Context, orderID uuid.UUID) ([]Stage, error)
	UpdateStage(ctx context.Context, s *Stage) error

	AppendHistory(ctx context.Context, entries ...HistoryEntry) error
	History(ctx context.Context, orderID uuid.UUID) ([]HistoryEntry, error)
}

// PatientRepository stores patients.
type PatientRepository interface {
	Get(ctx context.Context, orgID, patientID uuid.UUID) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
}

// StageTemplateSource reads the organization's configured pipeline.
type StageTemplateSource interface {
	StageTemplate(ctx context.Context, orgID uuid.UUID) ([]StageTemplate, error)
}
