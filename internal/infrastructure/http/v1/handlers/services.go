package handlers

import (
	"context"

	"github.com/google/uuid"

	"dentallab/internal/core/types"
	"dentallab/internal/domain/inventory"
	"dentallab/internal/domain/orders"
	"dentallab/internal/domain/pricing"
	"dentallab/internal/domain/salary"
)

// OrderService is the part of orders.Service the order routes use.
type OrderService interface {
	Create(ctx context.Context, orgID uuid.UUID, in orders.CreateInput) (*orders.Order, error)
	Get(ctx context.Context, orgID, orderID uuid.UUID) (*orders.Order, error)
	List(ctx context.Context, orgID uuid.UUID, filter orders.ListFilter) (orders.ListResult, error)
	Kanban(ctx context.Context, orgID uuid.UUID) ([]orders.KanbanColumn, error)
	Dashboard(ctx context.Context, orgID uuid.UUID) (*orders.Dashboard, error)
	Update(ctx context.Context, orgID, orderID uuid.UUID, in orders.UpdateInput) (*orders.Order, error)
	ReplaceItems(ctx context.Context, orgID, orderID uuid.UUID, inputs []orders.ItemInput) (*orders.Order, error)
	Cancel(ctx context.Context, orgID, orderID uuid.UUID) (*orders.Order, error)
	AddComment(ctx context.Context, orgID, orderID uuid.UUID, text string) (*orders.HistoryEntry, error)
	WriteOffMaterials(ctx context.Context, orgID, orderID uuid.UUID) (*inventory.WriteOffReport, error)
}

// StageService drives the stage pipeline of an order.
type StageService interface {
	StartStage(ctx context.Context, orgID, orderID, stageID uuid.UUID) (*orders.StageResult, error)
	CompleteStage(ctx context.Context, orgID, orderID, stageID uuid.UUID) (*orders.StageResult, error)
	SkipStage(ctx context.Context, orgID, orderID, stageID uuid.UUID) (*orders.StageResult, error)
	AssignStage(ctx context.Context, orgID, orderID, stageID uuid.UUID, assignee *uuid.UUID) (*orders.Stage, error)
}

// MaterialService is the inventory ledger.
type MaterialService interface {
	List(ctx context.Context, orgID uuid.UUID, filter inventory.ListFilter) ([]inventory.Material, error)
	Movements(ctx context.Context, orgID, materialID uuid.UUID, limit int) ([]inventory.Movement, error)
	Receive(ctx context.Context, orgID, materialID uuid.UUID, qty types.Quantity, unitPrice *types.Money, note string) (*inventory.Movement, error)
	Deduct(ctx context.Context, orgID, materialID uuid.UUID, qty types.Quantity, note string) (*inventory.Movement, error)
	Adjust(ctx context.Context, orgID, materialID uuid.UUID, counted types.Quantity, note string) (*inventory.Movement, error)
}

// PriceResolver resolves a single price.
type PriceResolver interface {
	Resolve(ctx context.Context, orgID uuid.UUID, clientID *uuid.UUID, workItemID uuid.UUID, manual *types.Money) (pricing.Resolution, error)
}

// SalaryService computes and lists accruals.
type SalaryService interface {
	Accrue(ctx context.Context, orgID, employeeID uuid.UUID, period salary.Period) (*salary.Accrual, error)
	AccrueAll(ctx context.Context, orgID uuid.UUID, period salary.Period) ([]salary.Accrual, error)
	ListRecords(ctx context.Context, orgID uuid.UUID, period salary.Period) ([]salary.Record, error)
}

var (
	_ OrderService    = (*orders.Service)(nil)
	_ StageService    = (*orders.Service)(nil)
	_ MaterialService = (*inventory.Service)(nil)
	_ PriceResolver   = (*pricing.Resolver)(nil)
	_ SalaryService   = (*salary.Service)(nil)
)
