package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"dentallab/internal/core/apperror"
	appctx "dentallab/internal/core/context"
	"dentallab/internal/core/id"
	"dentallab/internal/core/tx"
	"dentallab/internal/core/types"
	"dentallab/internal/domain/auth"
	"dentallab/internal/domain/notification"
	"dentallab/pkg/logger"
)

var tracer = otel.Tracer("dentallab/inventory")

// Service is the inventory ledger.
type Service struct {
	repo      Repository
	txManager tx.Manager
	notify    *notification.Quiet
	now       func() time.Time
}

// NewService creates the ledger service.
func NewService(repo Repository, txManager tx.Manager, notifier notification.Notifier) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		notify:    notification.NewQuiet(notifier),
		now:       time.Now,
	}
}

// Get returns one material.
func (s *Service) Get(ctx context.Context, orgID, materialID uuid.UUID) (*Material, error) {
	return s.repo.GetMaterial(ctx, orgID, materialID)
}

// List returns materials of the organization.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]Material, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListMaterials(ctx, orgID, filter)
}

// Movements returns the latest ledger rows of a material, newest first.
func (s *Service) Movements(ctx context.Context, orgID, materialID uuid.UUID, limit int) ([]Movement, error) {
	if _, err := s.repo.GetMaterial(ctx, orgID, materialID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.ListMovements(ctx, orgID, materialID, limit)
}

// Receive books incoming stock.
func (s *Service) Receive(ctx context.Context, orgID, materialID uuid.UUID, qty types.Quantity, unitPrice *types.Money, note string) (*Movement, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if unitPrice != nil && unitPrice.IsNegative() {
		return nil, apperror.NewValidation("unit price must not be negative").WithDetail("field", "unitPrice")
	}

	var mv *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		level, err := s.repo.Increase(ctx, orgID, materialID, qty, unitPrice)
		if err != nil {
			return err
		}
		mv = s.newMovement(ctx, orgID, materialID, MovementIn, qty, level.After)
		mv.UnitPrice = unitPrice
		mv.Note = note
		return s.repo.InsertMovements(ctx, []Movement{*mv})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock received", "material_id", materialID, "quantity", qty, "stock_after", mv.StockAfter)
	return mv, nil
}

// Deduct books an explicit outgoing movement. Unlike the order write-off,
// a shortage here rejects the request.
func (s *Service) Deduct(ctx context.Context, orgID, materialID uuid.UUID, qty types.Quantity, note string) (*Movement, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}

	var (
		mv    *Movement
		level StockLevel
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var (
			ok  bool
			err error
		)
		level, ok, err = s.repo.Decrease(ctx, orgID, materialID, qty)
		if err != nil {
			return err
		}
		if !ok {
			return s.shortageError(ctx, orgID, materialID, qty)
		}
		mv = s.newMovement(ctx, orgID, materialID, MovementOut, -qty, level.After)
		mv.Note = note
		return s.repo.InsertMovements(ctx, []Movement{*mv})
	})
	if err != nil {
		return nil, err
	}

	if level.CrossedBelowMin() {
		s.notifyLowStock(ctx, orgID, level)
	}
	return mv, nil
}

// Adjust sets stock to a physically counted value. The movement stores the signed delta.
func (s *Service) Adjust(ctx context.Context, orgID, materialID uuid.UUID, counted types.Quantity, note string) (*Movement, error) {
	if counted.IsNegative() {
		return nil, apperror.NewValidation("counted stock must not be negative").WithDetail("field", "countedStock")
	}

	var mv *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		level, err := s.repo.SetStock(ctx, orgID, materialID, counted)
		if err != nil {
			return err
		}
		mv = s.newMovement(ctx, orgID, materialID, MovementInventory, level.After-level.Before, level.After)
		mv.Note = note
		return s.repo.InsertMovements(ctx, []Movement{*mv})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock corrected", "material_id", materialID, "delta", mv.Quantity, "stock_after", mv.StockAfter)
	return mv, nil
}

// WriteOffForOrder consumes the materials an order's items need according to norms.
//
// Demand is aggregated per material before any stock changes. Each material is
// decremented with a conditional update; a material that would go negative is
// skipped and reported as a shortage. Movements, stock updates and the per-order
// claim commit together, so the pass runs at most once per order across both
// pathways. A second call reports ALREADY_WRITTEN_OFF.
func (s *Service) WriteOffForOrder(ctx context.Context, orgID, orderID uuid.UUID, trigger Trigger) (*WriteOffReport, error) {
	ctx, span := tracer.Start(ctx, "inventory.write_off_for_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("write_off.trigger", string(trigger)),
	)

	report := &WriteOffReport{OrderID: orderID, Trigger: trigger}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		report.Deducted, report.Shortages, report.LowStock = nil, nil, nil

		claimed, err := s.repo.ClaimOrderWriteOff(ctx, orgID, orderID, trigger)
		if err != nil {
			return fmt.Errorf("claim write-off: %w", err)
		}
		if !claimed {
			return apperror.NewBusinessRule(apperror.CodeAlreadyWrittenOff, "Materials for this order were already written off").
				WithDetail("order_id", orderID)
		}

		demand, err := s.orderDemand(ctx, orgID, orderID)
		if err != nil {
			return err
		}

		movements := make([]Movement, 0, len(demand))
		for _, d := range demand {
			level, ok, err := s.repo.Decrease(ctx, orgID, d.MaterialID, d.Quantity)
			if err != nil {
				return fmt.Errorf("decrease %s: %w", d.MaterialID, err)
			}
			if !ok {
				shortage := Shortage{MaterialID: d.MaterialID, Required: d.Quantity}
				if m, err := s.repo.GetMaterial(ctx, orgID, d.MaterialID); err == nil {
					shortage.Name = m.Name
					shortage.Available = m.CurrentStock
				}
				report.Shortages = append(report.Shortages, shortage)
				continue
			}

			mv := s.newMovement(ctx, orgID, d.MaterialID, MovementWriteOff, -d.Quantity, level.After)
			mv.OrderID = &orderID
			movements = append(movements, *mv)

			report.Deducted = append(report.Deducted, Deduction{
				MaterialID: d.MaterialID,
				Name:       level.Name,
				Quantity:   d.Quantity,
				StockAfter: level.After,
			})
			if level.CrossedBelowMin() {
				report.LowStock = append(report.LowStock, level)
			}
		}

		if len(movements) == 0 {
			return nil
		}
		return s.repo.InsertMovements(ctx, movements)
	})
	if err != nil {
		if !apperror.HasCode(err, apperror.CodeAlreadyWrittenOff) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	for _, level := range report.LowStock {
		s.notifyLowStock(ctx, orgID, level)
	}
	for _, sh := range report.Shortages {
		logger.Warn(ctx, "write-off skipped: insufficient stock",
			"order_id", orderID, "material_id", sh.MaterialID,
			"required", sh.Required, "available", sh.Available)
	}
	logger.Info(ctx, "order materials written off",
		"order_id", orderID, "trigger", trigger,
		"deducted", len(report.Deducted), "shortages", len(report.Shortages))

	return report, nil
}

func (s *Service) orderDemand(ctx context.Context, orgID, orderID uuid.UUID) ([]Demand, error) {
	items, err := s.repo.OrderItemUsage(ctx, orgID, orderID)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	workItemIDs := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		if !seen[it.WorkItemID] {
			seen[it.WorkItemID] = true
			workItemIDs = append(workItemIDs, it.WorkItemID)
		}
	}

	norms, err := s.repo.NormsForWorkItems(ctx, orgID, workItemIDs)
	if err != nil {
		return nil, fmt.Errorf("norms: %w", err)
	}
	if len(norms) == 0 {
		logger.Warn(ctx, "no material norms for order items", "order_id", orderID)
	}
	return AggregateDemand(items, norms), nil
}

func (s *Service) shortageError(ctx context.Context, orgID, materialID uuid.UUID, qty types.Quantity) error {
	m, err := s.repo.GetMaterial(ctx, orgID, materialID)
	if err != nil {
		return err
	}
	return apperror.NewInsufficientStock(materialID.String(), qty.String(), m.CurrentStock.String())
}

func (s *Service) newMovement(ctx context.Context, orgID, materialID uuid.UUID, typ MovementType, qty, after types.Quantity) *Movement {
	mv := &Movement{
		ID:         id.New(),
		OrgID:      orgID,
		MaterialID: materialID,
		Type:       typ,
		Quantity:   qty,
		StockAfter: after,
		CreatedAt:  s.now(),
	}
	if userID := appctx.GetUserID(ctx); userID != uuid.Nil {
		mv.CreatedBy = &userID
	}
	return mv
}

func (s *Service) notifyLowStock(ctx context.Context, orgID uuid.UUID, level StockLevel) {
	s.notify.Org(ctx, orgID, notification.Notification{
		Type:    notification.TypeLowStock,
		Title:   "Low stock",
		Message: fmt.Sprintf("%s: %s %s left, minimum %s", level.Name, level.After, level.Unit, level.Min),
		Payload: map[string]any{
			"materialId": level.MaterialID,
			"stock":      level.After,
			"minStock":   level.Min,
		},
	}, auth.PrivilegedRoles...)
}
