package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/cache"
	appctx "dentallab/internal/core/context"
	"dentallab/internal/core/id"
	"dentallab/internal/core/numerator"
	"dentallab/internal/core/tx"
	"dentallab/internal/core/types"
	"dentallab/internal/domain/auth"
	"dentallab/internal/domain/inventory"
	"dentallab/internal/domain/notification"
	"dentallab/internal/domain/pricing"
	"dentallab/pkg/logger"
)

// PriceResolver resolves the unit price of an order line. Both methods return
// apperror NotFound for a client or work item of another organization.
type PriceResolver interface {
	Resolve(ctx context.Context, orgID uuid.UUID, clientID *uuid.UUID, workItemID uuid.UUID, manual *types.Money) (pricing.Resolution, error)
	CheckClient(ctx context.Context, orgID, clientID uuid.UUID) error
}

// MaterialWriteOff runs the inventory consumption pass of an order.
type MaterialWriteOff interface {
	WriteOffForOrder(ctx context.Context, orgID, orderID uuid.UUID, trigger inventory.Trigger) (*inventory.WriteOffReport, error)
}

// Config tunes the order service.
type Config struct {
	// NumberPad is the zero-padded width of order numbers.
	NumberPad int
	// CacheTTL bounds how long list, board and dashboard projections are served from cache.
	CacheTTL time.Duration
}

// Dependencies are the collaborators of the order service.
type Dependencies struct {
	Repo      Repository
	Patients  PatientRepository
	Templates StageTemplateSource
	Prices    PriceResolver
	Materials MaterialWriteOff
	Numbers   numerator.Generator
	TxManager tx.Manager
	Cache     cache.Cache
	Notifier  notification.Notifier
}

// Service orchestrates the order aggregate.
type Service struct {
	repo      Repository
	patients  PatientRepository
	templates StageTemplateSource
	prices    PriceResolver
	materials MaterialWriteOff
	numbers   numerator.Generator
	txManager tx.Manager
	cache     cache.Cache
	notify    *notification.Quiet
	cfg       Config
	now       func() time.Time
}

// NewService creates the order service.
func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.NumberPad <= 0 {
		cfg.NumberPad = 6
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 90 * time.Second
	}
	c := deps.Cache
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		repo:      deps.Repo,
		patients:  deps.Patients,
		templates: deps.Templates,
		prices:    deps.Prices,
		materials: deps.Materials,
		numbers:   deps.Numbers,
		txManager: deps.TxManager,
		cache:     c,
		notify:    notification.NewQuiet(deps.Notifier),
		cfg:       cfg,
		now:       time.Now,
	}
}

// CreateInput is a new order request.
type CreateInput struct {
	ClientID    *uuid.UUID
	PatientID   *uuid.UUID
	PatientName string
	DoctorName  string
	IsUrgent    bool
	DueDate     *time.Time
	Notes       string
	Items       []ItemInput
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return apperror.NewValidation("order must contain at least one item").WithDetail("field", "items")
	}
	for i, in := range items {
		if err := in.validate(i + 1); err != nil {
			return err
		}
	}
	return nil
}

// Create registers a new order: allocates its number, prices the lines,
// instantiates the stage pipeline and writes the first history entry in one transaction.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, in CreateInput) (*Order, error) {
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	now := s.now()
	order := &Order{
		ID:            id.New(),
		OrgID:         orgID,
		ClientID:      in.ClientID,
		DoctorName:    strings.TrimSpace(in.DoctorName),
		Status:        StatusNew,
		IsUrgent:      in.IsUrgent,
		PaymentStatus: PaymentUnpaid,
		DueDate:       in.DueDate,
		Notes:         in.Notes,
		CreatedBy:     actorID(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if in.ClientID != nil {
			if err := s.prices.CheckClient(ctx, orgID, *in.ClientID); err != nil {
				return err
			}
		}

		number, err := s.numbers.Next(ctx, numerator.OrderConfig(orgID.String(), s.cfg.NumberPad))
		if err != nil {
			return fmt.Errorf("allocate order number: %w", err)
		}
		order.Number = number

		if err := s.resolvePatient(ctx, order, in); err != nil {
			return err
		}

		items, err := s.priceItems(ctx, order, in.Items)
		if err != nil {
			return err
		}
		order.Items = items
		order.ApplyTotals()

		template, err := s.templates.StageTemplate(ctx, orgID)
		if err != nil {
			return fmt.Errorf("load stage template: %w", err)
		}
		order.Stages = NewStages(order.ID, template, id.New)

		if err := s.repo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		created := s.historyEntry(ctx, order, ActionCreated)
		created.ToStatus = statusPtr(StatusNew)
		created.Payload = map[string]any{
			"number":     order.Number,
			"itemCount":  len(order.Items),
			"totalPrice": order.TotalPrice.StringFixed(2),
			"isUrgent":   order.IsUrgent,
		}
		return s.repo.AppendHistory(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order created", "order_id", order.ID, "number", order.Number, "total", order.TotalPrice)
	s.invalidate(ctx, orgID)

	title := "New order"
	if order.IsUrgent {
		title = "Urgent order"
	}
	s.notify.Org(ctx, orgID, notification.Notification{
		Type:    notification.TypeOrderCreated,
		Title:   title,
		Message: fmt.Sprintf("Order %s created", order.Number),
		Payload: map[string]any{"orderId": order.ID, "number": order.Number, "isUrgent": order.IsUrgent},
	}, auth.PrivilegedRoles...)

	return order, nil
}

func (s *Service) resolvePatient(ctx context.Context, order *Order, in CreateInput) error {
	if in.PatientID != nil {
		p, err := s.patients.Get(ctx, order.OrgID, *in.PatientID)
		if err != nil {
			return err
		}
		order.PatientID = &p.ID
		order.PatientName = p.FullName()
		return nil
	}

	name := SplitFullName(in.PatientName)
	if name.LastName == "" {
		return nil
	}
	p := &Patient{
		ID:         id.New(),
		OrgID:      order.OrgID,
		LastName:   name.LastName,
		FirstName:  name.FirstName,
		MiddleName: name.MiddleName,
		CreatedAt:  s.now(),
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	order.PatientID = &p.ID
	order.PatientName = p.FullName()
	return nil
}

func (s *Service) priceItems(ctx context.Context, order *Order, inputs []ItemInput) ([]Item, error) {
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		res, err := s.prices.Resolve(ctx, order.OrgID, order.ClientID, in.WorkItemID, in.ManualPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, newItem(order.ID, i+1, in, res, id.New))
	}
	return items, nil
}

// UpdateInput is a partial patch. Nil fields are left unchanged.
type UpdateInput struct {
	Status            *Status
	IsUrgent          *bool
	PaymentStatus     *PaymentStatus
	ClientID          *uuid.UUID
	DoctorName        *string
	Notes             *string
	DueDate           *time.Time
	FrameworkReadyAt  *time.Time
	SettingAt         *time.Time
	FittingSentAt     *time.Time
	FittingReturnedAt *time.Time
}

// Update patches order fields. A status change is validated, recorded with its
// before and after values and announced to privileged users.
// Closed orders accept only payment status and notes.
func (s *Service) Update(ctx context.Context, orgID, orderID uuid.UUID, in UpdateInput) (*Order, error) {
	if in.PaymentStatus != nil && !in.PaymentStatus.IsValid() {
		return nil, apperror.NewValidation("unknown payment status").WithDetail("paymentStatus", *in.PaymentStatus)
	}

	var (
		order      *Order
		fromStatus Status
		changed    bool
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetForUpdate(ctx, orgID, orderID)
		if err != nil {
			return err
		}
		fromStatus = order.Status
		now := s.now()

		if order.Status.IsClosed() && touchesProduction(in) {
			return apperror.NewOrderClosed(order.ID, string(order.Status))
		}
		if in.ClientID != nil {
			if err := s.prices.CheckClient(ctx, orgID, *in.ClientID); err != nil {
				return err
			}
		}

		if in.Status != nil && *in.Status != order.Status {
			var stages []Stage
			if *in.Status == StatusReady {
				if stages, err = s.repo.Stages(ctx, order.ID); err != nil {
					return fmt.Errorf("load stages: %w", err)
				}
			}
			if err := ValidateTransition(order.Status, *in.Status, stages); err != nil {
				return err
			}
			order.Status = *in.Status
			if order.Status == StatusDelivered && order.DeliveredAt == nil {
				order.DeliveredAt = &now
			}
			changed = true
		}

		fields := applyPatch(order, in)
		order.UpdatedAt = now
		if err := s.repo.UpdateHeader(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		entry := s.historyEntry(ctx, order, ActionUpdated)
		if changed {
			entry.Action = ActionStatusChanged
			entry.FromStatus = statusPtr(fromStatus)
			entry.ToStatus = statusPtr(order.Status)
		}
		entry.Payload = map[string]any{"fields": fields}
		return s.repo.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, orgID)
	if changed {
		s.notifyStatusChanged(ctx, order, fromStatus)
	}
	return order, nil
}

func touchesProduction(in UpdateInput) bool {
	return in.IsUrgent != nil || in.ClientID != nil || in.DoctorName != nil || in.DueDate != nil ||
		in.FrameworkReadyAt != nil || in.SettingAt != nil || in.FittingSentAt != nil || in.FittingReturnedAt != nil
}

// applyPatch overwrites present fields and returns their names.
func applyPatch(o *Order, in UpdateInput) []string {
	var fields []string
	if in.Status != nil {
		fields = append(fields, "status")
	}
	if in.IsUrgent != nil {
		o.IsUrgent = *in.IsUrgent
		fields = append(fields, "isUrgent")
	}
	if in.PaymentStatus != nil {
		o.PaymentStatus = *in.PaymentStatus
		fields = append(fields, "paymentStatus")
	}
	if in.ClientID != nil {
		o.ClientID = in.ClientID
		fields = append(fields, "clientId")
	}
	if in.DoctorName != nil {
		o.DoctorName = strings.TrimSpace(*in.DoctorName)
		fields = append(fields, "doctorName")
	}
	if in.Notes != nil {
		o.Notes = *in.Notes
		fields = append(fields, "notes")
	}
	if in.DueDate != nil {
		o.DueDate = in.DueDate
		fields = append(fields, "dueDate")
	}
	if in.FrameworkReadyAt != nil {
		o.FrameworkReadyAt = in.FrameworkReadyAt
		fields = append(fields, "frameworkReadyAt")
	}
	if in.SettingAt != nil {
		o.SettingAt = in.SettingAt
		fields = append(fields, "settingAt")
	}
	if in.FittingSentAt != nil {
		o.FittingSentAt = in.FittingSentAt
		fields = append(fields, "fittingSentAt")
	}
	if in.FittingReturnedAt != nil {
		o.FittingReturnedAt = in.FittingReturnedAt
		fields = append(fields, "fittingReturnedAt")
	}
	return fields
}

// ReplaceItems swaps every line of an order, re-prices them and recomputes
// the order total in one transaction.
func (s *Service) ReplaceItems(ctx context.Context, orgID, orderID uuid.UUID, inputs []ItemInput) (*Order, error) {
	if err := validateItems(inputs); err != nil {
		return nil, err
	}

	var order *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetForUpdate(ctx, orgID, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsClosed() {
			return apperror.NewOrderClosed(order.ID, string(order.Status))
		}

		items, err := s.priceItems(ctx, order, inputs)
		if err != nil {
			return err
		}
		if err := s.repo.ReplaceItems(ctx, order.ID, items); err != nil {
			return fmt.Errorf("replace items: %w", err)
		}
		order.Items = items
		order.ApplyTotals()
		order.UpdatedAt = s.now()
		if err := s.repo.UpdateHeader(ctx, order); err != nil {
			return fmt.Errorf("update totals: %w", err)
		}

		entry := s.historyEntry(ctx, order, ActionItemsReplaced)
		entry.Payload = map[string]any{
			"itemCount":  len(items),
			"totalPrice": order.TotalPrice.StringFixed(2),
		}
		return s.repo.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, orgID)
	return order, nil
}

// Cancel is the soft delete of an order.
func (s *Service) Cancel(ctx context.Context, orgID, orderID uuid.UUID) (*Order, error) {
	var (
		order *Order
		from  Status
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetForUpdate(ctx, orgID, orderID)
		if err != nil {
			return err
		}
		if order.Status == StatusCancelled {
			return apperror.NewBusinessRule(apperror.CodeOrderAlreadyCancelled, "Order is already cancelled").
				WithDetail("order_id", order.ID)
		}
		if err := ValidateTransition(order.Status, StatusCancelled, nil); err != nil {
			return err
		}

		from = order.Status
		order.Status = StatusCancelled
		order.UpdatedAt = s.now()
		if err := s.repo.UpdateHeader(ctx, order); err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		entry := s.historyEntry(ctx, order, ActionStatusChanged)
		entry.FromStatus = statusPtr(from)
		entry.ToStatus = statusPtr(StatusCancelled)
		return s.repo.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, orgID)
	s.notifyStatusChanged(ctx, order, from)
	return order, nil
}

// AddComment appends a free-text entry to the order history.
func (s *Service) AddComment(ctx context.Context, orgID, orderID uuid.UUID, text string) (*HistoryEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.NewValidation("comment must not be empty").WithDetail("field", "text")
	}

	order, err := s.repo.Get(ctx, orgID, orderID)
	if err != nil {
		return nil, err
	}
	entry := s.historyEntry(ctx, order, ActionComment)
	entry.Comment = text
	if err := s.repo.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("append comment: %w", err)
	}
	s.invalidate(ctx, orgID)
	return &entry, nil
}

// WriteOffMaterials is the explicit "write off now" action.
// It shares the consumption pass with stage completion and is rejected once
// the order's materials were written off by either pathway.
func (s *Service) WriteOffMaterials(ctx context.Context, orgID, orderID uuid.UUID) (*inventory.WriteOffReport, error) {
	order, err := s.repo.Get(ctx, orgID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusCancelled {
		return nil, apperror.NewOrderClosed(order.ID, string(order.Status))
	}

	report, err := s.materials.WriteOffForOrder(ctx, orgID, orderID, inventory.TriggerManual)
	if err != nil {
		return nil, err
	}
	s.recordWriteOff(ctx, order, report)
	s.invalidate(ctx, orgID)
	return report, nil
}

func (s *Service) recordWriteOff(ctx context.Context, order *Order, report *inventory.WriteOffReport) {
	entry := s.historyEntry(ctx, order, ActionWrittenOff)
	entry.Payload = map[string]any{
		"trigger":   report.Trigger,
		"deducted":  len(report.Deducted),
		"shortages": len(report.Shortages),
	}
	if err := s.repo.AppendHistory(ctx, entry); err != nil {
		logger.Warn(ctx, "write-off history not recorded", "order_id", order.ID, "error", err)
	}
}

func (s *Service) historyEntry(ctx context.Context, order *Order, action HistoryAction) HistoryEntry {
	return HistoryEntry{
		ID:        id.New(),
		OrderID:   order.ID,
		OrgID:     order.OrgID,
		Action:    action,
		UserID:    actorID(ctx),
		CreatedAt: s.now(),
	}
}

func (s *Service) notifyStatusChanged(ctx context.Context, order *Order, from Status) {
	s.notify.Org(ctx, order.OrgID, notification.Notification{
		Type:    notification.TypeOrderStatusChanged,
		Title:   fmt.Sprintf("Order %s: %s", order.Number, order.Status.Label()),
		Message: fmt.Sprintf("Status changed from %s to %s", from.Label(), order.Status.Label()),
		Payload: map[string]any{"orderId": order.ID, "from": from, "to": order.Status},
	}, auth.PrivilegedRoles...)
}

// invalidate drops every cached projection of the organization's orders.
func (s *Service) invalidate(ctx context.Context, orgID uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.OrderKeys(orgID)...); err != nil {
		logger.Warn(ctx, "order cache invalidation failed", "org_id", orgID, "error", err)
	}
}

func actorID(ctx context.Context) *uuid.UUID {
	if uid := appctx.GetUserID(ctx); uid != uuid.Nil {
		return &uid
	}
	return nil
}

func statusPtr(s Status) *Status { return &s }
