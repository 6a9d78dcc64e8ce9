package salary

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/id"
	"dentallab/internal/core/types"
	"dentallab/pkg/logger"
)

const lockTTL = 30 * time.Second

// Service computes and stores salary accruals.
type Service struct {
	repo   Repository
	policy AttributionPolicy
	locker Locker
	now    func() time.Time
}

// NewService creates the accrual service. A nil policy means equal split;
// a nil locker disables serialization.
func NewService(repo Repository, policy AttributionPolicy, locker Locker) *Service {
	if policy == nil {
		policy = EqualSplitAttributionPolicy{}
	}
	return &Service{repo: repo, policy: policy, locker: locker, now: time.Now}
}

func lockKey(orgID, employeeID uuid.UUID, period Period) string {
	return fmt.Sprintf("salary:%s:%s:%s", orgID, employeeID, period)
}

// Accrue recomputes the accrual of one technician for a period and overwrites its record.
func (s *Service) Accrue(ctx context.Context, orgID, employeeID uuid.UUID, period Period) (*Accrual, error) {
	if employeeID == uuid.Nil {
		return nil, apperror.NewValidation("employee is required").WithDetail("field", "employeeId")
	}

	release, err := s.lock(ctx, lockKey(orgID, employeeID, period))
	if err != nil {
		return nil, err
	}
	defer release()

	from, to := period.Range()
	work, err := s.repo.CompletedStages(ctx, orgID, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load completed stages: %w", err)
	}

	perOrder, err := s.orderContributions(ctx, orgID, work)
	if err != nil {
		return nil, err
	}

	acc := &Accrual{Breakdown: make([]StageAccrual, 0, len(work))}
	total := types.Zero()
	for _, w := range work {
		contribution := perOrder[w.OrderID]
		share, err := s.policy.Attribute(AttributionInput{
			Contribution:    contribution,
			CompletedStages: w.CompletedStages,
			TotalStages:     w.TotalStages,
			CompletedRank:   w.CompletedRank,
		})
		if err != nil {
			return nil, apperror.NewInternal(err).WithDetail("stage_id", w.StageID)
		}
		total = total.Add(share)
		acc.Breakdown = append(acc.Breakdown, StageAccrual{StageWork: w, Contribution: contribution, Share: share})
	}

	acc.Record = Record{
		ID:           id.New(),
		OrgID:        orgID,
		EmployeeID:   employeeID,
		Period:       period.String(),
		StageCount:   len(work),
		Amount:       total.Round(types.MoneyPlaces),
		Policy:       s.policy.Name(),
		CalculatedAt: s.now(),
	}
	if err := s.repo.UpsertRecord(ctx, &acc.Record); err != nil {
		return nil, fmt.Errorf("store accrual: %w", err)
	}

	logger.Info(ctx, "salary accrued",
		"employee_id", employeeID, "period", acc.Record.Period,
		"stages", acc.Record.StageCount, "amount", acc.Record.Amount)
	return acc, nil
}

// orderContributions sums the pay of every line per order.
func (s *Service) orderContributions(ctx context.Context, orgID uuid.UUID, work []StageWork) (map[uuid.UUID]types.Money, error) {
	out := make(map[uuid.UUID]types.Money)
	if len(work) == 0 {
		return out, nil
	}
	orderIDs := make([]uuid.UUID, 0, len(work))
	for _, w := range work {
		if _, ok := out[w.OrderID]; !ok {
			out[w.OrderID] = types.Zero()
			orderIDs = append(orderIDs, w.OrderID)
		}
	}

	lines, err := s.repo.OrderLines(ctx, orgID, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	for _, l := range lines {
		out[l.OrderID] = out[l.OrderID].Add(l.contribution())
	}
	return out, nil
}

// AccrueAll recomputes every technician who completed a stage in the period.
func (s *Service) AccrueAll(ctx context.Context, orgID uuid.UUID, period Period) ([]Accrual, error) {
	from, to := period.Range()
	employees, err := s.repo.EmployeesWithCompletedStages(ctx, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}

	out := make([]Accrual, 0, len(employees))
	for _, emp := range employees {
		acc, err := s.Accrue(ctx, orgID, emp, period)
		if err != nil {
			return nil, err
		}
		out = append(out, *acc)
	}
	return out, nil
}

// ListRecords returns the stored accruals of a period.
func (s *Service) ListRecords(ctx context.Context, orgID uuid.UUID, period Period) ([]Record, error) {
	return s.repo.ListRecords(ctx, orgID, period.String())
}

// lock takes the recomputation lock. Only contention is fatal; an unavailable
// lock backend degrades to running unserialized.
func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	release, err := s.locker.Obtain(ctx, key, lockTTL)
	if apperror.HasCode(err, apperror.CodeLocked) {
		return nil, err
	}
	if err != nil {
		logger.Warn(ctx, "salary lock unavailable", "key", key, "error", err)
		return noop, nil
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "salary lock release failed", "key", key, "error", err)
		}
	}, nil
}
