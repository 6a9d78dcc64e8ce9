package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/domain/salary"
	"dentallab/pkg/logger"
)

const (
	refreshInterval = time.Minute
	cleanupInterval = time.Hour
)

// OrganizationLister returns the organizations the worker serves.
type OrganizationLister interface {
	ActiveOrganizations(ctx context.Context) ([]uuid.UUID, error)
}

// Accruer recomputes the salaries of one organization.
type Accruer interface {
	AccrueAll(ctx context.Context, orgID uuid.UUID, period salary.Period) ([]salary.Accrual, error)
}

// ExpiredKeyCleaner purges idempotency keys past their TTL.
type ExpiredKeyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// StatsLogger reports connection pool usage.
type StatsLogger interface {
	LogStats(ctx context.Context)
}

// Jobs are the collaborators of the worker. Idempotency and Pool are optional.
type Jobs struct {
	Organizations OrganizationLister
	Accruer       Accruer
	Idempotency   ExpiredKeyCleaner
	Pool          StatsLogger
}

// Worker runs one accrual loop per active organization plus global housekeeping.
type Worker struct {
	jobs            Jobs
	accrualInterval time.Duration
	log             *logger.Logger
	now             func() time.Time
}

func NewWorker(jobs Jobs, accrualInterval time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		jobs:            jobs,
		accrualInterval: accrualInterval,
		log:             log.WithComponent("worker"),
		now:             time.Now,
	}
}

// Run blocks until ctx is cancelled and every organization loop has returned.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	var wg sync.WaitGroup
	running := make(map[uuid.UUID]context.CancelFunc)

	w.refreshOrganizations(ctx, &wg, running)

	for {
		select {
		case <-ctx.Done():
			for _, cancel := range running {
				cancel()
			}
			wg.Wait()
			return

		case <-ticker.C:
			w.refreshOrganizations(ctx, &wg, running)

		case <-cleanupTicker.C:
			w.housekeeping(ctx)
		}
	}
}

func (w *Worker) refreshOrganizations(ctx context.Context, wg *sync.WaitGroup, running map[uuid.UUID]context.CancelFunc) {
	orgs, err := w.jobs.Organizations.ActiveOrganizations(ctx)
	if err != nil {
		w.log.Errorw("failed to list active organizations", "error", err)
		return
	}

	active := make(map[uuid.UUID]struct{}, len(orgs))
	for _, id := range orgs {
		active[id] = struct{}{}
	}

	for id, cancel := range running {
		if _, ok := active[id]; !ok {
			cancel()
			delete(running, id)
			w.log.Infow("stopped accrual for inactive organization", "org_id", id)
		}
	}

	for _, id := range orgs {
		if _, ok := running[id]; ok {
			continue
		}
		orgCtx, orgCancel := context.WithCancel(ctx)
		running[id] = orgCancel

		wg.Add(1)
		go func(orgID uuid.UUID) {
			defer wg.Done()
			w.runAccrualLoop(orgCtx, orgID)
		}(id)
		w.log.Infow("started accrual for organization", "org_id", id)
	}
}

func (w *Worker) runAccrualLoop(ctx context.Context, orgID uuid.UUID) {
	ticker := time.NewTicker(w.accrualInterval)
	defer ticker.Stop()

	w.accrue(ctx, orgID)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.accrue(ctx, orgID)
		}
	}
}

// accrue recomputes the current month and logs failures; the next tick retries.
func (w *Worker) accrue(ctx context.Context, orgID uuid.UUID) {
	period := salary.PeriodOf(w.now())
	accruals, err := w.jobs.Accruer.AccrueAll(ctx, orgID, period)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Errorw("salary accrual failed", "org_id", orgID, "period", period.String(), "error", err)
		}
		return
	}
	w.log.Debugw("salary accrued", "org_id", orgID, "period", period.String(), "employees", len(accruals))
}

func (w *Worker) housekeeping(ctx context.Context) {
	if w.jobs.Idempotency != nil {
		n, err := w.jobs.Idempotency.CleanupExpired(ctx)
		if err != nil {
			w.log.Errorw("idempotency cleanup failed", "error", err)
		} else if n > 0 {
			w.log.Infow("cleaned up idempotency keys", "count", n)
		}
	}
	if w.jobs.Pool != nil {
		w.jobs.Pool.LogStats(ctx)
	}
}
