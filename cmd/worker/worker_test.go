package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentallab/internal/domain/salary"
	"dentallab/pkg/logger"
)

type fakeOrgs struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (f *fakeOrgs) ActiveOrganizations(context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.ids...), f.err
}

type fakeAccruer struct {
	mu     sync.Mutex
	calls  map[uuid.UUID][]salary.Period
	called chan uuid.UUID
}

func newFakeAccruer() *fakeAccruer {
	return &fakeAccruer{calls: make(map[uuid.UUID][]salary.Period), called: make(chan uuid.UUID, 16)}
}

func (f *fakeAccruer) AccrueAll(_ context.Context, orgID uuid.UUID, period salary.Period) ([]salary.Accrual, error) {
	f.mu.Lock()
	f.calls[orgID] = append(f.calls[orgID], period)
	f.mu.Unlock()
	f.called <- orgID
	return nil, nil
}

type fakeCleaner struct {
	n     int64
	err   error
	calls int
}

func (f *fakeCleaner) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return f.n, f.err
}

type fakeStats struct{ calls int }

func (f *fakeStats) LogStats(context.Context) { f.calls++ }

func TestWorker_StartsAndStopsOrganizationLoops(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	orgs := &fakeOrgs{ids: []uuid.UUID{orgA, orgB}}
	accruer := newFakeAccruer()

	w := NewWorker(Jobs{Organizations: orgs, Accruer: accruer}, time.Hour, logger.Nop())
	w.now = func() time.Time { return time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	running := make(map[uuid.UUID]context.CancelFunc)
	w.refreshOrganizations(ctx, &wg, running)
	require.Len(t, running, 2)

	seen := map[uuid.UUID]bool{}
	for range 2 {
		select {
		case id := <-accruer.called:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("accrual was not run on start")
		}
	}
	assert.True(t, seen[orgA])
	assert.True(t, seen[orgB])

	orgs.mu.Lock()
	orgs.ids = []uuid.UUID{orgB}
	orgs.mu.Unlock()
	w.refreshOrganizations(ctx, &wg, running)
	assert.Len(t, running, 1)
	assert.Contains(t, running, orgB)

	cancel()
	wg.Wait()

	accruer.mu.Lock()
	defer accruer.mu.Unlock()
	assert.Equal(t, []salary.Period{{Year: 2026, Month: time.March}}, accruer.calls[orgA])
}

func TestWorker_RefreshErrorKeepsRunningLoops(t *testing.T) {
	org := uuid.New()
	orgs := &fakeOrgs{ids: []uuid.UUID{org}}
	accruer := newFakeAccruer()
	w := NewWorker(Jobs{Organizations: orgs, Accruer: accruer}, time.Hour, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	running := make(map[uuid.UUID]context.CancelFunc)
	w.refreshOrganizations(ctx, &wg, running)

	orgs.mu.Lock()
	orgs.err = errors.New("db down")
	orgs.mu.Unlock()
	w.refreshOrganizations(ctx, &wg, running)
	assert.Len(t, running, 1)

	cancel()
	wg.Wait()
}

func TestWorker_Housekeeping(t *testing.T) {
	cleaner := &fakeCleaner{n: 3}
	stats := &fakeStats{}
	w := NewWorker(Jobs{Idempotency: cleaner, Pool: stats}, time.Hour, logger.Nop())

	w.housekeeping(context.Background())
	assert.Equal(t, 1, cleaner.calls)
	assert.Equal(t, 1, stats.calls)

	cleaner.err = errors.New("boom")
	w.housekeeping(context.Background())
	assert.Equal(t, 2, cleaner.calls)

	// Optional jobs may be absent.
	NewWorker(Jobs{}, time.Hour, logger.Nop()).housekeeping(context.Background())
}
