package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/tx"
	"dentallab/internal/core/types"
	"dentallab/internal/domain/notification"
)

// memRepo mirrors the conditional SQL updates of the postgres repository.
type memRepo struct {
	mu        sync.Mutex
	materials map[uuid.UUID]*Material
	movements []Movement
	items     map[uuid.UUID][]ItemUsage
	norms     []Norm
	claims    map[uuid.UUID]Trigger
}

func newMemRepo() *memRepo {
	return &memRepo{
		materials: map[uuid.UUID]*Material{},
		items:     map[uuid.UUID][]ItemUsage{},
		claims:    map[uuid.UUID]Trigger{},
	}
}

func (r *memRepo) addMaterial(name string, stock, min int64) *Material {
	m := &Material{
		ID:           uuid.New(),
		Name:         name,
		Unit:         "g",
		CurrentStock: types.NewQuantityFromInt(stock),
		MinStock:     types.NewQuantityFromInt(min),
	}
	r.materials[m.ID] = m
	return m
}

func (r *memRepo) stock(id uuid.UUID) types.Quantity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.materials[id].CurrentStock
}

func (r *memRepo) GetMaterial(_ context.Context, _, id uuid.UUID) (*Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok {
		return nil, apperror.NewNotFound("material", id)
	}
	cp := *m
	return &cp, nil
}

func (r *memRepo) ListMaterials(_ context.Context, _ uuid.UUID, f ListFilter) ([]Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Material
	for _, m := range r.materials {
		if f.LowStockOnly && !m.IsLow() {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (r *memRepo) ListMovements(_ context.Context, _, materialID uuid.UUID, limit int) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for i := len(r.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if r.movements[i].MaterialID == materialID {
			out = append(out, r.movements[i])
		}
	}
	return out, nil
}

func (r *memRepo) Decrease(_ context.Context, _, id uuid.UUID, qty types.Quantity) (StockLevel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok || m.CurrentStock < qty {
		return StockLevel{}, false, nil
	}
	m.CurrentStock -= qty
	return StockLevel{MaterialID: id, Name: m.Name, Unit: m.Unit, Before: m.CurrentStock + qty, After: m.CurrentStock, Min: m.MinStock}, true, nil
}

func (r *memRepo) Increase(_ context.Context, _, id uuid.UUID, qty types.Quantity, _ *types.Money) (StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok {
		return StockLevel{}, apperror.NewNotFound("material", id)
	}
	m.CurrentStock += qty
	return StockLevel{MaterialID: id, Name: m.Name, Before: m.CurrentStock - qty, After: m.CurrentStock, Min: m.MinStock}, nil
}

func (r *memRepo) SetStock(_ context.Context, _, id uuid.UUID, counted types.Quantity) (StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok {
		return StockLevel{}, apperror.NewNotFound("material", id)
	}
	before := m.CurrentStock
	m.CurrentStock = counted
	return StockLevel{MaterialID: id, Name: m.Name, Before: before, After: counted, Min: m.MinStock}, nil
}

func (r *memRepo) InsertMovements(_ context.Context, mv []Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, mv...)
	return nil
}

func (r *memRepo) OrderItemUsage(_ context.Context, _, orderID uuid.UUID) ([]ItemUsage, error) {
	return r.items[orderID], nil
}

func (r *memRepo) NormsForWorkItems(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]Norm, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []Norm
	for _, n := range r.norms {
		if want[n.WorkItemID] {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memRepo) ClaimOrderWriteOff(_ context.Context, _, orderID uuid.UUID, trigger Trigger) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.claims[orderID]; ok {
		return false, nil
	}
	r.claims[orderID] = trigger
	return true, nil
}

func newTestService(repo *memRepo) (*Service, *notification.Recorder) {
	rec := &notification.Recorder{}
	return NewService(repo, tx.Inline, rec), rec
}

func TestAggregateDemand_SumsAcrossItems(t *testing.T) {
	crown, bridge := uuid.New(), uuid.New()
	zirconia, porcelain := uuid.New(), uuid.New()

	items := []ItemUsage{
		{WorkItemID: crown, Quantity: 2},
		{WorkItemID: bridge, Quantity: 1},
		{WorkItemID: crown, Quantity: 1},
	}
	norms := []Norm{
		{WorkItemID: crown, MaterialID: zirconia, Quantity: types.NewQuantityFromFloat64(1.5)},
		{WorkItemID: bridge, MaterialID: zirconia, Quantity: types.NewQuantityFromInt(4)},
		{WorkItemID: crown, MaterialID: porcelain, Quantity: types.NewQuantityFromFloat64(0.25)},
	}

	demand := AggregateDemand(items, norms)
	require.Len(t, demand, 2)

	got := map[uuid.UUID]types.Quantity{}
	for _, d := range demand {
		got[d.MaterialID] = d.Quantity
	}
	assert.Equal(t, types.NewQuantityFromFloat64(8.5), got[zirconia]) // 1.5*3 + 4
	assert.Equal(t, types.NewQuantityFromFloat64(0.75), got[porcelain])

	for i := 1; i < len(demand); i++ {
		assert.Negative(t, compareIDs(demand[i-1].MaterialID, demand[i].MaterialID))
	}
}

func compareIDs(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func TestDeduct_LowStockAlertIsEdgeTriggered(t *testing.T) {
	repo := newMemRepo()
	m := repo.addMaterial("Zirconia disc", 10, 5)
	svc, rec := newTestService(repo)
	ctx := context.Background()
	orgID := uuid.New()

	_, err := svc.Deduct(ctx, orgID, m.ID, types.NewQuantityFromInt(6), "")
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(4), repo.stock(m.ID))
	assert.Len(t, rec.OfType(notification.TypeLowStock), 1)

	_, err = svc.Deduct(ctx, orgID, m.ID, types.NewQuantityFromInt(1), "")
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(3), repo.stock(m.ID))
	assert.Len(t, rec.OfType(notification.TypeLowStock), 1, "no second alert while already below minimum")
}

func TestDeduct_RejectsNegativeStock(t *testing.T) {
	repo := newMemRepo()
	m := repo.addMaterial("Wax", 2, 0)
	svc, _ := newTestService(repo)

	_, err := svc.Deduct(context.Background(), uuid.New(), m.ID, types.NewQuantityFromInt(3), "")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, types.NewQuantityFromInt(2), repo.stock(m.ID))
	assert.Empty(t, repo.movements)

	_, err = svc.Deduct(context.Background(), uuid.New(), uuid.New(), types.NewQuantityFromInt(1), "")
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.Deduct(context.Background(), uuid.New(), m.ID, 0, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestReceiveAndAdjust(t *testing.T) {
	repo := newMemRepo()
	m := repo.addMaterial("Gypsum", 5, 1)
	svc, _ := newTestService(repo)
	ctx := context.Background()

	price := types.MustMoney("12.40")
	mv, err := svc.Receive(ctx, uuid.New(), m.ID, types.NewQuantityFromInt(10), &price, "delivery")
	require.NoError(t, err)
	assert.Equal(t, MovementIn, mv.Type)
	assert.Equal(t, types.NewQuantityFromInt(15), mv.StockAfter)

	mv, err = svc.Adjust(ctx, uuid.New(), m.ID, types.NewQuantityFromInt(12), "count")
	require.NoError(t, err)
	assert.Equal(t, MovementInventory, mv.Type)
	assert.Equal(t, types.NewQuantityFromInt(-3), mv.Quantity)
	assert.Equal(t, types.NewQuantityFromInt(12), repo.stock(m.ID))

	_, err = svc.Adjust(ctx, uuid.New(), m.ID, types.NewQuantityFromInt(-1), "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestWriteOffForOrder(t *testing.T) {
	repo := newMemRepo()
	zirconia := repo.addMaterial("Zirconia", 10, 5)
	porcelain := repo.addMaterial("Porcelain", 1, 0)

	crown := uuid.New()
	orderID := uuid.New()
	repo.items[orderID] = []ItemUsage{{WorkItemID: crown, Quantity: 3}}
	repo.norms = []Norm{
		{WorkItemID: crown, MaterialID: zirconia.ID, Quantity: types.NewQuantityFromInt(2)},
		{WorkItemID: crown, MaterialID: porcelain.ID, Quantity: types.NewQuantityFromInt(1)},
	}

	svc, rec := newTestService(repo)
	report, err := svc.WriteOffForOrder(context.Background(), uuid.New(), orderID, TriggerStagesCompleted)
	require.NoError(t, err)

	require.Len(t, report.Deducted, 1)
	assert.Equal(t, zirconia.ID, report.Deducted[0].MaterialID)
	assert.Equal(t, types.NewQuantityFromInt(4), repo.stock(zirconia.ID))

	require.Len(t, report.Shortages, 1)
	assert.Equal(t, porcelain.ID, report.Shortages[0].MaterialID)
	assert.Equal(t, types.NewQuantityFromInt(3), report.Shortages[0].Required)
	assert.Equal(t, types.NewQuantityFromInt(1), report.Shortages[0].Available)
	assert.Equal(t, types.NewQuantityFromInt(1), repo.stock(porcelain.ID), "skipped material is untouched")

	require.Len(t, repo.movements, 1)
	assert.Equal(t, MovementWriteOff, repo.movements[0].Type)
	assert.Equal(t, &orderID, repo.movements[0].OrderID)
	assert.Len(t, rec.OfType(notification.TypeLowStock), 1)

	_, err = svc.WriteOffForOrder(context.Background(), uuid.New(), orderID, TriggerManual)
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyWrittenOff))
	assert.Equal(t, types.NewQuantityFromInt(4), repo.stock(zirconia.ID))
}

func TestWriteOffForOrder_ConcurrentPassesNeverGoNegative(t *testing.T) {
	repo := newMemRepo()
	m := repo.addMaterial("Alloy", 10, 0)
	item := uuid.New()
	repo.norms = []Norm{{WorkItemID: item, MaterialID: m.ID, Quantity: types.NewQuantityFromInt(3)}}

	orders := make([]uuid.UUID, 8)
	for i := range orders {
		orders[i] = uuid.New()
		repo.items[orders[i]] = []ItemUsage{{WorkItemID: item, Quantity: 1}}
	}

	svc, _ := newTestService(repo)
	var wg sync.WaitGroup
	for _, orderID := range orders {
		wg.Add(1)
		go func(orderID uuid.UUID) {
			defer wg.Done()
			_, err := svc.WriteOffForOrder(context.Background(), uuid.New(), orderID, TriggerStagesCompleted)
			assert.NoError(t, err)
		}(orderID)
	}
	wg.Wait()

	assert.Equal(t, types.NewQuantityFromInt(1), repo.stock(m.ID))
	assert.Len(t, repo.movements, 3)
}

func TestStockLevel_CrossedBelowMin(t *testing.T) {
	q := types.NewQuantityFromInt
	assert.True(t, StockLevel{Before: q(10), After: q(4), Min: q(5)}.CrossedBelowMin())
	assert.True(t, StockLevel{Before: q(5), After: q(4), Min: q(5)}.CrossedBelowMin())
	assert.False(t, StockLevel{Before: q(4), After: q(3), Min: q(5)}.CrossedBelowMin())
	assert.False(t, StockLevel{Before: q(10), After: q(5), Min: q(5)}.CrossedBelowMin())
	assert.False(t, StockLevel{Before: q(1), After: q(0), Min: q(0)}.CrossedBelowMin())
}
