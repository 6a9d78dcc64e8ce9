package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/numerator"
	"dentallab/internal/core/types"
	"dentallab/internal/domain/inventory"
	"dentallab/internal/domain/pricing"
)

// memStore implements Repository, PatientRepository and StageTemplateSource.
type memStore struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*Order
	items    map[uuid.UUID][]Item
	stages   map[uuid.UUID][]Stage
	history  map[uuid.UUID][]HistoryEntry
	patients map[uuid.UUID]*Patient
	template []StageTemplate
}

func newMemStore() *memStore {
	return &memStore{
		orders:   map[uuid.UUID]*Order{},
		items:    map[uuid.UUID][]Item{},
		stages:   map[uuid.UUID][]Stage{},
		history:  map[uuid.UUID][]HistoryEntry{},
		patients: map[uuid.UUID]*Patient{},
	}
}

func (m *memStore) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	header := *o
	header.Items, header.Stages, header.History = nil, nil, nil
	m.orders[o.ID] = &header
	m.items[o.ID] = append([]Item(nil), o.Items...)
	m.stages[o.ID] = append([]Stage(nil), o.Stages...)
	return nil
}

func (m *memStore) Get(_ context.Context, orgID, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.OrgID != orgID {
		return nil, apperror.NewNotFound("order", id)
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (*Order, error) {
	return m.Get(ctx, orgID, id)
}

func (m *memStore) List(_ context.Context, orgID uuid.UUID, f ListFilter) (ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[Status]bool{}
	for _, s := range f.Statuses {
		want[s] = true
	}
	var out []Order
	for _, o := range m.orders {
		if o.OrgID != orgID || (len(want) > 0 && !want[o.Status]) {
			continue
		}
		if f.Search != "" && !strings.Contains(o.Number, f.Search) && !strings.Contains(o.PatientName, f.Search) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return ListResult{Items: out, TotalCount: len(out)}, nil
}

func (m *memStore) Dashboard(_ context.Context, orgID uuid.UUID, now time.Time) (*Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &Dashboard{OpenTotal: types.Zero()}
	counts := map[Status]int{}
	for _, o := range m.orders {
		if o.OrgID != orgID {
			continue
		}
		counts[o.Status]++
		if !o.Status.IsClosed() {
			d.OpenTotal = d.OpenTotal.Add(o.TotalPrice)
			if o.IsUrgent {
				d.Urgent++
			}
		}
		if o.IsOverdue(now) {
			d.Overdue++
		}
	}
	for _, s := range AllStatuses {
		if counts[s] > 0 {
			d.ByStatus = append(d.ByStatus, StatusCount{Status: s, Count: counts[s]})
		}
	}
	return d, nil
}

func (m *memStore) UpdateHeader(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	header := *o
	header.Items, header.Stages, header.History = nil, nil, nil
	m.orders[o.ID] = &header
	return nil
}

func (m *memStore) MarkReady(_ context.Context, orgID, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	if o == nil || o.OrgID != orgID || o.Status == StatusReady || o.Status.IsClosed() {
		return false, nil
	}
	o.Status = StatusReady
	o.UpdatedAt = at
	return true, nil
}

func (m *memStore) Items(_ context.Context, id uuid.UUID) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.items[id]...), nil
}

func (m *memStore) ReplaceItems(_ context.Context, id uuid.UUID, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = append([]Item(nil), items...)
	return nil
}

func (m *memStore) Stages(_ context.Context, id uuid.UUID) ([]Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Stage(nil), m.stages[id]...), nil
}

func (m *memStore) UpdateStage(_ context.Context, s *Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.stages[s.OrderID]
	for i := range list {
		if list[i].ID == s.ID {
			list[i] = *s
			return nil
		}
	}
	return fmt.Errorf("stage %s not stored", s.ID)
}

func (m *memStore) AppendHistory(_ context.Context, entries ...HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.history[e.OrderID] = append(m.history[e.OrderID], e)
	}
	return nil
}

func (m *memStore) History(_ context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryEntry(nil), m.history[id]...), nil
}

func (m *memStore) StageTemplate(context.Context, uuid.UUID) ([]StageTemplate, error) {
	return m.template, nil
}

type patientStore struct{ *memStore }

func (p patientStore) Get(_ context.Context, orgID, id uuid.UUID) (*Patient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pt, ok := p.patients[id]
	if !ok || pt.OrgID != orgID {
		return nil, apperror.NewNotFound("patient", id)
	}
	return pt, nil
}

func (p patientStore) Create(_ context.Context, pt *Patient) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patients[pt.ID] = pt
	return nil
}

// catalog resolves manual prices first and base prices otherwise.
// Work items and clients missing from it belong to another organization.
type catalog struct {
	items   map[uuid.UUID]types.Money
	clients map[uuid.UUID]bool
}

func newCatalog() *catalog {
	return &catalog{items: map[uuid.UUID]types.Money{}, clients: map[uuid.UUID]bool{}}
}

func (c *catalog) Resolve(ctx context.Context, orgID uuid.UUID, clientID *uuid.UUID, workItemID uuid.UUID, manual *types.Money) (pricing.Resolution, error) {
	p, ok := c.items[workItemID]
	if !ok {
		return pricing.Resolution{}, apperror.NewNotFound("work item", workItemID)
	}
	if clientID != nil {
		if err := c.CheckClient(ctx, orgID, *clientID); err != nil {
			return pricing.Resolution{}, err
		}
	}
	if manual != nil {
		return pricing.Resolution{Price: *manual, Source: pricing.SourceManual}, nil
	}
	return pricing.Resolution{Price: p, Source: pricing.SourceBasePrice}, nil
}

func (c *catalog) CheckClient(_ context.Context, _, clientID uuid.UUID) error {
	if !c.clients[clientID] {
		return apperror.NewNotFound("client", clientID)
	}
	return nil
}

// writeOffCounter behaves like the ledger's at-most-once claim.
type writeOffCounter struct {
	mu      sync.Mutex
	calls   map[uuid.UUID]int
	claimed map[uuid.UUID]bool
}

func newWriteOffCounter() *writeOffCounter {
	return &writeOffCounter{calls: map[uuid.UUID]int{}, claimed: map[uuid.UUID]bool{}}
}

func (w *writeOffCounter) WriteOffForOrder(_ context.Context, _, orderID uuid.UUID, trigger inventory.Trigger) (*inventory.WriteOffReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls[orderID]++
	if w.claimed[orderID] {
		return nil, apperror.NewBusinessRule(apperror.CodeAlreadyWrittenOff, "already written off")
	}
	w.claimed[orderID] = true
	return &inventory.WriteOffReport{OrderID: orderID, Trigger: trigger}, nil
}

func (w *writeOffCounter) count(orderID uuid.UUID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[orderID]
}

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// sequence numbers orders from 1, like a fresh sequence row.
type sequence struct {
	mu sync.Mutex
	n  int64
}

func (q *sequence) Next(_ context.Context, cfg numerator.Config) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.n++
	return fmt.Sprintf("%0*d", cfg.PadWidth, q.n), nil
}
