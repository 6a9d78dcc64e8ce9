package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/core/cache"
	"dentallab/pkg/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	boardLimit      = 500
)

// BoardStatuses are the columns of the order board.
var BoardStatuses = []Status{StatusNew, StatusInProgress, StatusFitting, StatusReady}

// Get returns an order with items, stages (by position) and history.
func (s *Service) Get(ctx context.Context, orgID, orderID uuid.UUID) (*Order, error) {
	order, err := s.repo.Get(ctx, orgID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Items, err = s.repo.Items(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	if order.Stages, err = s.repo.Stages(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	SortStages(order.Stages)
	if order.History, err = s.repo.History(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return order, nil
}

// List returns a page of orders. The unfiltered first page is cached.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, filter ListFilter) (ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	load := func(ctx context.Context) (ListResult, error) { return s.repo.List(ctx, orgID, filter) }
	if !filter.IsDefaultPage() || filter.Limit != defaultPageSize {
		return load(ctx)
	}
	return cached(ctx, s.cache, cache.OrderListKey(orgID), s.cfg.CacheTTL, load)
}

// Kanban groups open and ready orders by status.
func (s *Service) Kanban(ctx context.Context, orgID uuid.UUID) ([]KanbanColumn, error) {
	return cached(ctx, s.cache, cache.KanbanKey(orgID), s.cfg.CacheTTL, func(ctx context.Context) ([]KanbanColumn, error) {
		res, err := s.repo.List(ctx, orgID, ListFilter{Statuses: BoardStatuses, Limit: boardLimit})
		if err != nil {
			return nil, err
		}
		return groupByStatus(res.Items), nil
	})
}

func groupByStatus(list []Order) []KanbanColumn {
	cols := make([]KanbanColumn, len(BoardStatuses))
	index := make(map[Status]int, len(BoardStatuses))
	for i, st := range BoardStatuses {
		cols[i] = KanbanColumn{Status: st, Label: st.Label(), Orders: []Order{}}
		index[st] = i
	}
	for _, o := range list {
		if i, ok := index[o.Status]; ok {
			cols[i].Orders = append(cols[i].Orders, o)
		}
	}
	return cols
}

// Dashboard returns order counters of the organization.
func (s *Service) Dashboard(ctx context.Context, orgID uuid.UUID) (*Dashboard, error) {
	return cached(ctx, s.cache, cache.DashboardKey(orgID), s.cfg.CacheTTL, func(ctx context.Context) (*Dashboard, error) {
		return s.repo.Dashboard(ctx, orgID, s.now())
	})
}

// cached is cache-aside: a miss or a cache failure falls back to load.
func cached[T any](ctx context.Context, c cache.Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	hit, err := c.Get(ctx, key, &v)
	if err != nil {
		logger.Warn(ctx, "cache read failed", "key", key, "error", err)
	}
	if hit && err == nil {
		return v, nil
	}

	v, err = load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		logger.Warn(ctx, "cache write failed", "key", key, "error", err)
	}
	return v, nil
}
