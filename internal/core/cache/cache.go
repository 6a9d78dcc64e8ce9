// Package cache defines the cache-aside contract for derived order projections.
// Every read is safe to miss; writers invalidate by deleting keys.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cache is a key-value store with TTL.
type Cache interface {
	// Get decodes the value stored under key into dest.
	// Reports false without error on a miss.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// DashboardKey is the cached dashboard counters of an organization.
func DashboardKey(orgID uuid.UUID) string { return fmt.Sprintf("dashboard:%s", orgID) }

// OrderListKey is the cached first page of the order list.
func OrderListKey(orgID uuid.UUID) string { return fmt.Sprintf("orders:%s:list", orgID) }

// KanbanKey is the cached order board.
func KanbanKey(orgID uuid.UUID) string { return fmt.Sprintf("kanban:%s", orgID) }

// OrderKeys returns every key derived from the orders of an organization.
func OrderKeys(orgID uuid.UUID) []string {
	return []string{DashboardKey(orgID), OrderListKey(orgID), KanbanKey(orgID)}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error               { return nil }

var _ Cache = Nop{}
