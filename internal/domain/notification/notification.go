// Package notification defines the trigger contract for in-app and pushed notifications.
// Delivery is fire-and-forget: callers never fail an order operation because a
// notification could not be sent.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dentallab/pkg/logger"
)

// Type classifies a notification.
type Type string

const (
	TypeOrderCreated       Type = "ORDER_CREATED"
	TypeOrderStatusChanged Type = "ORDER_STATUS_CHANGED"
	TypeOrderReady         Type = "ORDER_READY"
	TypeStageAssigned      Type = "STAGE_ASSIGNED"
	TypeStageStarted       Type = "STAGE_STARTED"
	TypeLowStock           Type = "LOW_STOCK"
)

// Notification is one message to a user or a set of roles.
type Notification struct {
	Type    Type           `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Envelope is a notification with its audience, as stored or published.
type Envelope struct {
	ID        uuid.UUID  `json:"id"`
	OrgID     uuid.UUID  `json:"orgId"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	Roles     []string   `json:"roles,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	Notification
}

// Notifier delivers notifications.
type Notifier interface {
	// NotifyOrg broadcasts to every user of the organization holding one of roles.
	// No roles means everyone.
	NotifyOrg(ctx context.Context, orgID uuid.UUID, n Notification, roles ...string) error

	// NotifyUser sends to a single user.
	NotifyUser(ctx context.Context, orgID, userID uuid.UUID, n Notification) error
}

// Quiet wraps a Notifier and logs failures instead of returning them.
type Quiet struct {
	next Notifier
}

// NewQuiet wraps n. A nil n drops every notification.
func NewQuiet(n Notifier) *Quiet {
	return &Quiet{next: n}
}

// Org broadcasts n, logging any failure.
func (q *Quiet) Org(ctx context.Context, orgID uuid.UUID, n Notification, roles ...string) {
	if q == nil || q.next == nil {
		return
	}
	if err := q.next.NotifyOrg(ctx, orgID, n, roles...); err != nil {
		logger.Warn(ctx, "notification dropped", "type", n.Type, "org_id", orgID, "error", err)
	}
}

// User sends n to one user, logging any failure.
func (q *Quiet) User(ctx context.Context, orgID, userID uuid.UUID, n Notification) {
	if q == nil || q.next == nil {
		return
	}
	if err := q.next.NotifyUser(ctx, orgID, userID, n); err != nil {
		logger.Warn(ctx, "notification dropped", "type", n.Type, "user_id", userID, "error", err)
	}
}
