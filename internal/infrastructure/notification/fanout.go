// Package notification delivers domain notifications to the in-app store and
// the Pub/Sub topic.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/core/id"
	domain "dentallab/internal/domain/notification"
)

// Sink receives fully addressed notifications.
type Sink interface {
	Deliver(ctx context.Context, env domain.Envelope) error
}

// Fanout implements domain.Notifier by handing each envelope to every sink.
// A failing sink does not stop the others.
type Fanout struct {
	sinks []Sink
	now   func() time.Time
}

// NewFanout drops nil sinks.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{now: time.Now}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) NotifyOrg(ctx context.Context, orgID uuid.UUID, n domain.Notification, roles ...string) error {
	return f.deliver(ctx, domain.Envelope{OrgID: orgID, Roles: roles, Notification: n})
}

func (f *Fanout) NotifyUser(ctx context.Context, orgID, userID uuid.UUID, n domain.Notification) error {
	return f.deliver(ctx, domain.Envelope{OrgID: orgID, UserID: &userID, Notification: n})
}

func (f *Fanout) deliver(ctx context.Context, env domain.Envelope) error {
	env.ID = id.New()
	env.CreatedAt = f.now().UTC()

	var errs []error
	for _, s := range f.sinks {
		if err := s.Deliver(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ domain.Notifier = (*Fanout)(nil)
