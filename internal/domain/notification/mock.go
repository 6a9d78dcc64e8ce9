package notification

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Recorder is an in-memory Notifier for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Envelope
	// Err, when set, is returned from every call after recording.
	Err error
}

func (r *Recorder) NotifyOrg(_ context.Context, orgID uuid.UUID, n Notification, roles ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Envelope{OrgID: orgID, Roles: roles, Notification: n})
	return r.Err
}

func (r *Recorder) NotifyUser(_ context.Context, orgID, userID uuid.UUID, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	uid := userID
	r.sent = append(r.sent, Envelope{OrgID: orgID, UserID: &uid, Notification: n})
	return r.Err
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.sent...)
}

// OfType returns the recorded notifications of type t.
func (r *Recorder) OfType(t Type) []Envelope {
	var out []Envelope
	for _, e := range r.Sent() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var _ Notifier = (*Recorder)(nil)
