package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "dentallab/internal/domain/notification"
)

type sinkFunc func(context.Context, domain.Envelope) error

func (f sinkFunc) Deliver(ctx context.Context, env domain.Envelope) error { return f(ctx, env) }

func TestFanout_DeliversToEverySink(t *testing.T) {
	var got []domain.Envelope
	ok := sinkFunc(func(_ context.Context, env domain.Envelope) error {
		got = append(got, env)
		return nil
	})
	broken := sinkFunc(func(context.Context, domain.Envelope) error { return errors.New("down") })

	f := NewFanout(broken, nil, ok)
	org, user := uuid.New(), uuid.New()
	n := domain.Notification{Type: domain.TypeOrderReady, Title: "Order ready"}

	err := f.NotifyOrg(context.Background(), org, n, "OWNER", "ADMIN")
	require.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, org, got[0].OrgID)
	assert.Equal(t, []string{"OWNER", "ADMIN"}, got[0].Roles)
	assert.NotEqual(t, uuid.Nil, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	f = NewFanout(ok)
	require.NoError(t, f.NotifyUser(context.Background(), org, user, n))
	require.Len(t, got, 2)
	assert.Equal(t, &user, got[1].UserID)
	assert.Nil(t, got[1].Roles)
}

func TestMessage(t *testing.T) {
	org := uuid.New()
	msg, err := message(domain.Envelope{OrgID: org, Notification: domain.Notification{Type: domain.TypeLowStock}})
	require.NoError(t, err)
	assert.Equal(t, "LOW_STOCK", msg.Attributes["type"])
	assert.Equal(t, org.String(), msg.Attributes["org_id"])
	assert.Contains(t, string(msg.Data), `"type":"LOW_STOCK"`)
}

func TestStore_InsertQuery(t *testing.T) {
	s := NewStore(nil)
	q, err := s.insertQuery(domain.Envelope{
		ID:           uuid.New(),
		OrgID:        uuid.New(),
		Notification: domain.Notification{Type: domain.TypeStageAssigned, Payload: map[string]any{"stage": "CAD"}},
	})
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO notifications (id,organization_id,user_id,roles,type,title,message,payload,created_at) "+
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)",
		sql)
	assert.Equal(t, []string{}, args[3])
	assert.JSONEq(t, `{"stage":"CAD"}`, string(args[7].([]byte)))
}
