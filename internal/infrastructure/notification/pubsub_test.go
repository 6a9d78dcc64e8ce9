package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	domain "dentallab/internal/domain/notification"
)

func testEnvelope() domain.Envelope {
	user := uuid.New()
	return domain.Envelope{
		ID:        uuid.New(),
		OrgID:     uuid.New(),
		UserID:    &user,
		CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Notification: domain.Notification{
			Type:  domain.TypeOrderReady,
			Title: "Order 000042 is ready",
		},
	}
}

func TestMessage_CarriesTypeAndOrgAttributes(t *testing.T) {
	env := testEnvelope()

	msg, err := message(env)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"type":   "ORDER_READY",
		"org_id": env.OrgID.String(),
	}, msg.Attributes)

	var got domain.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, env.OrgID, got.OrgID)
	require.NotNil(t, got.UserID)
	assert.Equal(t, *env.UserID, *got.UserID)
	assert.Equal(t, env.Type, got.Type)
	assert.Equal(t, env.Title, got.Title)
	assert.True(t, env.CreatedAt.Equal(got.CreatedAt))
}

func newTestClient(t *testing.T, srv *pstest.Server) *pubsub.Client {
	t.Helper()
	client, err := pubsub.NewClient(context.Background(), "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	return client
}

func TestPublisher_DeliverPublishesToTopic(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	p, err := NewPublisherWithClient(ctx, newTestClient(t, srv), "lab-events")
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	env := testEnvelope()
	require.NoError(t, p.Deliver(ctx, env))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ORDER_READY", msgs[0].Attributes["type"])
	assert.Equal(t, env.OrgID.String(), msgs[0].Attributes["org_id"])

	var got domain.Envelope
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, env.ID, got.ID)
}

func TestPublisher_ReusesExistingTopic(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.CreateTopic(ctx, "lab-events")
	require.NoError(t, err)

	p, err := NewPublisherWithClient(ctx, client, "lab-events")
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	require.NoError(t, p.Deliver(ctx, testEnvelope()))
	assert.Len(t, srv.Messages(), 1)
}

func TestNewPublisher_RequiresProjectAndTopic(t *testing.T) {
	_, err := NewPublisher(context.Background(), PubSubConfig{Topic: "lab-events"})
	assert.Error(t, err)

	_, err = NewPublisher(context.Background(), PubSubConfig{ProjectID: "lab"})
	assert.Error(t, err)
}
