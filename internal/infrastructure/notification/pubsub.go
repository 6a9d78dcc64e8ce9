package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	domain "dentallab/internal/domain/notification"
	"dentallab/pkg/logger"
)

const publishTimeout = 10 * time.Second

// PubSubConfig selects the project and topic. CredentialsJSON is optional;
// without it application default credentials are used.
type PubSubConfig struct {
	ProjectID       string
	Topic           string
	CredentialsJSON string
}

// Publisher pushes envelopes to a Pub/Sub topic for out-of-process consumers
// (push, e-mail, messengers).
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPublisher connects and makes sure the topic exists.
func NewPublisher(ctx context.Context, cfg PubSubConfig) (*Publisher, error) {
	if cfg.ProjectID == "" || cfg.Topic == "" {
		return nil, errors.New("pubsub project and topic are required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	p, err := NewPublisherWithClient(ctx, client, cfg.Topic)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info(ctx, "pubsub publisher ready", "project_id", cfg.ProjectID, "topic", cfg.Topic)
	return p, nil
}

// NewPublisherWithClient publishes to topicID through client, creating the
// topic when it is missing. Close closes client.
func NewPublisherWithClient(ctx context.Context, client *pubsub.Client, topicID string) (*Publisher, error) {
	t := client.Topic(topicID)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %q: %w", topicID, err)
	}
	if !ok {
		if t, err = client.CreateTopic(ctx, topicID); err != nil {
			return nil, fmt.Errorf("create topic %q: %w", topicID, err)
		}
	}
	return &Publisher{client: client, topic: t}, nil
}

func message(env domain.Envelope) (*pubsub.Message, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":   string(env.Type),
			"org_id": env.OrgID.String(),
		},
	}, nil
}

// Deliver publishes env and waits for the server ack.
func (p *Publisher) Deliver(ctx context.Context, env domain.Envelope) error {
	msg, err := message(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", env.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
