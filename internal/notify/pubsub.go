package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher pushes events to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPubSub wraps an existing Pub/Sub client.
func NewPubSub(client *pubsub.Client) (*PubSubPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish marshals the payload to JSON and publishes it to the topic.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	result := p.client.Topic(topic).Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}
