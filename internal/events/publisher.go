package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing tracker events to JetStream.
// A nil Publisher is valid and drops all events, so callers never need to
// branch on whether NATS is configured.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher. Pass nil when NATS is not configured.
func NewPublisher(c *Client) *Publisher {
	if c == nil {
		return nil
	}
	return &Publisher{js: c.js}
}

// PublishQueryAnswered publishes a query audit event.
func (p *Publisher) PublishQueryAnswered(ctx context.Context, event QueryAnswered) error {
	return p.publish(ctx, SubjectQueryAnswered, event)
}

// PublishIndexCompleted publishes an indexer batch summary.
func (p *Publisher) PublishIndexCompleted(ctx context.Context, event IndexCompleted) error {
	return p.publish(ctx, SubjectIndexCompleted, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
