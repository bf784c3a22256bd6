package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/narwhalmedia/catalog/internal/infrastructure/events"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

const publishTimeout = 5 * time.Second

// Publisher implements the EventPublisher interface using NATS JetStream
type Publisher struct {
	js     jetstream.JetStream
	closer func()
	logger interfaces.Logger
}

// NewPublisher creates a new NATS event publisher. cleanup runs on Close.
func NewPublisher(client *Client, cleanup func(), logger interfaces.Logger) *Publisher {
	return &Publisher{
		js:     client.JetStream(),
		closer: cleanup,
		logger: logger.Named("nats-publisher"),
	}
}

// Publish writes an event to its subject in the catalog stream.
func (p *Publisher) Publish(ctx context.Context, event interfaces.Event) error {
	envelope, err := events.NewEnvelope(event)
	if err != nil {
		return err
	}
	data, err := envelope.Encode()
	if err != nil {
		return err
	}
	subject := events.Subject(event.EventType())

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ack, err := p.js.Publish(pubCtx, subject, data, jetstream.WithMsgID(envelope.ID.String()))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		interfaces.String("event_type", event.EventType()),
		interfaces.String("subject", subject),
		interfaces.Any("sequence", ack.Sequence))
	return nil
}

// Close drains the underlying connection.
func (p *Publisher) Close() error {
	if p.closer != nil {
		p.closer()
	}
	return nil
}
