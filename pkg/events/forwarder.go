package events

import (
	"context"

	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// Forwarder relays bus events to an external publisher such as NATS or Kafka.
type Forwarder struct {
	publisher interfaces.EventPublisher
	logger    interfaces.Logger
}

// NewForwarder creates a handler that republishes every event it receives.
func NewForwarder(publisher interfaces.EventPublisher, logger interfaces.Logger) *Forwarder {
	return &Forwarder{publisher: publisher, logger: logger}
}

// Handle publishes the event. Failures are logged and swallowed; publishing
// never fails the caller.
func (f *Forwarder) Handle(ctx context.Context, event interfaces.Event) error {
	if err := f.publisher.Publish(ctx, event); err != nil {
		f.logger.Warn("Failed to forward event",
			interfaces.String("event_type", event.EventType()),
			interfaces.String("aggregate_id", event.AggregateID()),
			interfaces.Error(err))
	}
	return nil
}

// EventType reports the wildcard subscription.
func (f *Forwarder) EventType() string {
	return Wildcard
}
