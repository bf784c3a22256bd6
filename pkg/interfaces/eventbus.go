package interfaces

import (
	"context"
)

// Event represents a catalog event.
type Event interface {
	// EventType returns the type of the event
	EventType() string

	// Timestamp returns when the event occurred
	Timestamp() int64

	// AggregateID returns the ID of the aggregate that produced the event
	AggregateID() string
}

// EventHandler handles events of a specific type.
type EventHandler interface {
	// Handle processes an event
	Handle(ctx context.Context, event Event) error

	// EventType returns the type of events this handler processes
	EventType() string
}

// EventPublisher delivers events to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// EventBus provides pub/sub functionality for catalog events.
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishAsync publishes an event without waiting for handlers
	PublishAsync(ctx context.Context, event Event)

	// Subscribe registers a handler for an event type, "*" receives every event
	Subscribe(eventType string, handler EventHandler) error

	// Unsubscribe removes a handler for a specific event type
	Unsubscribe(eventType string, handler EventHandler) error

	Start(ctx context.Context) error
	Stop() error
}
