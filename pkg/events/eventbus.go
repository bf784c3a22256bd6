package events

import (
	"context"
	"sync"

	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// InMemoryEventBus is an in-memory implementation of EventBus
type InMemoryEventBus struct {
	handlers map[string][]interfaces.EventHandler
	mu       sync.RWMutex
	logger   interfaces.Logger
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger interfaces.Logger) *InMemoryEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &InMemoryEventBus{
		handlers: make(map[string][]interfaces.EventHandler),
		logger:   logger.Named("eventbus"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Publish delivers an event to its subscribers and the wildcard subscribers.
// Handler errors are logged, never returned.
func (eb *InMemoryEventBus) Publish(ctx context.Context, event interfaces.Event) error {
	eb.mu.RLock()
	handlers := make([]interfaces.EventHandler, 0, len(eb.handlers[event.EventType()])+len(eb.handlers[Wildcard]))
	handlers = append(handlers, eb.handlers[event.EventType()]...)
	handlers = append(handlers, eb.handlers[Wildcard]...)
	eb.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			eb.logger.Error("Event handler failed",
				interfaces.String("event_type", event.EventType()),
				interfaces.String("handler", handler.EventType()),
				interfaces.Error(err))
		}
	}

	return nil
}

// PublishAsync publishes an event asynchronously. The caller's context is
// detached so delivery survives the request that triggered it.
func (eb *InMemoryEventBus) PublishAsync(ctx context.Context, event interfaces.Event) {
	if eb.ctx.Err() != nil {
		eb.logger.Warn("Event dropped, bus stopped",
			interfaces.String("event_type", event.EventType()))
		return
	}

	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		if err := eb.Publish(context.WithoutCancel(ctx), event); err != nil {
			eb.logger.Error("Async event publish failed",
				interfaces.String("event_type", event.EventType()),
				interfaces.Error(err))
		}
	}()
}

// Subscribe registers a handler for a specific event type
func (eb *InMemoryEventBus) Subscribe(eventType string, handler interfaces.EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	eb.logger.Debug("Event handler subscribed",
		interfaces.String("event_type", eventType),
		interfaces.String("handler", handler.EventType()))

	return nil
}

// Unsubscribe removes a handler for a specific event type
func (eb *InMemoryEventBus) Unsubscribe(eventType string, handler interfaces.EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	handlers := eb.handlers[eventType]
	for i, h := range handlers {
		if h == handler {
			eb.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}

	return nil
}

// Start starts the event bus
func (eb *InMemoryEventBus) Start(ctx context.Context) error {
	eb.logger.Info("Event bus started")
	return nil
}

// Drain blocks until every in-flight async publish has completed.
func (eb *InMemoryEventBus) Drain() {
	eb.wg.Wait()
}

// Stop stops accepting async events and waits for in-flight deliveries.
func (eb *InMemoryEventBus) Stop() error {
	eb.cancel()
	eb.wg.Wait()
	eb.logger.Info("Event bus stopped")
	return nil
}
