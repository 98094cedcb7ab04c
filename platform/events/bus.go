package events

import (
	"context"
	"fmt"
	"sync"

	"stageflow_backend/platform/logger"
)

// InMemoryBus is a simple synchronous-subscribe, asynchronous-publish event bus.
// Handlers for the same event run sequentially within one dispatch.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers in a background goroutine.
// Handler errors and panics are logged, never propagated to the publisher.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	go func() {
		if err := b.dispatch(context.WithoutCancel(ctx), event); err != nil {
			b.log.Error("event handler failed", "event", event.EventName(), "error", err)
		}
	}()
}

// PublishSync dispatches the event and waits for all handlers to complete.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	return b.dispatch(ctx, event)
}

func (b *InMemoryBus) dispatch(ctx context.Context, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panic: %v", r)
		}
	}()

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.EventName()]))
	copy(handlers, b.handlers[event.EventName()])
	b.mu.RUnlock()

	for _, h := range handlers {
		if handleErr := h.Handle(ctx, event); handleErr != nil {
			err = handleErr
		}
	}
	return err
}

// Compile-time check that InMemoryBus implements Bus.
var _ Bus = (*InMemoryBus)(nil)
