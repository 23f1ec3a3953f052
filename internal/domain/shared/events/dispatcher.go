package events

import (
	"fmt"
	"slices"
	"sync"

	"github.com/orris-inc/storefront/internal/shared/logger"
)

// InMemoryEventDispatcher delivers events synchronously on the publishing
// goroutine, in subscription order. Publish order is delivery order.
// A failing handler is logged and does not stop delivery to the rest.
type InMemoryEventDispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	logger   logger.Interface
}

func NewInMemoryEventDispatcher(log logger.Interface) *InMemoryEventDispatcher {
	return &InMemoryEventDispatcher{
		handlers: make(map[string][]EventHandler),
		logger:   log,
	}
}

func (d *InMemoryEventDispatcher) Publish(event DomainEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	d.mu.RLock()
	targets := make([]EventHandler, 0, len(d.handlers[event.GetEventType()])+len(d.handlers[AllEvents]))
	targets = append(targets, d.handlers[event.GetEventType()]...)
	targets = append(targets, d.handlers[AllEvents]...)
	d.mu.RUnlock()

	for _, h := range targets {
		if !h.CanHandle(event.GetEventType()) {
			continue
		}
		if err := d.handle(h, event); err != nil {
			d.logger.Errorw("event handler failed",
				"event_type", event.GetEventType(),
				"aggregate_id", event.GetAggregateID(),
				"error", err,
			)
		}
	}
	return nil
}

func (d *InMemoryEventDispatcher) handle(h EventHandler, event DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(event)
}

func (d *InMemoryEventDispatcher) PublishAll(events []DomainEvent) error {
	for _, event := range events {
		if err := d.Publish(event); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
	}
	return nil
}

func (d *InMemoryEventDispatcher) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
	return nil
}

func (d *InMemoryEventDispatcher) Unsubscribe(eventType string, handler EventHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	remaining := slices.DeleteFunc(slices.Clone(d.handlers[eventType]), func(h EventHandler) bool {
		return h == handler
	})
	if len(remaining) == 0 {
		delete(d.handlers, eventType)
	} else {
		d.handlers[eventType] = remaining
	}
	return nil
}
