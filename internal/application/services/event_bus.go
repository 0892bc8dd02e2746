package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/domain/events"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
)

// EventHandler is the handler signature from ports
type EventHandler = ports.EventHandler

type subscription struct {
	id      uint64
	handler EventHandler
}

// EventBus is an in-process publish-subscribe bus for CRM events.
// It implements ports.EventPublisher.
type EventBus struct {
	handlers map[events.EventType][]subscription
	nextID   uint64
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// Ensure EventBus implements ports.EventPublisher at compile time
var _ ports.EventPublisher = (*EventBus)(nil)

// NewEventBus creates a new EventBus instance
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[events.EventType][]subscription),
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (eb *EventBus) Subscribe(eventType events.EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.handlers[eventType] = append(eb.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()

		subs := eb.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				eb.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish runs every handler of the event type in subscription order.
// The first handler error stops dispatch.
func (eb *EventBus) Publish(ctx context.Context, event events.TriggerEvent) error {
	eb.mu.RLock()
	subs := eb.handlers[event.Type]
	eb.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler(ctx, event); err != nil {
			return fmt.Errorf("event handler error for %s: %w", event.Type, err)
		}
	}
	return nil
}

// PublishAsync publishes on a background context, detached from the request
func (eb *EventBus) PublishAsync(event events.TriggerEvent) {
	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		if err := eb.Publish(context.Background(), event); err != nil {
			glog.Errorf("Async publish of %s for tenant %s failed: %v", event.Type, event.TenantID, err)
		}
	}()
}

// Wait blocks until every async publish started so far has finished
func (eb *EventBus) Wait() {
	eb.wg.Wait()
}

// WaitContext is Wait bounded by ctx. It returns ctx.Err() when async
// handlers are still running at the deadline.
func (eb *EventBus) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear removes all handlers
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers = make(map[events.EventType][]subscription)
}
