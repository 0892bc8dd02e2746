package ports

import (
	"context"

	"github.com/nexuscrm/tenantcrm/internal/domain/events"
)

// EventHandler is a function that handles an event
type EventHandler func(ctx context.Context, event events.TriggerEvent) error

// EventPublisher provides event publishing capabilities.
type EventPublisher interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType events.EventType, handler EventHandler) func()

	// Publish dispatches an event to all registered handlers.
	// Returns an error if any handler fails.
	Publish(ctx context.Context, event events.TriggerEvent) error

	// PublishAsync dispatches in the background; failures are only logged.
	PublishAsync(event events.TriggerEvent)
}
