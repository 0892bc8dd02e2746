package events

import (
	"time"
)

// EventType identifies a CRM domain event. Values match workflow trigger types
// so subscribers can route events to workflows directly.
type EventType string

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// TriggerEvent is the payload published for every CRM event
type TriggerEvent struct {
	Type       EventType              `json:"type"`
	TenantID   string                 `json:"tenantId"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	UserID     string                 `json:"userId,omitempty"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// NewTriggerEvent stamps a TriggerEvent with the current time
func NewTriggerEvent(t EventType, tenantID, entityType, entityID string, data map[string]interface{}) TriggerEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return TriggerEvent{
		Type:       t,
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
