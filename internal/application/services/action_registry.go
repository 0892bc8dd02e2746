package services

import (
	"context"
	"sort"
	"sync"
)

// ExecutionContext is what an action sees of the run that invoked it
type ExecutionContext struct {
	WorkflowID  string
	ExecutionID string
	TenantID    string
	EntityType  string
	EntityID    string
	UserID      string
	TriggerData map[string]interface{}
}

// ActionHandler is the interface for pluggable workflow action handlers.
type ActionHandler interface {
	// Execute runs the action and returns the result stored on the execution log.
	Execute(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error)

	// Type returns the action type this handler supports.
	Type() string
}

// ActionHandlerRegistry manages registered action handlers.
// New action types are added by registering a handler, without touching the engine.
type ActionHandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

// NewActionHandlerRegistry creates a new empty registry
func NewActionHandlerRegistry() *ActionHandlerRegistry {
	return &ActionHandlerRegistry{
		handlers: make(map[string]ActionHandler),
	}
}

// Register adds an action handler to the registry.
// If a handler for the same type already exists, it will be replaced.
func (r *ActionHandlerRegistry) Register(handler ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handler.Type()] = handler
}

// Get retrieves a handler for the given action type.
// Returns nil if no handler is registered.
func (r *ActionHandlerRegistry) Get(actionType string) ActionHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[actionType]
}

// Has checks if a handler is registered for the given action type.
func (r *ActionHandlerRegistry) Has(actionType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[actionType]
	return ok
}

// Types returns all registered action types, sorted.
func (r *ActionHandlerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// actionFunc adapts a function to ActionHandler
type actionFunc struct {
	actionType string
	run        func(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error)
}

func (a actionFunc) Type() string { return a.actionType }

func (a actionFunc) Execute(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	return a.run(ctx, config, ec)
}
