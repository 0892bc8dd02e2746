// Package services holds the CRM business logic.
//
// Every service method takes the caller's *auth.UserSession and scopes its
// repository calls to the session tenant. Plan limits are checked through
// PlanService before records are created, and domain events are published on
// the EventBus where the WorkflowEngine picks them up.
//
// ServiceManager wires the services together for the HTTP layer, the CLI and
// the scheduler.
package services
