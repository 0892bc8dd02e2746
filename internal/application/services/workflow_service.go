package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexuscrm/tenantcrm/internal/domain/events"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/expression"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// WorkflowService implements workflow management and manual runs
type WorkflowService struct {
	workflows *persistence.WorkflowRepository
	tx        *persistence.TransactionManager
	engine    *WorkflowEngine
	exprs     *expression.Engine
	limits    ports.LimitChecker
	auditor   ports.Auditor
}

func NewWorkflowService(workflows *persistence.WorkflowRepository, tx *persistence.TransactionManager, engine *WorkflowEngine,
	exprs *expression.Engine, limits ports.LimitChecker, auditor ports.Auditor) *WorkflowService {
	return &WorkflowService{
		workflows: workflows,
		tx:        tx,
		engine:    engine,
		exprs:     exprs,
		limits:    limits,
		auditor:   auditor,
	}
}

// ActionInput is one action of a workflow payload
type ActionInput struct {
	Name         string                 `json:"name"`
	Type         string                 `json:"type"`
	Config       map[string]interface{} `json:"config"`
	Order        int                    `json:"order"`
	DelayMinutes int                    `json:"delayMinutes"`
}

// WorkflowInput is the create and update payload. Nil fields are left unchanged on update.
type WorkflowInput struct {
	Name          *string                `json:"name"`
	Description   *string                `json:"description"`
	TriggerType   *string                `json:"triggerType"`
	TriggerConfig map[string]interface{} `json:"triggerConfig"`
	Conditions    map[string]interface{} `json:"conditions"`
	Actions       *[]ActionInput         `json:"actions"`
}

// ToggleResult is the response of the toggle endpoint
type ToggleResult struct {
	Workflow *models.Workflow `json:"workflow"`
	Message  string           `json:"message"`
}

// TestInput is the payload of a manual run
type TestInput struct {
	EntityID   string                 `json:"entityId"`
	EntityType string                 `json:"entityType"`
	Data       map[string]interface{} `json:"data"`
}

// validateDefinition checks trigger type, schedule and condition expression
func (s *WorkflowService) validateDefinition(triggerType string, triggerConfig, conditions map[string]interface{}) error {
	if !constants.Contains(constants.TriggerTypes, triggerType) {
		return errors.BadRequest("Invalid trigger type")
	}
	if constants.IsScheduledTrigger(triggerType) {
		schedule := strings.TrimSpace(GetConfigString(triggerConfig, "schedule"))
		if schedule == "" {
			return errors.BadRequest("A cron schedule is required for %s workflows", triggerType)
		}
		if _, err := cronParser.Parse(schedule); err != nil {
			return errors.BadRequest("Invalid cron schedule: %v", err)
		}
	}
	if expr := GetConfigString(conditions, "expression"); expr != "" {
		if err := s.exprs.Validate(expr); err != nil {
			return errors.BadRequest("Invalid condition expression: %v", err)
		}
	}
	return nil
}

func buildActions(workflowID string, in []ActionInput) ([]models.WorkflowAction, error) {
	actions := make([]models.WorkflowAction, 0, len(in))
	for i, a := range in {
		if strings.TrimSpace(a.Type) == "" {
			return nil, errors.BadRequest("Action %d needs a type", i+1)
		}
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = a.Type
		}
		order := a.Order
		if order == 0 {
			order = i + 1
		}
		config := a.Config
		if config == nil {
			config = map[string]interface{}{}
		}
		actions = append(actions, models.WorkflowAction{
			ID:           utils.GenerateID(),
			WorkflowID:   workflowID,
			Name:         name,
			Type:         a.Type,
			Config:       config,
			Order:        order,
			DelayMinutes: a.DelayMinutes,
		})
	}
	return actions, nil
}

// List returns the tenant's workflows with run stats, optionally filtered
func (s *WorkflowService) List(ctx context.Context, user *auth.UserSession, status, triggerType string) ([]models.Workflow, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	all, err := s.workflows.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	if status == "" && triggerType == "" {
		return all, nil
	}
	out := make([]models.Workflow, 0, len(all))
	for _, w := range all {
		if (status == "" || w.Status == status) && (triggerType == "" || w.TriggerType == triggerType) {
			out = append(out, w)
		}
	}
	return out, nil
}

// Create stores a new DRAFT, inactive workflow with its actions
func (s *WorkflowService) Create(ctx context.Context, user *auth.UserSession, in WorkflowInput) (*models.Workflow, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if err := requireRole(user, constants.WorkflowManagerRoles, "Insufficient permissions to create workflows"); err != nil {
		return nil, err
	}
	if err := s.limits.EnsureWithinLimit(ctx, tenantID, constants.LimitAutomations, 1); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(derefString(in.Name))
	if name == "" {
		return nil, errors.BadRequest("Workflow name is required")
	}
	triggerType := derefString(in.TriggerType)
	if err := s.validateDefinition(triggerType, in.TriggerConfig, in.Conditions); err != nil {
		return nil, err
	}

	w := &models.Workflow{
		ID:            utils.GenerateID(),
		TenantID:      tenantID,
		Name:          name,
		Description:   emptyToNil(in.Description),
		TriggerType:   triggerType,
		TriggerConfig: in.TriggerConfig,
		Conditions:    in.Conditions,
		Status:        constants.WorkflowStatusDraft,
		CreatedBy:     &user.ID,
	}
	if w.TriggerConfig == nil {
		w.TriggerConfig = map[string]interface{}{}
	}
	if w.Conditions == nil {
		w.Conditions = map[string]interface{}{}
	}
	if in.Actions != nil {
		if w.Actions, err = buildActions(w.ID, *in.Actions); err != nil {
			return nil, err
		}
	}

	if err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return s.workflows.Create(ctx, w)
	}); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditCreate, constants.ResourceWorkflow, w.ID,
		map[string]interface{}{"name": w.Name, "triggerType": w.TriggerType}, nil))
	return s.Get(ctx, user, w.ID)
}

// Get returns one workflow with its actions
func (s *WorkflowService) Get(ctx context.Context, user *auth.UserSession, id string) (*models.Workflow, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	w, err := s.workflows.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	if w == nil {
		return nil, errors.NewNotFoundError("Workflow", id)
	}
	return w, nil
}

// Update changes the definition and, when given, replaces the actions
func (s *WorkflowService) Update(ctx context.Context, user *auth.UserSession, id string, in WorkflowInput) (*models.Workflow, error) {
	if err := requireRole(user, constants.WorkflowManagerRoles, "Insufficient permissions to update workflows"); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	triggerType := existing.TriggerType
	if in.TriggerType != nil {
		triggerType = *in.TriggerType
	}
	triggerConfig := existing.TriggerConfig
	if in.TriggerConfig != nil {
		triggerConfig = in.TriggerConfig
	}
	conditions := existing.Conditions
	if in.Conditions != nil {
		conditions = in.Conditions
	}
	if err := s.validateDefinition(triggerType, triggerConfig, conditions); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errors.BadRequest("Workflow name is required")
		}
		fields["name"] = name
	}
	if in.Description != nil {
		fields["description"] = emptyToNil(in.Description)
	}
	if in.TriggerType != nil {
		fields["trigger_type"] = triggerType
	}
	if in.TriggerConfig != nil {
		fields["trigger_config"] = persistence.JSON(triggerConfig)
	}
	if in.Conditions != nil {
		fields["conditions"] = persistence.JSON(conditions)
	}
	if existing.IsActive && (in.TriggerType != nil || in.TriggerConfig != nil) {
		fields["next_run_at"] = nil
		if constants.IsScheduledTrigger(triggerType) {
			next, _ := calculateNextRun(GetConfigString(triggerConfig, "schedule"), GetConfigString(triggerConfig, "timezone"), time.Now())
			fields["next_run_at"] = next
		}
	}

	var actions []models.WorkflowAction
	if in.Actions != nil {
		if actions, err = buildActions(id, *in.Actions); err != nil {
			return nil, err
		}
	}

	if err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.workflows.Update(ctx, existing.TenantID, id, fields); err != nil {
			return err
		}
		if in.Actions != nil {
			return s.workflows.ReplaceActions(ctx, id, actions)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditUpdate, constants.ResourceWorkflow, id, nil,
		map[string]interface{}{"fields": len(fields), "actionsReplaced": in.Actions != nil}))
	return s.Get(ctx, user, id)
}

// ReplaceActions swaps the action list of a workflow
func (s *WorkflowService) ReplaceActions(ctx context.Context, user *auth.UserSession, id string, in []ActionInput) (*models.Workflow, error) {
	return s.Update(ctx, user, id, WorkflowInput{Actions: &in})
}

// Delete removes a workflow with its actions and history
func (s *WorkflowService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	if err := requireRole(user, constants.WorkflowManagerRoles, "Insufficient permissions to delete workflows"); err != nil {
		return err
	}
	w, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return s.workflows.Delete(ctx, w.TenantID, id)
	}); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditDelete, constants.ResourceWorkflow, id,
		nil, map[string]interface{}{"workflowName": w.Name}))
	return nil
}

// Toggle activates a paused or draft workflow, or pauses an active one
func (s *WorkflowService) Toggle(ctx context.Context, user *auth.UserSession, id string) (*ToggleResult, error) {
	if err := requireRole(user, constants.WorkflowManagerRoles, "Insufficient permissions to toggle workflows"); err != nil {
		return nil, err
	}
	w, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}

	active := !w.IsActive
	status := constants.WorkflowStatusPaused
	message := "Workflow paused"
	var next *time.Time
	if active {
		status = constants.WorkflowStatusActive
		message = "Workflow activated"
		if constants.IsScheduledTrigger(w.TriggerType) {
			t, err := calculateNextRun(w.Schedule(), GetConfigString(w.TriggerConfig, "timezone"), time.Now())
			if err != nil {
				return nil, errors.BadRequest("Invalid cron schedule: %v", err)
			}
			next = &t
		}
	}
	if err := s.workflows.SetActive(ctx, w.TenantID, id, active, status, next); err != nil {
		return nil, fmt.Errorf("failed to toggle workflow: %w", err)
	}

	s.auditor.Record(ctx, auditEntry(user, constants.AuditWorkflowToggled, constants.ResourceWorkflow, id, nil,
		map[string]interface{}{
			"workflowName":   w.Name,
			"previousStatus": w.Status,
			"newStatus":      status,
		}))
	updated, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return &ToggleResult{Workflow: updated, Message: message}, nil
}

// Executions returns run history scoped through the workflow's tenant
func (s *WorkflowService) Executions(ctx context.Context, user *auth.UserSession, workflowID, status string, page utils.Pagination) ([]models.WorkflowExecution, utils.Pagination, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, page, err
	}
	execs, total, err := s.workflows.ListExecutions(ctx, persistence.ExecutionFilter{
		TenantID:   tenantID,
		WorkflowID: workflowID,
		Status:     allFilter(status),
		Page:       page.Page,
		Limit:      page.Limit,
	})
	if err != nil {
		return nil, page, fmt.Errorf("failed to list executions: %w", err)
	}
	return execs, page.WithTotal(total), nil
}

// Test runs the workflow once regardless of its active state
func (s *WorkflowService) Test(ctx context.Context, user *auth.UserSession, id string, in TestInput) (*models.WorkflowExecution, error) {
	if err := requireRole(user, constants.WorkflowManagerRoles, "Insufficient permissions to test workflows"); err != nil {
		return nil, err
	}
	w, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	entityType := in.EntityType
	if entityType == "" {
		entityType = constants.EntityContact
	}
	ev := events.NewTriggerEvent(events.EventType(constants.TriggerAPICall), w.TenantID, entityType, in.EntityID, in.Data)
	ev.UserID = user.ID

	exec, err := s.engine.Execute(ctx, w, ev)
	if exec == nil && err != nil {
		return nil, err
	}
	// a failed run is reported through the execution itself
	return exec, nil
}
