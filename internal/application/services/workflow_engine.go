package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"

	"github.com/nexuscrm/tenantcrm/internal/domain"
	"github.com/nexuscrm/tenantcrm/internal/domain/events"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/internal/metrics"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/expression"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// WorkflowEngine connects workflows to events on the bus and runs their actions
type WorkflowEngine struct {
	workflows *persistence.WorkflowRepository
	registry  *ActionHandlerRegistry
	actions   *ActionService
	bus       ports.EventPublisher
	exprs     *expression.Engine
	states    *domain.ExecutionStateMachine
	metrics   *metrics.Metrics
}

func NewWorkflowEngine(workflows *persistence.WorkflowRepository, registry *ActionHandlerRegistry, actions *ActionService,
	bus ports.EventPublisher, exprs *expression.Engine, m *metrics.Metrics) *WorkflowEngine {
	return &WorkflowEngine{
		workflows: workflows,
		registry:  registry,
		actions:   actions,
		bus:       bus,
		exprs:     exprs,
		states:    domain.NewExecutionStateMachine(),
		metrics:   m,
	}
}

// RegisterHandlers subscribes the engine to every event-driven trigger type
func (we *WorkflowEngine) RegisterHandlers() {
	n := 0
	for _, trigger := range constants.TriggerTypes {
		if constants.IsScheduledTrigger(trigger) {
			continue
		}
		we.bus.Subscribe(events.EventType(trigger), we.HandleEvent)
		n++
	}
	glog.Infof("Workflow engine: registered handlers for %d trigger types", n)
}

// HandleEvent runs every active workflow of the event's tenant and trigger
// whose conditions match. Failures of individual workflows are collected.
func (we *WorkflowEngine) HandleEvent(ctx context.Context, ev events.TriggerEvent) error {
	workflows, err := we.workflows.ListActiveByTrigger(ctx, ev.TenantID, ev.Type.String())
	if err != nil {
		return fmt.Errorf("failed to load workflows for %s: %w", ev.Type, err)
	}
	glog.V(1).Infof("Workflow engine: %d active workflows for %s in tenant %s", len(workflows), ev.Type, ev.TenantID)

	var result *multierror.Error
	for i := range workflows {
		w := &workflows[i]
		if w.Status != constants.WorkflowStatusActive {
			continue
		}
		if !we.ConditionsMatch(w.Conditions, ev) {
			glog.V(1).Infof("Workflow %s: conditions not met", w.ID)
			continue
		}
		if _, err := we.Execute(ctx, w, ev); err != nil {
			result = multierror.Append(result, fmt.Errorf("workflow %s: %w", w.ID, err))
		}
	}
	return result.ErrorOrNil()
}

// ConditionsMatch evaluates the structured keys and the optional expression
func (we *WorkflowEngine) ConditionsMatch(conditions map[string]interface{}, ev events.TriggerEvent) bool {
	if len(conditions) == 0 {
		return true
	}
	data := ev.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	switch ev.Type.String() {
	case constants.TriggerFormSubmitted:
		if ids, ok := GetConfigStrings(conditions, "formIds"); ok && !containsString(ids, utils.ToString(data["formId"])) {
			return false
		}
	case constants.TriggerWhatsAppMessageReceived:
		if phones, ok := GetConfigStrings(conditions, "phoneNumbers"); ok && !containsString(phones, utils.ToString(data["phoneNumber"])) {
			return false
		}
		if keywords, ok := GetConfigStrings(conditions, "messageKeywords"); ok {
			text := strings.ToLower(utils.ToString(data["messageText"]))
			found := false
			for _, k := range keywords {
				if strings.Contains(text, strings.ToLower(k)) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	case constants.TriggerEmailOpened:
		if ids, ok := GetConfigStrings(conditions, "campaignIds"); ok && !containsString(ids, utils.ToString(data["campaignId"])) {
			return false
		}
	}

	if source := GetConfigString(conditions, "source"); source != "" && utils.ToString(data["source"]) != source {
		return false
	}
	if required, ok := GetConfigStrings(conditions, "requiredTags"); ok {
		tags, _ := GetConfigStrings(data, "tags")
		for _, tag := range required {
			if !containsString(tags, tag) {
				return false
			}
		}
	}

	if expr := GetConfigString(conditions, "expression"); expr != "" {
		ok, err := we.exprs.EvaluateBool(expr, expressionEnv(ev))
		if err != nil {
			glog.Warningf("Workflow condition %q failed: %v", expr, err)
			return false
		}
		return ok
	}
	return true
}

// expressionEnv exposes event data at the top level plus the event envelope
func expressionEnv(ev events.TriggerEvent) map[string]interface{} {
	env := make(map[string]interface{}, len(ev.Data)+4)
	for k, v := range ev.Data {
		env[k] = v
	}
	env["trigger"] = ev.Type.String()
	env["entityType"] = ev.EntityType
	env["entityId"] = ev.EntityID
	env["tenantId"] = ev.TenantID
	return env
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Execute runs w once for ev, recording the execution and one log per action
func (we *WorkflowEngine) Execute(ctx context.Context, w *models.Workflow, ev events.TriggerEvent) (*models.WorkflowExecution, error) {
	if w.Actions == nil {
		actions, err := we.workflows.GetActions(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load actions: %w", err)
		}
		w.Actions = actions
	}

	exec := &models.WorkflowExecution{
		ID:          utils.GenerateID(),
		WorkflowID:  w.ID,
		Status:      constants.ExecutionRunning,
		TriggerType: ev.Type.String(),
		EntityType:  stringPtr(ev.EntityType),
		EntityID:    stringPtr(ev.EntityID),
		TriggerData: ev.Data,
		StartedAt:   time.Now().UTC(),
	}
	if err := we.workflows.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}
	glog.Infof("Workflow %s (%s): execution %s started for %s %s", w.Name, w.ID, exec.ID, ev.EntityType, ev.EntityID)

	ec := &ExecutionContext{
		WorkflowID:  w.ID,
		ExecutionID: exec.ID,
		TenantID:    w.TenantID,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		UserID:      ev.UserID,
		TriggerData: ev.Data,
	}

	var runErr error
	for i := range w.Actions {
		if runErr = we.runAction(ctx, &w.Actions[i], ec); runErr != nil {
			break
		}
	}

	transition := domain.TransitionComplete
	var errMsg *string
	if runErr != nil {
		transition = domain.TransitionFail
		msg := runErr.Error()
		errMsg = &msg
	}
	next, err := we.states.Transition(domain.ExecutionState(exec.Status), transition)
	if err != nil {
		return exec, err
	}
	now := time.Now().UTC()
	exec.Status = string(next)
	exec.Error = errMsg
	exec.CompletedAt = &now
	if err := we.workflows.FinishExecution(ctx, exec.ID, exec.Status, errMsg, now); err != nil {
		glog.Errorf("Workflow %s: failed to finish execution %s: %v", w.ID, exec.ID, err)
	}
	if we.metrics != nil {
		we.metrics.WorkflowExecutions.WithLabelValues(exec.TriggerType, exec.Status).Inc()
	}

	if runErr != nil {
		glog.Warningf("Workflow %s: execution %s failed: %v", w.ID, exec.ID, runErr)
		return exec, runErr
	}
	glog.Infof("Workflow %s: execution %s completed", w.ID, exec.ID)
	return exec, nil
}

// runAction executes one action under its own log row
func (we *WorkflowEngine) runAction(ctx context.Context, action *models.WorkflowAction, ec *ExecutionContext) error {
	entry := &models.WorkflowExecutionLog{
		ID:           utils.GenerateID(),
		ExecutionID:  ec.ExecutionID,
		ActionID:     stringPtr(action.ID),
		ActionName:   action.Name,
		ActionType:   action.Type,
		ActionConfig: action.Config,
		Status:       constants.ExecutionRunning,
		StartedAt:    time.Now().UTC(),
	}
	if err := we.workflows.CreateLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to create action log: %w", err)
	}

	result, err := we.invoke(ctx, action, ec)

	transition := domain.TransitionComplete
	var errMsg *string
	if err != nil {
		transition = domain.TransitionFail
		msg := err.Error()
		errMsg = &msg
	}
	status, terr := we.states.Transition(domain.ExecutionStateRunning, transition)
	if terr != nil {
		return terr
	}
	if ferr := we.workflows.FinishLog(ctx, entry.ID, string(status), result, errMsg, time.Now().UTC()); ferr != nil {
		glog.Errorf("Workflow %s: failed to finish action log %s: %v", ec.WorkflowID, entry.ID, ferr)
	}
	if err != nil {
		return fmt.Errorf("action %s (%s) failed: %w", action.Name, action.Type, err)
	}
	return nil
}

func (we *WorkflowEngine) invoke(ctx context.Context, action *models.WorkflowAction, ec *ExecutionContext) (map[string]interface{}, error) {
	if action.DelayMinutes > 0 {
		if err := we.actions.Sleep(ctx, time.Duration(action.DelayMinutes)*time.Minute); err != nil {
			return nil, err
		}
	}
	handler := we.registry.Get(action.Type)
	if handler == nil {
		glog.Warningf("Workflow %s: unknown action type %s skipped", ec.WorkflowID, action.Type)
		return map[string]interface{}{"status": "skipped", "reason": "Unknown action type"}, nil
	}
	config := action.Config
	if config == nil {
		config = map[string]interface{}{}
	}
	return handler.Execute(ctx, config, ec)
}
