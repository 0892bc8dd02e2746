package models

import (
	"time"
)

// Workflow is an automation triggered by CRM events or a schedule
type Workflow struct {
	ID            string                 `json:"id"`
	TenantID      string                 `json:"tenantId"`
	Name          string                 `json:"name"`
	Description   *string                `json:"description"`
	TriggerType   string                 `json:"triggerType"`
	TriggerConfig map[string]interface{} `json:"triggerConfig"`
	Conditions    map[string]interface{} `json:"conditions"`
	IsActive      bool                   `json:"isActive"`
	Status        string                 `json:"status"`
	NextRunAt     *time.Time             `json:"nextRunAt,omitempty"`
	LastRunAt     *time.Time             `json:"lastRunAt,omitempty"`
	IsRunning     bool                   `json:"-"`
	CreatedBy     *string                `json:"createdBy"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`

	Actions []WorkflowAction `json:"actions"`
	Stats   *WorkflowStats   `json:"stats,omitempty"`
}

// Schedule returns the cron expression from the trigger config
func (w *Workflow) Schedule() string {
	if w.TriggerConfig == nil {
		return ""
	}
	s, _ := w.TriggerConfig["schedule"].(string)
	return s
}

// WorkflowAction is one ordered step of a workflow
type WorkflowAction struct {
	ID           string                 `json:"id"`
	WorkflowID   string                 `json:"workflowId"`
	Name         string                 `json:"name"`
	Type         string                 `json:"type"`
	Config       map[string]interface{} `json:"config"`
	Order        int                    `json:"order"`
	DelayMinutes int                    `json:"delayMinutes"`
}

// WorkflowStats summarises past runs
type WorkflowStats struct {
	TotalRuns      int64      `json:"totalRuns"`
	SuccessfulRuns int64      `json:"successfulRuns"`
	FailedRuns     int64      `json:"failedRuns"`
	LastRun        *time.Time `json:"lastRun"`
}

// WorkflowExecution is one run of a workflow
type WorkflowExecution struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflowId"`
	Status      string                 `json:"status"`
	TriggerType string                 `json:"triggerType"`
	EntityType  *string                `json:"entityType"`
	EntityID    *string                `json:"entityId"`
	TriggerData map[string]interface{} `json:"triggerData"`
	Error       *string                `json:"error"`
	StartedAt   time.Time              `json:"startedAt"`
	CompletedAt *time.Time             `json:"completedAt"`

	Workflow *Ref                   `json:"workflow,omitempty"`
	Logs     []WorkflowExecutionLog `json:"logs,omitempty"`
}

// WorkflowExecutionLog records one action of an execution
type WorkflowExecutionLog struct {
	ID           string                 `json:"id"`
	ExecutionID  string                 `json:"executionId"`
	ActionID     *string                `json:"actionId"`
	ActionName   string                 `json:"actionName"`
	ActionType   string                 `json:"actionType"`
	ActionConfig map[string]interface{} `json:"actionConfig"`
	Status       string                 `json:"status"`
	Result       map[string]interface{} `json:"result"`
	Error        *string                `json:"error"`
	StartedAt    time.Time              `json:"startedAt"`
	CompletedAt  *time.Time             `json:"completedAt"`
}
