package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

const (
	selectWorkflowSQL        = "SELECT (.+) FROM workflows w WHERE w.id = \\? AND w.tenant_id = \\?"
	selectWorkflowActionsSQL = "SELECT (.+) FROM workflow_actions WHERE workflow_id = \\?"
	setWorkflowActiveSQL     = "UPDATE workflows SET is_active = \\?, status = \\?, next_run_at = \\? WHERE id = \\? AND tenant_id = \\?"
)

var workflowRowColumns = []string{"id", "tenant_id", "name", "description", "trigger_type", "trigger_config", "conditions",
	"is_active", "status", "next_run_at", "last_run_at", "is_running", "created_by", "created_at", "updated_at"}

func workflowRow(id, trigger, triggerConfig string, active bool, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(workflowRowColumns).
		AddRow(id, testTenantID, "Welcome flow", nil, trigger, []byte(triggerConfig), []byte("{}"),
			active, status, nil, nil, false, testUserID, now, now)
}

func expectWorkflowGet(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(selectWorkflowSQL).WithArgs("wf-1", testTenantID).WillReturnRows(rows)
	mock.ExpectQuery(selectWorkflowActionsSQL).WithArgs("wf-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "workflow_id", "name", "type", "config", "sort_order", "delay_minutes"}))
}

func newWorkflowServiceWithMock(t *testing.T, auditor *recordingAuditor) (*WorkflowService, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	return NewWorkflowService(persistence.NewWorkflowRepository(db), nil, nil, nil, nil, auditor), mock
}

func TestWorkflowService_Toggle(t *testing.T) {
	tests := []struct {
		name        string
		active      bool
		status      string
		wantActive  bool
		wantStatus  string
		wantMessage string
	}{
		{"activate paused workflow", false, constants.WorkflowStatusPaused, true, constants.WorkflowStatusActive, "Workflow activated"},
		{"activate draft workflow", false, constants.WorkflowStatusDraft, true, constants.WorkflowStatusActive, "Workflow activated"},
		{"pause active workflow", true, constants.WorkflowStatusActive, false, constants.WorkflowStatusPaused, "Workflow paused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := &recordingAuditor{}
			svc, mock := newWorkflowServiceWithMock(t, auditor)

			expectWorkflowGet(mock, workflowRow("wf-1", constants.TriggerContactCreated, "{}", tt.active, tt.status))
			mock.ExpectExec(setWorkflowActiveSQL).
				WithArgs(tt.wantActive, tt.wantStatus, nil, "wf-1", testTenantID).
				WillReturnResult(sqlmock.NewResult(0, 1))
			expectWorkflowGet(mock, workflowRow("wf-1", constants.TriggerContactCreated, "{}", tt.wantActive, tt.wantStatus))

			res, err := svc.Toggle(context.Background(), GetTestUser(constants.RoleManager), "wf-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantMessage, res.Message)
			assert.Equal(t, tt.wantActive, res.Workflow.IsActive)
			assert.Equal(t, tt.wantStatus, res.Workflow.Status)

			require.Len(t, auditor.entries, 1)
			entry := auditor.entries[0]
			assert.Equal(t, constants.AuditWorkflowToggled, entry.Action)
			assert.Equal(t, constants.ResourceWorkflow, entry.Resource)
			assert.Equal(t, map[string]interface{}{
				"workflowName":   "Welcome flow",
				"previousStatus": tt.status,
				"newStatus":      tt.wantStatus,
			}, entry.Metadata)
		})
	}
}

func TestWorkflowService_Toggle_ScheduledSetsNextRun(t *testing.T) {
	svc, mock := newWorkflowServiceWithMock(t, &recordingAuditor{})
	cfg := `{"schedule": "0 9 * * *", "timezone": "UTC"}`

	expectWorkflowGet(mock, workflowRow("wf-1", constants.TriggerRecurring, cfg, false, constants.WorkflowStatusPaused))
	mock.ExpectExec(setWorkflowActiveSQL).
		WithArgs(true, constants.WorkflowStatusActive, sqlmock.AnyArg(), "wf-1", testTenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectWorkflowGet(mock, workflowRow("wf-1", constants.TriggerRecurring, cfg, true, constants.WorkflowStatusActive))

	res, err := svc.Toggle(context.Background(), GetTestUser(constants.RoleTenantAdmin), "wf-1")
	require.NoError(t, err)
	assert.True(t, res.Workflow.IsActive)
}

func TestWorkflowService_Toggle_InvalidSchedule(t *testing.T) {
	svc, mock := newWorkflowServiceWithMock(t, &recordingAuditor{})
	expectWorkflowGet(mock, workflowRow("wf-1", constants.TriggerRecurring, `{"schedule": "every day"}`, false, constants.WorkflowStatusPaused))

	_, err := svc.Toggle(context.Background(), GetTestUser(constants.RoleTenantAdmin), "wf-1")
	require.Error(t, err)
	assert.Equal(t, 400, errors.GetHTTPStatus(err))
}

func TestWorkflowService_Toggle_RequiresManager(t *testing.T) {
	svc, _ := newWorkflowServiceWithMock(t, &recordingAuditor{})

	_, err := svc.Toggle(context.Background(), GetTestUser(constants.RoleUser), "wf-1")
	require.Error(t, err)
	assert.Equal(t, 403, errors.GetHTTPStatus(err))
}

func TestWorkflowService_Toggle_OtherTenant(t *testing.T) {
	svc, mock := newWorkflowServiceWithMock(t, &recordingAuditor{})
	mock.ExpectQuery(selectWorkflowSQL).WithArgs("wf-1", testTenantID).
		WillReturnRows(sqlmock.NewRows(workflowRowColumns))

	_, err := svc.Toggle(context.Background(), GetTestUser(constants.RoleTenantAdmin), "wf-1")
	require.Error(t, err)
	assert.Equal(t, 404, errors.GetHTTPStatus(err))
}
