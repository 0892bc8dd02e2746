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
)

const selectTenantUserSQL = "SELECT (.+) FROM users u WHERE u.id = \\? AND u.tenant_id = \\? LIMIT 1"

var userRowColumns = []string{"id", "tenant_id", "name", "email", "password", "role", "is_active", "last_login_at", "created_at", "updated_at"}

type actionRun func(context.Context, map[string]interface{}, *ExecutionContext) (map[string]interface{}, error)

func newActionServiceWithMock(t *testing.T) (*ActionService, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	svc := NewActionService(
		persistence.NewContactRepository(db),
		persistence.NewDealRepository(db),
		persistence.NewActivityRepository(db),
		persistence.NewPipelineRepository(db),
		persistence.NewUserRepository(db),
		time.Second,
	)
	return svc, mock
}

func TestActionService_AssigneeFromAnotherTenant(t *testing.T) {
	ec := &ExecutionContext{TenantID: testTenantID, EntityType: constants.EntityContact, EntityID: "c-1"}
	config := map[string]interface{}{"assignedTo": "user-of-tenant-2"}

	actions := map[string]func(*ActionService) actionRun{
		constants.ActionCreateDeal:    func(as *ActionService) actionRun { return as.createDeal },
		constants.ActionAssignContact: func(as *ActionService) actionRun { return as.assignContact },
		constants.ActionCreateTask:    func(as *ActionService) actionRun { return as.createTask },
	}

	for name, pick := range actions {
		t.Run(name, func(t *testing.T) {
			svc, mock := newActionServiceWithMock(t)
			mock.ExpectQuery(selectTenantUserSQL).WithArgs("user-of-tenant-2", testTenantID).
				WillReturnRows(sqlmock.NewRows(userRowColumns))

			_, err := pick(svc)(context.Background(), config, ec)
			require.Error(t, err)
			assert.Equal(t, "Assigned user user-of-tenant-2 not found", err.Error())
		})
	}
}

func TestActionService_CreateTask_TenantAssignee(t *testing.T) {
	svc, mock := newActionServiceWithMock(t)
	now := time.Now()
	mock.ExpectQuery(selectTenantUserSQL).WithArgs("user-2", testTenantID).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("user-2", testTenantID, "Sam", "sam@example.com", "hash", "SALES", true, nil, now, now))
	mock.ExpectExec("INSERT INTO activities").
		WithArgs(sqlmock.AnyArg(), testTenantID, constants.ActivityTask, "Call back", sqlmock.AnyArg(), nil, nil, false, nil,
			"user-2", "c-1", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ec := &ExecutionContext{TenantID: testTenantID, EntityType: constants.EntityContact, EntityID: "c-1"}
	out, err := svc.createTask(context.Background(), map[string]interface{}{"assignedTo": "user-2", "title": "Call back"}, ec)
	require.NoError(t, err)
	assert.Equal(t, "user-2", out["assignedTo"])
}
