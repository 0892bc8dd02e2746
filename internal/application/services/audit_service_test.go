package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/internal/metrics"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

func newAuditServiceWithMock(t *testing.T, m *metrics.Metrics) (*AuditService, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	return NewAuditService(persistence.NewAuditRepository(db), NewPermissionService(), m), mock
}

func TestAuditService_Record(t *testing.T) {
	m := metrics.New()
	svc, mock := newAuditServiceWithMock(t, m)
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), testTenantID, testUserID, constants.AuditCreate, constants.ResourceContact, "c-1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "10.0.0.1", "curl/8", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := WithRequestMeta(context.Background(), "10.0.0.1", "curl/8")
	entry := &models.AuditLog{
		TenantID:   stringPtr(testTenantID),
		UserID:     stringPtr(testUserID),
		Action:     constants.AuditCreate,
		Resource:   constants.ResourceContact,
		ResourceID: stringPtr("c-1"),
	}
	svc.Record(ctx, entry)

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AuditWriteFailures))
}

func TestAuditService_Record_WriteFailureIsSwallowed(t *testing.T) {
	m := metrics.New()
	svc, mock := newAuditServiceWithMock(t, m)
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(fmt.Errorf("connection reset"))

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), &models.AuditLog{Action: constants.AuditDelete, Resource: constants.ResourceDeal})
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteFailures))
}

func TestAuditService_Record_NilMetrics(t *testing.T) {
	svc, mock := newAuditServiceWithMock(t, nil)
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(fmt.Errorf("connection reset"))

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), &models.AuditLog{Action: constants.AuditDelete, Resource: constants.ResourceDeal})
	})
}

func TestAuditService_List_TenantAdminScopedToOwnTenant(t *testing.T) {
	svc, mock := newAuditServiceWithMock(t, nil)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs al (.+) WHERE al.tenant_id = \\?").
		WithArgs(testTenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT (.+) FROM audit_logs al (.+) WHERE al.tenant_id = \\?").
		WithArgs(testTenantID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	logs, page, err := svc.List(context.Background(), GetTestUser(constants.RoleTenantAdmin), AuditQuery{
		TenantID: "tenant-2",
		Page:     utils.Pagination{Page: 1, Limit: 20},
	})
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Equal(t, int64(0), page.Total)
}

func TestAuditService_List_TenantAdminWithoutTenant(t *testing.T) {
	svc, _ := newAuditServiceWithMock(t, nil)
	user := &auth.UserSession{ID: testUserID, Role: constants.RoleTenantAdmin}

	_, _, err := svc.List(context.Background(), user, AuditQuery{Page: utils.Pagination{Page: 1, Limit: 20}})
	require.Error(t, err)
	assert.Equal(t, "TENANT_REQUIRED", errors.GetErrorCode(err))
}

func TestAuditService_List_Forbidden(t *testing.T) {
	svc, _ := newAuditServiceWithMock(t, nil)

	_, _, err := svc.List(context.Background(), GetTestUser(constants.RoleUser), AuditQuery{})
	require.Error(t, err)
	assert.Equal(t, 403, errors.GetHTTPStatus(err))
}
