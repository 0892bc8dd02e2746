package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/internal/metrics"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

const (
	selectTenantSQL = "SELECT (.+) FROM tenants t WHERE t.id = \\?"
	selectPlanSQL   = "SELECT (.+) FROM plans WHERE id = \\?"
	countContactSQL = "SELECT COUNT\\(\\*\\) FROM contacts WHERE tenant_id = \\?"
)

func newPlanServiceWithMock(t *testing.T, auditor *recordingAuditor, m *metrics.Metrics) (*PlanService, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	svc := NewPlanService(
		persistence.NewPlanRepository(db),
		persistence.NewTenantRepository(db),
		persistence.NewUserRepository(db),
		persistence.NewStatsRepository(db),
		auditor, m, time.Minute, false,
	)
	return svc, mock
}

func TestPlanLimit(t *testing.T) {
	features := models.PlanFeatures{
		constants.LimitContacts:    float64(100),
		constants.LimitDeals:       float64(constants.UnlimitedLimit),
		constants.LimitAutomations: float64(0),
		"storage":                  "1GB",
	}

	tests := []struct {
		resource  string
		wantLimit int64
		wantOK    bool
	}{
		{constants.LimitContacts, 100, true},
		{constants.LimitAutomations, 0, true},
		{constants.LimitDeals, 0, false},
		{constants.LimitCompanies, 0, false},
		{"storage", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			limit, ok := planLimit(features, tt.resource)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestPlanService_CheckLimit(t *testing.T) {
	tests := []struct {
		name      string
		features  string
		usage     int64 // -1 means no count query is expected
		increment int64
		want      LimitCheck
	}{
		{
			name:      "unlimited",
			features:  `{"contacts": -1}`,
			usage:     -1,
			increment: 1,
			want:      LimitCheck{Allowed: true, Limit: constants.UnlimitedLimit},
		},
		{
			name:      "resource not limited by plan",
			features:  `{"deals": 5}`,
			usage:     -1,
			increment: 1,
			want:      LimitCheck{Allowed: true, Limit: constants.UnlimitedLimit},
		},
		{
			name:      "reaching the limit exactly",
			features:  `{"contacts": 10}`,
			usage:     9,
			increment: 1,
			want:      LimitCheck{Allowed: true, CurrentUsage: 9, Limit: 10},
		},
		{
			name:      "bulk create over the limit",
			features:  `{"contacts": 10}`,
			usage:     8,
			increment: 3,
			want: LimitCheck{
				Allowed:      false,
				CurrentUsage: 8,
				Limit:        10,
				Message:      "This action would exceed your plan limit of 10 contacts. Current usage: 8/10",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newPlanServiceWithMock(t, &recordingAuditor{}, nil)
			mock.ExpectQuery(selectTenantSQL).WithArgs(testTenantID).
				WillReturnRows(tenantRow(testTenantID, "plan-1", constants.TenantStatusActive))
			mock.ExpectQuery(selectPlanSQL).WithArgs("plan-1").
				WillReturnRows(planRow("plan-1", "FREE", 0, true, tt.features))
			if tt.usage >= 0 {
				mock.ExpectQuery(countContactSQL).WithArgs(testTenantID).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.usage))
			}

			got, err := svc.CheckLimit(context.Background(), testTenantID, constants.LimitContacts, tt.increment)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanService_CheckLimit_NoPlan(t *testing.T) {
	svc, mock := newPlanServiceWithMock(t, &recordingAuditor{}, nil)
	mock.ExpectQuery(selectTenantSQL).WithArgs(testTenantID).
		WillReturnRows(tenantRow(testTenantID, nil, constants.TenantStatusActive))

	got, err := svc.CheckLimit(context.Background(), testTenantID, constants.LimitContacts, 1)
	require.NoError(t, err)
	assert.False(t, got.Allowed)
	assert.Equal(t, "No valid plan found for tenant", got.Message)
}

func TestPlanService_EnsureWithinLimit_Rejects(t *testing.T) {
	m := metrics.New()
	svc, mock := newPlanServiceWithMock(t, &recordingAuditor{}, m)
	mock.ExpectQuery(selectTenantSQL).WithArgs(testTenantID).
		WillReturnRows(tenantRow(testTenantID, "plan-1", constants.TenantStatusActive))
	mock.ExpectQuery(selectPlanSQL).WithArgs("plan-1").
		WillReturnRows(planRow("plan-1", "FREE", 0, true, `{"contacts": 10}`))
	mock.ExpectQuery(countContactSQL).WithArgs(testTenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))

	err := svc.EnsureWithinLimit(context.Background(), testTenantID, constants.LimitContacts, 1)
	require.Error(t, err)
	assert.Equal(t, 402, errors.GetHTTPStatus(err))
	assert.Equal(t, "PLAN_LIMIT_EXCEEDED", errors.GetErrorCode(err))

	pl, ok := errors.AsPlanLimit(err)
	require.True(t, ok)
	assert.Equal(t, errors.PlanLimit{Type: constants.LimitContacts, CurrentUsage: 10, Limit: 10}, pl.Limit)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanLimitRejections.WithLabelValues(constants.LimitContacts)))
}

func TestPlanService_EnsureWithinLimit_CachesPlan(t *testing.T) {
	svc, mock := newPlanServiceWithMock(t, &recordingAuditor{}, nil)
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(selectTenantSQL).WithArgs(testTenantID).
			WillReturnRows(tenantRow(testTenantID, "plan-1", constants.TenantStatusActive))
		if i == 0 {
			mock.ExpectQuery(selectPlanSQL).WithArgs("plan-1").
				WillReturnRows(planRow("plan-1", "FREE", 0, true, `{"contacts": -1}`))
		}
	}

	require.NoError(t, svc.EnsureWithinLimit(context.Background(), testTenantID, constants.LimitContacts, 1))
	require.NoError(t, svc.EnsureWithinLimit(context.Background(), testTenantID, constants.LimitContacts, 1))
}

func TestPlanService_Upgrade_KeepsTenantStatus(t *testing.T) {
	auditor := &recordingAuditor{}
	svc, mock := newPlanServiceWithMock(t, auditor, nil)

	mock.ExpectQuery(selectPlanSQL).WithArgs("plan-free").
		WillReturnRows(planRow("plan-free", "FREE", 0, true, `{"contacts": 100}`))
	mock.ExpectQuery(selectTenantSQL).WithArgs(testTenantID).
		WillReturnRows(tenantRow(testTenantID, "plan-old", constants.TenantStatusSuspended))
	// Only plan_id is written; a suspended tenant stays suspended.
	mock.ExpectExec("^UPDATE tenants SET plan_id = \\? WHERE id = \\?$").
		WithArgs("plan-free", testTenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE subscriptions SET plan_id = \\?, status = \\?").
		WithArgs("plan-free", constants.SubscriptionActive, sqlmock.AnyArg(), sqlmock.AnyArg(), testTenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	plan, err := svc.Upgrade(context.Background(), GetTestUser(constants.RoleTenantAdmin), "plan-free")
	require.NoError(t, err)
	assert.Equal(t, "plan-free", plan.ID)
	assert.Equal(t, []string{constants.AuditPlanUpgraded}, auditor.actions())
}

func TestPlanService_Upgrade_PaidPlanOutsideDevelopment(t *testing.T) {
	svc, mock := newPlanServiceWithMock(t, &recordingAuditor{}, nil)
	mock.ExpectQuery(selectPlanSQL).WithArgs("plan-premium").
		WillReturnRows(planRow("plan-premium", "PREMIUM", 4900, true, `{}`))

	_, err := svc.Upgrade(context.Background(), GetTestUser(constants.RoleTenantAdmin), "plan-premium")
	require.Error(t, err)
	assert.Equal(t, 400, errors.GetHTTPStatus(err))
	assert.Equal(t, "Payment processing not configured", err.Error())
}
