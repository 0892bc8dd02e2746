package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

const (
	testTenantID = "tenant-1"
	testUserID   = "user-1"
)

// newMockDB opens a sqlmock connection that is closed and verified when the test ends.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

// GetTestUser returns a tenant session with the given role.
func GetTestUser(role constants.Role) *auth.UserSession {
	return &auth.UserSession{
		ID:       testUserID,
		Name:     "Test User",
		Email:    "test@example.com",
		Role:     role,
		TenantID: testTenantID,
	}
}

// recordingAuditor keeps every entry passed to Record.
type recordingAuditor struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (a *recordingAuditor) Record(_ context.Context, entry *models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

var tenantRowColumns = []string{"id", "name", "slug", "domain", "plan_id", "status", "trial_ends_at", "settings", "created_at", "updated_at"}

// tenantRow is a single tenants row as read by TenantRepository.GetByID.
func tenantRow(id string, planID interface{}, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(tenantRowColumns).
		AddRow(id, "Acme", "acme", nil, planID, status, nil, []byte("{}"), now, now)
}

var planRowColumns = []string{"id", "name", "display_name", "description", "price", "yearly_price", "features",
	"is_active", "sort_order", "created_at", "updated_at"}

// planRow is a single plans row as read by PlanRepository.GetByID.
func planRow(id, name string, price int64, active bool, features string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(planRowColumns).
		AddRow(id, name, name, nil, price, price*10, []byte(features), active, 1, now, now)
}
