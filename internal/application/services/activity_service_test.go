package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

func TestDateWindow(t *testing.T) {
	// Wednesday
	now := time.Date(2024, 5, 15, 14, 30, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		from, to time.Time
	}{
		{"today", day(5, 15), day(5, 16)},
		{"week", day(5, 12), day(5, 19)},
		{"month", day(5, 1), day(6, 1)},
		{"quarter", day(4, 1), day(7, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := dateWindow(tt.name, now)
			require.NotNil(t, from)
			require.NotNil(t, to)
			assert.Equal(t, tt.from, *from)
			assert.Equal(t, tt.to, *to)
		})
	}

	from, to := dateWindow("all", now)
	assert.Nil(t, from)
	assert.Nil(t, to)
}

func newActivityServiceWithMock(t *testing.T) (*ActivityService, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	return NewActivityService(persistence.NewActivityRepository(db), nil, nil, nil, nil), mock
}

func TestActivityService_Bulk(t *testing.T) {
	ctx := context.Background()
	user := GetTestUser(constants.RoleSales)
	ids := []string{"a1", "a2"}

	t.Run("complete", func(t *testing.T) {
		svc, mock := newActivityServiceWithMock(t)
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectExec("UPDATE").
			WillReturnResult(sqlmock.NewResult(0, 2))

		res, err := svc.Bulk(ctx, user, ids, constants.BulkActionComplete)
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Count)
		assert.Equal(t, "2 activities updated successfully", res.Message)
	})

	t.Run("delete", func(t *testing.T) {
		svc, mock := newActivityServiceWithMock(t)
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectExec("DELETE").
			WillReturnResult(sqlmock.NewResult(0, 2))

		res, err := svc.Bulk(ctx, user, ids, constants.BulkActionDelete)
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Count)
	})

	t.Run("foreign ids", func(t *testing.T) {
		svc, mock := newActivityServiceWithMock(t)
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		_, err := svc.Bulk(ctx, user, ids, constants.BulkActionComplete)
		assert.Equal(t, http.StatusNotFound, errors.GetHTTPStatus(err))
	})

	t.Run("unknown action", func(t *testing.T) {
		svc, mock := newActivityServiceWithMock(t)
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		_, err := svc.Bulk(ctx, user, ids, "archive")
		require.Error(t, err)
		assert.Equal(t, "Invalid action", err.Error())
	})

	t.Run("validation happens before any query", func(t *testing.T) {
		svc, _ := newActivityServiceWithMock(t)

		_, err := svc.Bulk(ctx, user, nil, constants.BulkActionComplete)
		assert.Equal(t, "Activity IDs are required", err.Error())

		_, err = svc.Bulk(ctx, user, ids, "")
		assert.Equal(t, "Action is required", err.Error())
	})
}

func TestActivityService_Update_OtherTenant(t *testing.T) {
	svc, mock := newActivityServiceWithMock(t)
	// The row belongs to another tenant, so the tenant-scoped lookup finds nothing.
	mock.ExpectQuery("SELECT (.+) FROM activities a (.+) WHERE a.tenant_id = \\? AND a.id = \\?").
		WithArgs(testTenantID, "b-activity").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	title := "Hijacked"
	_, err := svc.Update(context.Background(), GetTestUser(constants.RoleTenantAdmin), "b-activity", ActivityInput{Title: &title})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, errors.GetHTTPStatus(err))
	assert.Equal(t, "Activity with ID 'b-activity' not found", err.Error())
}
