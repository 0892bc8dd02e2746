package persistence

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contactRowColumns = []string{"id", "tenant_id", "first_name", "last_name", "email", "phone", "job_title", "status",
	"source", "notes", "lead_score", "tags", "assigned_to", "company_id", "stage_id", "last_activity", "created_at",
	"updated_at", "company_name"}

func TestContactList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewContactRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contacts c LEFT JOIN companies co ON co.id = c.company_id WHERE c.tenant_id = ? AND c.status = ? AND (c.first_name LIKE ? OR c.last_name LIKE ? OR c.email LIKE ? OR c.phone LIKE ? OR co.name LIKE ?)")).
		WithArgs("t1", "LEAD", "%ann%", "%ann%", "%ann%", "%ann%", "%ann%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY c.created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(contactRowColumns).
			AddRow("c1", "t1", "Ann", nil, "ann@x.io", nil, nil, "LEAD", nil, nil, 5, `["vip"]`, "u1", "co1", nil, now, now, now, "Acme"))

	contacts, total, err := repo.List(context.Background(), ContactFilter{TenantID: "t1", Search: "ann", Status: "LEAD", Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, contacts, 1)
	assert.Equal(t, []string{"vip"}, contacts[0].Tags)
	require.NotNil(t, contacts[0].Company)
	assert.Equal(t, "Acme", contacts[0].Company.Name)
	assert.Equal(t, "Ann", contacts[0].FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactGetByIDOtherTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewContactRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.id = ? AND c.tenant_id = ?")).
		WithArgs("c1", "t2").
		WillReturnRows(sqlmock.NewRows(contactRowColumns))

	c, err := repo.GetByID(context.Background(), "t2", "c1")
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestContactBulkSetStage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewContactRepository(db)
	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE contacts SET last_activity = ?, stage_id = ? WHERE tenant_id = ? AND id IN (?, ?)")).
		WithArgs(at, "s1", "t1", "c1", "c2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.BulkSetStage(context.Background(), "t1", []string{"c1", "c2"}, "s1", at)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestActivityBulk(t *testing.T) {
	at := time.Now()
	tests := []struct {
		name   string
		action string
		sql    string
		args   []driver.Value
	}{
		{"complete", constants.BulkActionComplete, "UPDATE activities SET completed_at = ?, is_completed = ? WHERE tenant_id = ? AND id IN (?, ?)", []driver.Value{at, true, "t1", "a1", "a2"}},
		{"incomplete", constants.BulkActionIncomplete, "UPDATE activities SET completed_at = ?, is_completed = ? WHERE tenant_id = ? AND id IN (?, ?)", []driver.Value{nil, false, "t1", "a1", "a2"}},
		{"delete", constants.BulkActionDelete, "DELETE FROM activities WHERE tenant_id = ? AND id IN (?, ?)", []driver.Value{"t1", "a1", "a2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(regexp.QuoteMeta(tt.sql)).WithArgs(tt.args...).WillReturnResult(sqlmock.NewResult(0, 2))

			n, err := NewActivityRepository(db).Bulk(context.Background(), "t1", []string{"a1", "a2"}, tt.action, at)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("unknown action", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		_, err = NewActivityRepository(db).Bulk(context.Background(), "t1", []string{"a1"}, "archive", at)
		assert.Error(t, err)
	})
}

func TestActivityCountOwned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM activities WHERE tenant_id = ? AND id IN (?, ?, ?)")).
		WithArgs("t1", "a1", "a2", "a3").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := NewActivityRepository(db).CountOwned(context.Background(), "t1", []string{"a1", "a2", "a3"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCompanyDeleteDetachesReferences(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"contacts", "deals", "activities"} {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE "+table+" SET company_id = NULL WHERE company_id = ? AND tenant_id = ?")).
			WithArgs("co1", "t1").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM companies WHERE id = ? AND tenant_id = ?")).
		WithArgs("co1", "t1").WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, NewCompanyRepository(db).Delete(context.Background(), "t1", "co1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDealCreateStoresCents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deals")).
		WithArgs("d1", "t1", "Big", int64(150000), "PROSPECTING", 10, nil, nil, nil, "[]", nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewDealRepository(db).Create(context.Background(), &models.Deal{
		ID: "d1", TenantID: "t1", Name: "Big", Value: 150000, Stage: "PROSPECTING", Probability: 10,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPipelineGetDefaultMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM pipelines")).
		WithArgs("t1", constants.PipelineTypeContact).
		WillReturnError(errors.New("boom"))

	p, err := NewPipelineRepository(db).GetDefault(context.Background(), "t1", constants.PipelineTypeContact)
	assert.Error(t, err)
	assert.Nil(t, p)
}
