package persistence

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "tenant_id", "name", "email", "password", "role", "is_active", "last_login_at", "created_at", "updated_at"}

func TestCheckUserExistsByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)

	email := "test@example.com"
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE email = ?)", constants.TableUser)

	// Test Case 1: User exists
	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(email).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.CheckUserExistsByEmail(context.Background(), email)
	assert.NoError(t, err)
	assert.True(t, exists)

	// Test Case 2: User does not exist
	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("nonexistent@example.com").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err = repo.CheckUserExistsByEmail(context.Background(), "nonexistent@example.com")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestCheckEmailConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)

	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE email = ? AND id != ?)", constants.TableUser)
	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("test@example.com", "user-123").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.CheckEmailConflict(context.Background(), "test@example.com", "user-123")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	now := time.Now()
	query := fmt.Sprintf("SELECT %s FROM %s u WHERE u.email = ? LIMIT 1", userColumns, constants.TableUser)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("a@b.co").WillReturnRows(
			sqlmock.NewRows(userRowColumns).AddRow("u1", "t1", "Ann", "a@b.co", "hash", "TENANT_ADMIN", true, nil, now, now))

		u, err := repo.FindByEmail(context.Background(), "a@b.co")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "t1", u.TenantIDValue())
		assert.Equal(t, constants.RoleTenantAdmin, u.Role)
		assert.Equal(t, "hash", u.Password)
		assert.Nil(t, u.LastLoginAt)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("x@b.co").WillReturnRows(sqlmock.NewRows(userRowColumns))

		u, err := repo.FindByEmail(context.Background(), "x@b.co")
		assert.NoError(t, err)
		assert.Nil(t, u)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserWithoutTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("u1", nil, "Root", "root@x.io", "hash", constants.RoleSuperAdmin, true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Create(context.Background(), &models.User{
		ID: "u1", Name: "Root", Email: "root@x.io", Password: "hash", Role: constants.RoleSuperAdmin, IsActive: true,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserSkipsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	assert.NoError(t, repo.UpdateUser(context.Background(), "u1", nil))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active = ?, role = ? WHERE id = ?")).
		WithArgs(false, "SALES", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.UpdateUser(context.Background(), "u1", map[string]interface{}{"role": "SALES", "is_active": false}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionFindActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE id = ? AND is_revoked = FALSE AND expires_at > NOW()")).
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "ip_address", "user_agent", "is_revoked", "last_activity", "created_at"}).
			AddRow("jti-1", "u1", now.Add(time.Hour), nil, "curl", false, now, now))

	s, err := repo.FindActive(context.Background(), "jti-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "", s.IPAddress)
	assert.Equal(t, "curl", s.UserAgent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
