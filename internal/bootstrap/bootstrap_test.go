package bootstrap

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/database"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

func TestEmbeddedMigrationsDeclareTenantColumns(t *testing.T) {
	files, names, err := database.UpMigrationSQL()
	require.NoError(t, err)

	result := &AssertionResult{}
	tables := assertTenantColumns(files, names, result)

	assert.Empty(t, result.Violations)
	assert.Contains(t, tables, constants.TableContact)
	assert.Contains(t, tables, constants.TableWhatsAppMessage)
}

func TestAssertTenantColumnsFlagsMissingColumn(t *testing.T) {
	files := map[string]string{
		"000001_bad.up.sql": `
CREATE TABLE contacts (id VARCHAR(36) PRIMARY KEY, email VARCHAR(255) DEFAULT '');
CREATE TABLE plans (id VARCHAR(36) PRIMARY KEY);
CREATE INDEX idx_contacts_email ON contacts (email);`,
		"000002_broken.up.sql": "CREATE TABLE (",
	}
	names := []string{"000001_bad.up.sql", "000002_broken.up.sql"}

	result := &AssertionResult{}
	tables := assertTenantColumns(files, names, result)

	assert.Equal(t, []string{"contacts", "plans"}, tables)
	require.Len(t, result.Violations, 2)
	assert.Equal(t, "TenantColumn", result.Violations[0].Category)
	assert.Equal(t, "contacts", result.Violations[0].Object)
	assert.Equal(t, "Migrations", result.Violations[1].Category)
}

func TestReport(t *testing.T) {
	warningOnly := func() *AssertionResult {
		r := &AssertionResult{Passed: true}
		r.add("SuperAdmin", SeverityWarning, "users", "no active super admin")
		return r
	}
	withError := func() *AssertionResult {
		r := warningOnly()
		r.add("Plans", SeverityError, "ELITE", "plan is not seeded")
		return r
	}

	t.Run("clean", func(t *testing.T) {
		res, err := report(&AssertionResult{Passed: true}, true)
		require.NoError(t, err)
		assert.True(t, res.Passed)
	})

	t.Run("warnings never fail", func(t *testing.T) {
		res, err := report(warningOnly(), true)
		require.NoError(t, err)
		assert.False(t, res.Passed)
	})

	t.Run("errors fail in strict mode", func(t *testing.T) {
		_, err := report(withError(), true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ELITE")
	})

	t.Run("errors are logged outside strict mode", func(t *testing.T) {
		res, err := report(withError(), false)
		require.NoError(t, err)
		assert.Len(t, res.Violations, 2)
	})
}

func TestAssertPlansSeededAndSuperAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	plans, err := DefaultPlans()
	require.NoError(t, err)
	for _, p := range plans {
		exists := p.Name != "ELITE"
		mock.ExpectQuery("SELECT EXISTS").WithArgs(p.Name).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
	}
	mock.ExpectQuery("SELECT COUNT").WithArgs(constants.RoleSuperAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	result := &AssertionResult{}
	assertPlansSeeded(context.Background(), db, result)
	assertSuperAdminExists(context.Background(), db, result)

	require.Len(t, result.Violations, 2)
	assert.Equal(t, "ELITE", result.Violations[0].Object)
	assert.Equal(t, SeverityError, result.Violations[0].Severity)
	assert.Equal(t, SeverityWarning, result.Violations[1].Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultPlans(t *testing.T) {
	plans, err := DefaultPlans()
	require.NoError(t, err)
	require.Len(t, plans, 4)

	names := make([]string, len(plans))
	for i, p := range plans {
		names[i] = p.Name
		assert.Equal(t, i, p.SortOrder)
		assert.True(t, p.IsActive)
		for _, resource := range constants.LimitResources {
			assert.Contains(t, p.Features, resource, "%s lacks %s", p.Name, resource)
		}
	}
	assert.Equal(t, []string{"FREE", "NORMAL", "PREMIUM", "ELITE"}, names)
	assert.Equal(t, int64(2900), plans[1].Price)
	assert.Equal(t, float64(constants.UnlimitedLimit), plans[3].Features[constants.LimitContacts])
}

type mockPlanStore struct {
	mock.Mock
}

func (m *mockPlanStore) Upsert(ctx context.Context, p *models.Plan) error {
	return m.Called(ctx, p).Error(0)
}

func TestSeedPlans(t *testing.T) {
	store := new(mockPlanStore)
	store.On("Upsert", mock.Anything, mock.AnythingOfType("*models.Plan")).Return(nil).Times(4)

	require.NoError(t, SeedPlans(context.Background(), store))
	store.AssertExpectations(t)

	failing := new(mockPlanStore)
	failing.On("Upsert", mock.Anything, mock.Anything).Return(fmt.Errorf("db down")).Once()
	err := SeedPlans(context.Background(), failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FREE")
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserStore) Create(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func TestEnsureSuperAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		users := new(mockUserStore)
		created, err := EnsureSuperAdmin(ctx, users, "", "", "")
		require.NoError(t, err)
		assert.False(t, created)
		users.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := EnsureSuperAdmin(ctx, new(mockUserStore), "admin@example.com", "short", "")
		require.Error(t, err)
	})

	t.Run("already present", func(t *testing.T) {
		users := new(mockUserStore)
		users.On("FindByEmail", ctx, "admin@example.com").
			Return(&models.User{ID: "u1", Role: constants.RoleSuperAdmin}, nil)

		created, err := EnsureSuperAdmin(ctx, users, " Admin@Example.com ", "password123", "")
		require.NoError(t, err)
		assert.False(t, created)
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("created with hashed password", func(t *testing.T) {
		users := new(mockUserStore)
		users.On("FindByEmail", ctx, "admin@example.com").Return(nil, nil)
		users.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
			return u.Role == constants.RoleSuperAdmin && u.TenantID == nil && u.IsActive &&
				u.Name == "Super Admin" && auth.VerifyPassword("password123", u.Password)
		})).Return(nil)

		created, err := EnsureSuperAdmin(ctx, users, "admin@example.com", "password123", "")
		require.NoError(t, err)
		assert.True(t, created)
		users.AssertExpectations(t)
	})
}

type fakeCRM struct {
	companies, contacts, deals, activities int
}

func (f *fakeCRM) createCompany(_ context.Context, _ *auth.UserSession, in services.CompanyInput) (*models.Company, error) {
	f.companies++
	return &models.Company{ID: fmt.Sprintf("co%d", f.companies), Name: *in.Name}, nil
}

type companyFunc func(context.Context, *auth.UserSession, services.CompanyInput) (*models.Company, error)

func (fn companyFunc) Create(ctx context.Context, u *auth.UserSession, in services.CompanyInput) (*models.Company, error) {
	return fn(ctx, u, in)
}

type contactFunc func(context.Context, *auth.UserSession, services.ContactInput) (*models.Contact, error)

func (fn contactFunc) Create(ctx context.Context, u *auth.UserSession, in services.ContactInput) (*models.Contact, error) {
	return fn(ctx, u, in)
}

type dealFunc func(context.Context, *auth.UserSession, services.DealInput) (*models.Deal, error)

func (fn dealFunc) Create(ctx context.Context, u *auth.UserSession, in services.DealInput) (*models.Deal, error) {
	return fn(ctx, u, in)
}

type activityFunc func(context.Context, *auth.UserSession, services.ActivityInput) (*models.Activity, error)

func (fn activityFunc) Create(ctx context.Context, u *auth.UserSession, in services.ActivityInput) (*models.Activity, error) {
	return fn(ctx, u, in)
}

func TestSampleSeeder(t *testing.T) {
	crm := &fakeCRM{}
	seeder := &SampleSeeder{
		Companies: companyFunc(crm.createCompany),
		Contacts: contactFunc(func(_ context.Context, _ *auth.UserSession, in services.ContactInput) (*models.Contact, error) {
			crm.contacts++
			require.NotNil(t, in.CompanyID)
			assert.NotEmpty(t, in.FirstName)
			return &models.Contact{ID: fmt.Sprintf("c%d", crm.contacts), FirstName: in.FirstName}, nil
		}),
		Deals: dealFunc(func(_ context.Context, _ *auth.UserSession, in services.DealInput) (*models.Deal, error) {
			crm.deals++
			assert.Contains(t, constants.DealStages, *in.Stage)
			return &models.Deal{}, nil
		}),
		Activities: activityFunc(func(_ context.Context, _ *auth.UserSession, in services.ActivityInput) (*models.Activity, error) {
			crm.activities++
			require.NotNil(t, in.ContactID)
			return &models.Activity{}, nil
		}),
	}

	admin := &auth.UserSession{ID: "u1", Role: constants.RoleTenantAdmin, TenantID: "t1"}
	sum, err := seeder.Seed(context.Background(), admin, 7)
	require.NoError(t, err)

	assert.Equal(t, SampleSummary{Companies: 2, Contacts: 7, Deals: 4, Activities: 7}, sum)
	assert.Equal(t, 2, crm.companies)

	empty, err := seeder.Seed(context.Background(), admin, 0)
	require.NoError(t, err)
	assert.Equal(t, SampleSummary{}, empty)
}
