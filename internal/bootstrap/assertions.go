package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // value expressions in column defaults

	"github.com/nexuscrm/tenantcrm/internal/infrastructure/database"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// AssertionViolation represents a single design violation
type AssertionViolation struct {
	Category    string // e.g., "TenantColumn", "Plans"
	Severity    string // "error" or "warning"
	Object      string // Table/Object name affected
	Description string
}

func (v AssertionViolation) Error() string {
	return fmt.Sprintf("[%s] %s: %s", v.Category, v.Object, v.Description)
}

// AssertionResult contains all violations found during assertion checks
type AssertionResult struct {
	Violations []AssertionViolation
	Passed     bool
}

func (r *AssertionResult) add(category, severity, object, format string, args ...interface{}) {
	r.Violations = append(r.Violations, AssertionViolation{
		Category:    category,
		Severity:    severity,
		Object:      object,
		Description: fmt.Sprintf(format, args...),
	})
}

// RunAssertions executes the startup assertions. Violations are logged; in
// strict mode every error-severity violation is returned as one aggregated error.
func RunAssertions(ctx context.Context, db *sql.DB, strictMode bool) (*AssertionResult, error) {
	glog.Info("Running startup assertions...")

	result := &AssertionResult{
		Violations: []AssertionViolation{},
		Passed:     true,
	}

	files, names, err := database.UpMigrationSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	tables := assertTenantColumns(files, names, result)
	assertTablesExist(ctx, db, tables, result)
	assertPlansSeeded(ctx, db, result)
	assertSuperAdminExists(ctx, db, result)

	return report(result, strictMode)
}

func report(result *AssertionResult, strictMode bool) (*AssertionResult, error) {
	if len(result.Violations) == 0 {
		glog.Info("All assertions passed")
		return result, nil
	}

	result.Passed = false
	glog.Warningf("Found %d assertion violation(s):", len(result.Violations))
	var errs *multierror.Error
	for i, v := range result.Violations {
		glog.Warningf("   %d. [%s] %s", i+1, v.Severity, v.Error())
		if v.Severity == SeverityError {
			errs = multierror.Append(errs, v)
		}
	}

	if strictMode && errs != nil {
		return result, fmt.Errorf("assertion failures in strict mode: %w", errs.ErrorOrNil())
	}
	return result, nil
}

// assertTenantColumns parses every CREATE TABLE of the embedded migrations
// and checks tenant-scoped tables declare tenant_id. It returns the table names.
func assertTenantColumns(files map[string]string, names []string, result *AssertionResult) []string {
	p := parser.New()
	var tables []string
	for _, name := range names {
		stmts, _, err := p.Parse(files[name], "", "")
		if err != nil {
			result.add("Migrations", SeverityError, name, "failed to parse: %v", err)
			continue
		}
		for _, stmt := range stmts {
			create, ok := stmt.(*ast.CreateTableStmt)
			if !ok {
				continue
			}
			table := create.Table.Name.L
			tables = append(tables, table)
			if !constants.IsTenantScoped(table) {
				continue
			}
			if !hasColumn(create, constants.FieldTenantID) {
				result.add("TenantColumn", SeverityError, table,
					"tenant-scoped table declared in %s has no %s column", name, constants.FieldTenantID)
			}
		}
	}
	return tables
}

func hasColumn(create *ast.CreateTableStmt, column string) bool {
	for _, col := range create.Cols {
		if col.Name.Name.L == column {
			return true
		}
	}
	return false
}

func assertTablesExist(ctx context.Context, db *sql.DB, tables []string, result *AssertionResult) {
	for _, table := range tables {
		var exists bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?)",
			table).Scan(&exists)
		if err != nil {
			result.add("Tables", SeverityError, table, "failed to check table: %v", err)
			continue
		}
		if !exists {
			result.add("Tables", SeverityError, table, "table is missing; run migrations")
		}
	}
}

func assertPlansSeeded(ctx context.Context, db *sql.DB, result *AssertionResult) {
	plans, err := DefaultPlans()
	if err != nil {
		result.add("Plans", SeverityError, constants.TablePlan, "%v", err)
		return
	}
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE name = ?)", constants.TablePlan)
	for _, plan := range plans {
		var exists bool
		if err := db.QueryRowContext(ctx, query, plan.Name).Scan(&exists); err != nil {
			result.add("Plans", SeverityError, plan.Name, "failed to check plan: %v", err)
			continue
		}
		if !exists {
			result.add("Plans", SeverityError, plan.Name, "plan is not seeded")
		}
	}
}

func assertSuperAdminExists(ctx context.Context, db *sql.DB, result *AssertionResult) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE role = ? AND is_active = TRUE", constants.TableUser)
	var n int64
	if err := db.QueryRowContext(ctx, query, constants.RoleSuperAdmin).Scan(&n); err != nil {
		result.add("SuperAdmin", SeverityError, constants.TableUser, "failed to count super admins: %v", err)
		return
	}
	if n == 0 {
		result.add("SuperAdmin", SeverityWarning, constants.TableUser,
			"no active super admin; set ADMIN_EMAIL and ADMIN_PASSWORD or run create-admin")
	}
}
