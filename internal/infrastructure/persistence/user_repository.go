package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/query"
)

const userColumns = "u.id, u.tenant_id, u.name, u.email, u.password, u.role, u.is_active, u.last_login_at, u.created_at, u.updated_at"

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(s rowScanner, extra ...interface{}) (*models.User, error) {
	var u models.User
	var tenantID sql.NullString
	var lastLogin sql.NullTime
	dest := []interface{}{&u.ID, &tenantID, &u.Name, &u.Email, &u.Password, &u.Role, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	u.TenantID = strPtr(tenantID)
	u.LastLoginAt = timePtr(lastLogin)
	return &u, nil
}

func (r *UserRepository) CheckUserExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE email = ?)", constants.TableUser)
	return exists(ctx, conn(ctx, r.db), query, email)
}

func (r *UserRepository) CheckEmailConflict(ctx context.Context, email, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE email = ? AND id != ?)", constants.TableUser)
	return exists(ctx, conn(ctx, r.db), query, email, excludeID)
}

// Create inserts a user; Password must already be hashed
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, name, email, password, role, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, constants.TableUser)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, u.ID, nullable(u.TenantID), u.Name, u.Email, u.Password, u.Role, u.IsActive)
	return err
}

// FindByEmail retrieves a user with the password hash for auth checks
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s u WHERE u.email = ? LIMIT 1", userColumns, constants.TableUser)
	u, err := scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// FindByID retrieves a user by id
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s u WHERE u.id = ? LIMIT 1", userColumns, constants.TableUser)
	u, err := scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// FindByIDForTenant returns nil when the user belongs to another tenant
func (r *UserRepository) FindByIDForTenant(ctx context.Context, tenantID, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s u WHERE u.id = ? AND u.tenant_id = ? LIMIT 1", userColumns, constants.TableUser)
	u, err := scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// UserFilter narrows user listings
type UserFilter struct {
	TenantID string
	Search   string
	Role     string
	Page     int
	Limit    int
}

// List returns users with their tenant name, newest first
func (r *UserRepository) List(ctx context.Context, f UserFilter) ([]models.User, int64, error) {
	b := query.From(constants.TableUser, "u").
		Select(userColumns, "t.name").
		Join(fmt.Sprintf("LEFT JOIN %s t ON t.id = u.tenant_id", constants.TableTenant)).
		WhereIf(f.TenantID != "", "u.tenant_id = ?", f.TenantID).
		WhereIf(f.Role != "", "u.role = ?", f.Role).
		Search(f.Search, "name", "email")

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	q := b.OrderBy("u.created_at DESC").Page(f.Page, f.Limit).Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var tenantName sql.NullString
		u, err := scanUser(rows, &tenantName)
		if err != nil {
			return nil, 0, err
		}
		if u.TenantID != nil && tenantName.Valid {
			u.Tenant = &models.Tenant{ID: *u.TenantID, Name: tenantName.String}
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// UpdateUser updates a user record
func (r *UserRepository) UpdateUser(ctx context.Context, userID string, updates map[string]interface{}) error {
	b := query.Update(constants.TableUser).SetMap(updates).Where("id = ?", userID)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// UpdatePassword updates the user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := fmt.Sprintf("UPDATE %s SET password = ? WHERE id = ?", constants.TableUser)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, passwordHash, userID)
	return err
}

// TouchLastLogin stamps last_login_at
func (r *UserRepository) TouchLastLogin(ctx context.Context, userID string) error {
	query := fmt.Sprintf("UPDATE %s SET last_login_at = NOW() WHERE id = ?", constants.TableUser)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, userID)
	return err
}

// ExistsInTenant reports whether the user id belongs to the tenant
func (r *UserRepository) ExistsInTenant(ctx context.Context, tenantID, userID string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = ? AND tenant_id = ?)", constants.TableUser)
	return exists(ctx, conn(ctx, r.db), query, userID, tenantID)
}

// CountByTenant counts users of a tenant
func (r *UserRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", constants.TableUser)
	return count(ctx, conn(ctx, r.db), query, tenantID)
}

// CountByRole counts users platform wide with the given role
func (r *UserRepository) CountByRole(ctx context.Context, role constants.Role) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE role = ?", constants.TableUser)
	return count(ctx, conn(ctx, r.db), query, role)
}

// FirstAdminOfTenant returns the id of the earliest tenant admin, or ""
func (r *UserRepository) FirstAdminOfTenant(ctx context.Context, tenantID string) (string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = ? AND role = ? AND is_active = TRUE
		ORDER BY created_at ASC LIMIT 1`, constants.TableUser)
	var id string
	err := conn(ctx, r.db).QueryRowContext(ctx, query, tenantID, constants.RoleTenantAdmin).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// ListAssignable returns active users of the tenant that may own records, oldest first
func (r *UserRepository) ListAssignable(ctx context.Context, tenantID string) ([]string, error) {
	q := query.From(constants.TableUser, "").
		Select("id").
		Where("tenant_id = ?", tenantID).
		Where("is_active = TRUE").
		WhereIn("role", roleStrings(constants.WorkflowAssignableRoles)).
		OrderBy("created_at ASC").
		Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LeastLoadedAssignee returns the assignable user owning the fewest contacts, or ""
func (r *UserRepository) LeastLoadedAssignee(ctx context.Context, tenantID string) (string, error) {
	roles := roleStrings(constants.WorkflowAssignableRoles)
	stmt := fmt.Sprintf(`SELECT u.id FROM %s u
		LEFT JOIN %s c ON c.assigned_to = u.id AND c.tenant_id = u.tenant_id
		WHERE u.tenant_id = ? AND u.is_active = TRUE AND u.role IN (%s)
		GROUP BY u.id, u.created_at ORDER BY COUNT(c.id) ASC, u.created_at ASC LIMIT 1`,
		constants.TableUser, constants.TableContact, query.Placeholders(len(roles)))

	args := []interface{}{tenantID}
	for _, role := range roles {
		args = append(args, role)
	}
	var id string
	err := conn(ctx, r.db).QueryRowContext(ctx, stmt, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

func roleStrings(roles []constants.Role) []string {
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}
