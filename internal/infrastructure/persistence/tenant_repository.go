package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/query"
)

const tenantColumns = "t.id, t.name, t.slug, t.domain, t.plan_id, t.status, t.trial_ends_at, t.settings, t.created_at, t.updated_at"

// TenantRepository handles tenants and their subscriptions
type TenantRepository struct {
	db *sql.DB
}

// NewTenantRepository creates a new TenantRepository
func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func scanTenant(s rowScanner, extra ...interface{}) (*models.Tenant, error) {
	var t models.Tenant
	var domain, planID sql.NullString
	var trial sql.NullTime
	var settings []byte
	dest := []interface{}{&t.ID, &t.Name, &t.Slug, &domain, &planID, &t.Status, &trial, &settings, &t.CreatedAt, &t.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	t.Domain = strPtr(domain)
	t.PlanID = strPtr(planID)
	t.TrialEndsAt = timePtr(trial)
	if err := decodeJSON(settings, &t.Settings); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a tenant
func (r *TenantRepository) Create(ctx context.Context, t *models.Tenant) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, name, slug, domain, plan_id, status, trial_ends_at, settings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableTenant)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, t.ID, t.Name, t.Slug, nullable(t.Domain),
		nullable(t.PlanID), t.Status, nullableTime(t.TrialEndsAt), mustJSON(t.Settings))
	return err
}

// GetByID returns nil when the tenant does not exist
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := fmt.Sprintf("SELECT %s FROM %s t WHERE t.id = ?", tenantColumns, constants.TableTenant)
	t, err := scanTenant(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetBySlug returns nil when no tenant has the slug
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := fmt.Sprintf("SELECT %s FROM %s t WHERE t.slug = ?", tenantColumns, constants.TableTenant)
	t, err := scanTenant(conn(ctx, r.db).QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// SlugExists checks slug uniqueness
func (r *TenantRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE slug = ?)", constants.TableTenant)
	return exists(ctx, conn(ctx, r.db), query, slug)
}

// TenantFilter narrows the admin tenant list
type TenantFilter struct {
	Search string
	Status string
	Page   int
	Limit  int
}

// List returns tenants with usage counts, newest first
func (r *TenantRepository) List(ctx context.Context, f TenantFilter) ([]models.TenantSummary, int64, error) {
	b := query.From(constants.TableTenant, "t").
		Select(tenantColumns,
			fmt.Sprintf("(SELECT COUNT(*) FROM %s u WHERE u.tenant_id = t.id)", constants.TableUser),
			fmt.Sprintf("(SELECT COUNT(*) FROM %s c WHERE c.tenant_id = t.id)", constants.TableContact),
			fmt.Sprintf("(SELECT COUNT(*) FROM %s d WHERE d.tenant_id = t.id)", constants.TableDeal)).
		Search(f.Search, "name", "slug").
		WhereIf(f.Status != "", "t.status = ?", f.Status)

	total, err := count(ctx, conn(ctx, r.db), b.Count().SQL, b.Count().Params...)
	if err != nil {
		return nil, 0, err
	}

	q := b.OrderBy("t.created_at DESC").Page(f.Page, f.Limit).Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.TenantSummary{}
	for rows.Next() {
		var s models.TenantSummary
		t, err := scanTenant(rows, &s.UserCount, &s.ContactCount, &s.DealCount)
		if err != nil {
			return nil, 0, err
		}
		s.Tenant = *t
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Update applies a partial update of tenant columns
func (r *TenantRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	b := query.Update(constants.TableTenant).SetMap(fields).Where("id = ?", id)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// CreateSubscription inserts a subscription row
func (r *TenantRepository) CreateSubscription(ctx context.Context, s *models.Subscription) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, plan_id, status, current_period_start, current_period_end)
		VALUES (?, ?, ?, ?, ?, ?)`, constants.TableSubscription)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, s.ID, s.TenantID, s.PlanID, s.Status,
		s.CurrentPeriodStart, s.CurrentPeriodEnd)
	return err
}

// ReplaceSubscription updates the tenant's subscription or creates one
func (r *TenantRepository) ReplaceSubscription(ctx context.Context, s *models.Subscription) error {
	query := fmt.Sprintf(`UPDATE %s SET plan_id = ?, status = ?, current_period_start = ?, current_period_end = ?
		WHERE tenant_id = ?`, constants.TableSubscription)
	n, err := rowsAffected(conn(ctx, r.db).ExecContext(ctx, query, s.PlanID, s.Status,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.TenantID))
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return r.CreateSubscription(ctx, s)
}

// GetSubscription returns the tenant's subscription or nil
func (r *TenantRepository) GetSubscription(ctx context.Context, tenantID string) (*models.Subscription, error) {
	query := fmt.Sprintf(`SELECT id, tenant_id, plan_id, status, current_period_start, current_period_end, created_at
		FROM %s WHERE tenant_id = ? ORDER BY created_at DESC LIMIT 1`, constants.TableSubscription)
	var s models.Subscription
	err := conn(ctx, r.db).QueryRowContext(ctx, query, tenantID).Scan(&s.ID, &s.TenantID, &s.PlanID, &s.Status,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Count returns the number of tenants, optionally by status
func (r *TenantRepository) Count(ctx context.Context, status string) (int64, error) {
	b := query.From(constants.TableTenant, "").WhereIf(status != "", "status = ?", status).Count()
	return count(ctx, conn(ctx, r.db), b.SQL, b.Params...)
}
