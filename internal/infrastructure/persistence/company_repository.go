package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/query"
)

const companyColumns = "co.id, co.tenant_id, co.name, co.industry, co.website, co.phone, co.email, co.address, co.size, co.revenue, co.description, co.created_at, co.updated_at"

// CompanyRepository persists companies
type CompanyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func scanCompany(s rowScanner, extra ...interface{}) (*models.Company, error) {
	var c models.Company
	var industry, website, phone, email, address, size, desc sql.NullString
	var revenue sql.NullInt64
	dest := []interface{}{&c.ID, &c.TenantID, &c.Name, &industry, &website, &phone, &email, &address, &size,
		&revenue, &desc, &c.CreatedAt, &c.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.Industry = strPtr(industry)
	c.Website = strPtr(website)
	c.Phone = strPtr(phone)
	c.Email = strPtr(email)
	c.Address = strPtr(address)
	c.Size = strPtr(size)
	c.Revenue = int64Ptr(revenue)
	c.Description = strPtr(desc)
	return &c, nil
}

func companyCounts() []string {
	return []string{
		fmt.Sprintf("(SELECT COUNT(*) FROM %s c WHERE c.company_id = co.id AND c.tenant_id = co.tenant_id)", constants.TableContact),
		fmt.Sprintf("(SELECT COUNT(*) FROM %s d WHERE d.company_id = co.id AND d.tenant_id = co.tenant_id)", constants.TableDeal),
	}
}

// ListFilter is the common paged search filter of tenant lists
type ListFilter struct {
	TenantID string
	Search   string
	Page     int
	Limit    int
}

// List returns the tenant's companies with contact and deal counts
func (r *CompanyRepository) List(ctx context.Context, f ListFilter) ([]models.Company, int64, error) {
	b := query.From(constants.TableCompany, "co").
		Select(append([]string{companyColumns}, companyCounts()...)...).
		ForTenant(f.TenantID).
		Search(f.Search, "name", "industry", "email", "website")

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	q := b.OrderBy("co.created_at DESC").Page(f.Page, f.Limit).Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Company{}
	for rows.Next() {
		var contacts, deals int64
		co, err := scanCompany(rows, &contacts, &deals)
		if err != nil {
			return nil, 0, err
		}
		co.ContactCount, co.DealCount = contacts, deals
		out = append(out, *co)
	}
	return out, total, rows.Err()
}

// GetByID returns the tenant's company with counts, or nil
func (r *CompanyRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Company, error) {
	counts := companyCounts()
	query := fmt.Sprintf("SELECT %s, %s, %s FROM %s co WHERE co.id = ? AND co.tenant_id = ?",
		companyColumns, counts[0], counts[1], constants.TableCompany)
	var contacts, deals int64
	co, err := scanCompany(conn(ctx, r.db).QueryRowContext(ctx, query, id, tenantID), &contacts, &deals)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	co.ContactCount, co.DealCount = contacts, deals
	return co, nil
}

// ExistsInTenant reports whether the company belongs to the tenant
func (r *CompanyRepository) ExistsInTenant(ctx context.Context, tenantID, id string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = ? AND tenant_id = ?)", constants.TableCompany)
	return exists(ctx, conn(ctx, r.db), query, id, tenantID)
}

// NameExists checks per-tenant name uniqueness, ignoring excludeID
func (r *CompanyRepository) NameExists(ctx context.Context, tenantID, name, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE tenant_id = ? AND name = ? AND id != ?)", constants.TableCompany)
	return exists(ctx, conn(ctx, r.db), query, tenantID, name, excludeID)
}

// Create inserts a company
func (r *CompanyRepository) Create(ctx context.Context, c *models.Company) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, name, industry, website, phone, email, address, size, revenue, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableCompany)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, c.ID, c.TenantID, c.Name, nullable(c.Industry), nullable(c.Website),
		nullable(c.Phone), nullable(c.Email), nullable(c.Address), nullable(c.Size), nullableInt64(c.Revenue), nullable(c.Description))
	return err
}

// Update applies a partial update
func (r *CompanyRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	b := query.Update(constants.TableCompany).SetMap(fields).Where("id = ?", id).Where("tenant_id = ?", tenantID)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// Delete removes the company and detaches records that referenced it
func (r *CompanyRepository) Delete(ctx context.Context, tenantID, id string) error {
	for _, table := range []string{constants.TableContact, constants.TableDeal, constants.TableActivity} {
		query := fmt.Sprintf("UPDATE %s SET company_id = NULL WHERE company_id = ? AND tenant_id = ?", table)
		if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, tenantID); err != nil {
			return err
		}
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND tenant_id = ?", constants.TableCompany)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id, tenantID)
	return err
}

// CountByTenant counts companies for plan enforcement
func (r *CompanyRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", constants.TableCompany)
	return count(ctx, conn(ctx, r.db), query, tenantID)
}
