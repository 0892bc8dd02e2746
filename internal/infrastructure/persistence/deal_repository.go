package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/query"
)

const dealColumns = "d.id, d.tenant_id, d.name, d.value, d.stage, d.probability, d.close_date, d.description, d.source, d.tags, d.assigned_to, d.contact_id, d.company_id, d.last_activity, d.created_at, d.updated_at"

// DealRepository persists deals
type DealRepository struct {
	db *sql.DB
}

func NewDealRepository(db *sql.DB) *DealRepository {
	return &DealRepository{db: db}
}

func scanDeal(s rowScanner) (*models.Deal, error) {
	var d models.Deal
	var desc, source, assigned, contactID, companyID sql.NullString
	var contactFirst, contactLast, companyName sql.NullString
	var closeDate, lastActivity sql.NullTime
	var tags []byte
	if err := s.Scan(&d.ID, &d.TenantID, &d.Name, &d.Value, &d.Stage, &d.Probability, &closeDate, &desc, &source, &tags,
		&assigned, &contactID, &companyID, &lastActivity, &d.CreatedAt, &d.UpdatedAt,
		&contactFirst, &contactLast, &companyName); err != nil {
		return nil, err
	}
	d.CloseDate = timePtr(closeDate)
	d.Description = strPtr(desc)
	d.Source = strPtr(source)
	d.AssignedTo = strPtr(assigned)
	d.ContactID = strPtr(contactID)
	d.CompanyID = strPtr(companyID)
	d.LastActivity = timePtr(lastActivity)
	d.Tags = []string{}
	if err := decodeJSON(tags, &d.Tags); err != nil {
		return nil, err
	}
	if d.ContactID != nil && contactFirst.Valid {
		name := contactFirst.String
		if contactLast.Valid && contactLast.String != "" {
			name += " " + contactLast.String
		}
		d.Contact = &models.Ref{ID: *d.ContactID, Name: name}
	}
	if d.CompanyID != nil && companyName.Valid {
		d.Company = &models.Ref{ID: *d.CompanyID, Name: companyName.String}
	}
	return &d, nil
}

func (r *DealRepository) base() *query.Builder {
	return query.From(constants.TableDeal, "d").
		Select(dealColumns, "c.first_name", "c.last_name", "co.name").
		Join(fmt.Sprintf("LEFT JOIN %s c ON c.id = d.contact_id", constants.TableContact)).
		Join(fmt.Sprintf("LEFT JOIN %s co ON co.id = d.company_id", constants.TableCompany))
}

// DealFilter narrows deal listings
type DealFilter struct {
	TenantID string
	Search   string
	Stage    string
	Owner    string // substring of the assignee's name
	Page     int
	Limit    int
}

// List returns the tenant's deals, newest first, with contact and company refs
func (r *DealRepository) List(ctx context.Context, f DealFilter) ([]models.Deal, int64, error) {
	b := r.base().
		ForTenant(f.TenantID).
		WhereIf(f.Stage != "", "d.stage = ?", f.Stage).
		WhereIf(f.Owner != "", fmt.Sprintf("d.assigned_to IN (SELECT id FROM %s WHERE LOWER(name) LIKE ?)", constants.TableUser),
			"%"+strings.ToLower(f.Owner)+"%").
		Search(f.Search, "name", "description", "c.first_name", "c.last_name", "co.name")

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	if f.Limit > 0 {
		b = b.Page(f.Page, f.Limit)
	}
	q := b.OrderBy("d.created_at DESC").Build()
	deals, err := r.query(ctx, q)
	return deals, total, err
}

// ListByContact returns the deals linked to a contact
func (r *DealRepository) ListByContact(ctx context.Context, tenantID, contactID string) ([]models.Deal, error) {
	q := r.base().ForTenant(tenantID).Where("d.contact_id = ?", contactID).OrderBy("d.created_at DESC").Build()
	return r.query(ctx, q)
}

func (r *DealRepository) query(ctx context.Context, q query.QueryResult) ([]models.Deal, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Deal{}
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetByID returns the tenant's deal or nil
func (r *DealRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Deal, error) {
	q := r.base().ForTenant(tenantID).Where("d.id = ?", id).Build()
	d, err := scanDeal(conn(ctx, r.db).QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// ExistsInTenant reports whether the deal belongs to the tenant
func (r *DealRepository) ExistsInTenant(ctx context.Context, tenantID, id string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = ? AND tenant_id = ?)", constants.TableDeal)
	return exists(ctx, conn(ctx, r.db), query, id, tenantID)
}

// Create inserts a deal
func (r *DealRepository) Create(ctx context.Context, d *models.Deal) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, name, value, stage, probability, close_date, description, source,
		tags, assigned_to, contact_id, company_id, last_activity) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableDeal)
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, query, d.ID, d.TenantID, d.Name, d.Value, d.Stage, d.Probability,
		nullableTime(d.CloseDate), nullable(d.Description), nullable(d.Source), mustJSON(tags), nullable(d.AssignedTo),
		nullable(d.ContactID), nullable(d.CompanyID), nullableTime(d.LastActivity))
	return err
}

// Update applies a partial update of deal columns
func (r *DealRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	b := query.Update(constants.TableDeal).SetMap(fields).Where("id = ?", id).Where("tenant_id = ?", tenantID)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// Delete removes a deal and detaches its activities
func (r *DealRepository) Delete(ctx context.Context, tenantID, id string) error {
	detach := fmt.Sprintf("UPDATE %s SET deal_id = NULL WHERE deal_id = ? AND tenant_id = ?", constants.TableActivity)
	if _, err := conn(ctx, r.db).ExecContext(ctx, detach, id, tenantID); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND tenant_id = ?", constants.TableDeal)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id, tenantID)
	return err
}

// CountByTenant counts deals for plan enforcement
func (r *DealRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", constants.TableDeal)
	return count(ctx, conn(ctx, r.db), query, tenantID)
}
