package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/query"
)

const contactColumns = "c.id, c.tenant_id, c.first_name, c.last_name, c.email, c.phone, c.job_title, c.status, c.source, c.notes, c.lead_score, c.tags, c.assigned_to, c.company_id, c.stage_id, c.last_activity, c.created_at, c.updated_at"

// ContactRepository persists contacts
type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func scanContact(s rowScanner, extra ...interface{}) (*models.Contact, error) {
	var c models.Contact
	var last, email, phone, job, source, notes, assigned, company, stage sql.NullString
	var tags []byte
	var lastActivity sql.NullTime
	dest := []interface{}{&c.ID, &c.TenantID, &c.FirstName, &last, &email, &phone, &job, &c.Status, &source, &notes,
		&c.LeadScore, &tags, &assigned, &company, &stage, &lastActivity, &c.CreatedAt, &c.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.LastName = strPtr(last)
	c.Email = strPtr(email)
	c.Phone = strPtr(phone)
	c.JobTitle = strPtr(job)
	c.Source = strPtr(source)
	c.Notes = strPtr(notes)
	c.AssignedTo = strPtr(assigned)
	c.CompanyID = strPtr(company)
	c.StageID = strPtr(stage)
	c.LastActivity = timePtr(lastActivity)
	c.Tags = []string{}
	if err := decodeJSON(tags, &c.Tags); err != nil {
		return nil, err
	}
	return &c, nil
}

// scanContactWithCompany scans contactColumns followed by co.name
func scanContactWithCompany(s rowScanner, extra ...interface{}) (*models.Contact, error) {
	var companyName sql.NullString
	c, err := scanContact(s, append([]interface{}{&companyName}, extra...)...)
	if err != nil {
		return nil, err
	}
	if c.CompanyID != nil && companyName.Valid {
		c.Company = &models.Ref{ID: *c.CompanyID, Name: companyName.String}
	}
	return c, nil
}

func (r *ContactRepository) companyJoin() string {
	return fmt.Sprintf("LEFT JOIN %s co ON co.id = c.company_id", constants.TableCompany)
}

// ContactFilter narrows contact listings
type ContactFilter struct {
	TenantID string
	Search   string
	Status   string
	Source   string
	Page     int
	Limit    int
}

// List returns the tenant's contacts, newest first, each with its company
func (r *ContactRepository) List(ctx context.Context, f ContactFilter) ([]models.Contact, int64, error) {
	b := query.From(constants.TableContact, "c").
		Select(contactColumns, "co.name").
		Join(r.companyJoin()).
		ForTenant(f.TenantID).
		WhereIf(f.Status != "", "c.status = ?", f.Status).
		WhereIf(f.Source != "", "c.source = ?", f.Source).
		Search(f.Search, "first_name", "last_name", "email", "phone", "co.name")

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	q := b.OrderBy("c.created_at DESC").Page(f.Page, f.Limit).Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Contact{}
	for rows.Next() {
		ct, err := scanContactWithCompany(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *ct)
	}
	return out, total, rows.Err()
}

// GetByID returns the tenant's contact with its company, or nil
func (r *ContactRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Contact, error) {
	query := fmt.Sprintf("SELECT %s, co.name FROM %s c %s WHERE c.id = ? AND c.tenant_id = ?",
		contactColumns, constants.TableContact, r.companyJoin())
	c, err := scanContactWithCompany(conn(ctx, r.db).QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// FindByEmail returns the tenant's contact with the email, or nil
func (r *ContactRepository) FindByEmail(ctx context.Context, tenantID, email string) (*models.Contact, error) {
	query := fmt.Sprintf("SELECT %s FROM %s c WHERE c.tenant_id = ? AND c.email = ? LIMIT 1", contactColumns, constants.TableContact)
	c, err := scanContact(conn(ctx, r.db).QueryRowContext(ctx, query, tenantID, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// FindByPhone returns the tenant's contact with the phone number, or nil
func (r *ContactRepository) FindByPhone(ctx context.Context, tenantID, phone string) (*models.Contact, error) {
	query := fmt.Sprintf("SELECT %s FROM %s c WHERE c.tenant_id = ? AND c.phone = ? LIMIT 1", contactColumns, constants.TableContact)
	c, err := scanContact(conn(ctx, r.db).QueryRowContext(ctx, query, tenantID, phone))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// EmailExists checks per-tenant email uniqueness, ignoring excludeID
func (r *ContactRepository) EmailExists(ctx context.Context, tenantID, email, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE tenant_id = ? AND email = ? AND id != ?)", constants.TableContact)
	return exists(ctx, conn(ctx, r.db), query, tenantID, email, excludeID)
}

// ExistsInTenant reports whether the contact belongs to the tenant
func (r *ContactRepository) ExistsInTenant(ctx context.Context, tenantID, id string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = ? AND tenant_id = ?)", constants.TableContact)
	return exists(ctx, conn(ctx, r.db), query, id, tenantID)
}

// CountOwned returns how many of ids belong to the tenant
func (r *ContactRepository) CountOwned(ctx context.Context, tenantID string, ids []string) (int64, error) {
	q := query.From(constants.TableContact, "").Where("tenant_id = ?", tenantID).WhereIn("id", ids).Count()
	return count(ctx, conn(ctx, r.db), q.SQL, q.Params...)
}

// Create inserts a contact
func (r *ContactRepository) Create(ctx context.Context, c *models.Contact) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, first_name, last_name, email, phone, job_title, status, source, notes,
		lead_score, tags, assigned_to, company_id, stage_id, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableContact)
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, query, c.ID, c.TenantID, c.FirstName, nullable(c.LastName), nullable(c.Email),
		nullable(c.Phone), nullable(c.JobTitle), c.Status, nullable(c.Source), nullable(c.Notes), c.LeadScore,
		mustJSON(tags), nullable(c.AssignedTo), nullable(c.CompanyID), nullable(c.StageID), nullableTime(c.LastActivity))
	return err
}

// Update applies a partial update of contact columns
func (r *ContactRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	b := query.Update(constants.TableContact).SetMap(fields).Where("id = ?", id).Where("tenant_id = ?", tenantID)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// SetTags overwrites the tag list
func (r *ContactRepository) SetTags(ctx context.Context, tenantID, id string, tags []string) error {
	return r.Update(ctx, tenantID, id, map[string]interface{}{"tags": mustJSON(tags)})
}

// BulkSetStage moves every listed contact to the stage in one statement
func (r *ContactRepository) BulkSetStage(ctx context.Context, tenantID string, ids []string, stageID string, at time.Time) (int64, error) {
	q := query.Update(constants.TableContact).
		Set("stage_id", stageID).
		Set("last_activity", at).
		Where("tenant_id = ?", tenantID).
		WhereIn("id", ids).
		Build()
	return rowsAffected(conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...))
}

// Delete removes a contact and detaches records that referenced it
func (r *ContactRepository) Delete(ctx context.Context, tenantID, id string) error {
	for _, table := range []string{constants.TableDeal, constants.TableActivity, constants.TableFormSubmission, constants.TableWhatsAppConversation} {
		query := fmt.Sprintf("UPDATE %s SET contact_id = NULL WHERE contact_id = ? AND tenant_id = ?", table)
		if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, tenantID); err != nil {
			return err
		}
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND tenant_id = ?", constants.TableContact)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id, tenantID)
	return err
}

// ListByStages returns the tenant's contacts in the given stages, newest activity first
func (r *ContactRepository) ListByStages(ctx context.Context, tenantID string, stageIDs []string) (map[string][]models.Contact, error) {
	q := query.From(constants.TableContact, "c").
		Select(contactColumns, "co.name").
		Join(r.companyJoin()).
		ForTenant(tenantID).
		WhereIn("stage_id", stageIDs).
		OrderBy("c.last_activity DESC").
		Build()

	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]models.Contact{}
	for rows.Next() {
		c, err := scanContactWithCompany(rows)
		if err != nil {
			return nil, err
		}
		if c.StageID != nil {
			out[*c.StageID] = append(out[*c.StageID], *c)
		}
	}
	return out, rows.Err()
}

// CountByTenant counts contacts for plan enforcement
func (r *ContactRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", constants.TableContact)
	return count(ctx, conn(ctx, r.db), query, tenantID)
}

// CountActiveSince counts contacts touched after since
func (r *ContactRepository) CountActiveSince(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ? AND last_activity >= ?", constants.TableContact)
	return count(ctx, conn(ctx, r.db), query, tenantID, since)
}
