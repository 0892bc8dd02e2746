package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/query"
)

const landingPageColumns = "p.id, p.tenant_id, p.name, p.slug, p.description, p.content, p.css, p.javascript, p.meta_title, p.meta_description, p.meta_keywords, p.custom_domain, p.status, p.published_at, p.published_by, p.created_by, p.created_at, p.updated_at"

// LandingPageRepository persists hosted marketing pages
type LandingPageRepository struct {
	db *sql.DB
}

func NewLandingPageRepository(db *sql.DB) *LandingPageRepository {
	return &LandingPageRepository{db: db}
}

func scanLandingPage(s rowScanner) (*models.LandingPage, error) {
	var p models.LandingPage
	var desc, css, js, metaTitle, metaDesc, metaKeywords, domain, publishedBy, createdBy sql.NullString
	var content []byte
	var published sql.NullTime
	if err := s.Scan(&p.ID, &p.TenantID, &p.Name, &p.Slug, &desc, &content, &css, &js, &metaTitle, &metaDesc,
		&metaKeywords, &domain, &p.Status, &published, &publishedBy, &createdBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = strPtr(desc)
	p.CSS = strPtr(css)
	p.JavaScript = strPtr(js)
	p.MetaTitle = strPtr(metaTitle)
	p.MetaDescription = strPtr(metaDesc)
	p.MetaKeywords = strPtr(metaKeywords)
	p.CustomDomain = strPtr(domain)
	p.PublishedAt = timePtr(published)
	p.PublishedBy = strPtr(publishedBy)
	p.CreatedBy = strPtr(createdBy)
	p.Content = []interface{}{}
	if err := decodeJSON(content, &p.Content); err != nil {
		return nil, err
	}
	return &p, nil
}

// PageFilter narrows landing page listings
type PageFilter struct {
	TenantID string
	Search   string
	Status   string
	Page     int
	Limit    int
}

// List returns the tenant's pages, most recently updated first
func (r *LandingPageRepository) List(ctx context.Context, f PageFilter) ([]models.LandingPage, int64, error) {
	b := query.From(constants.TableLandingPage, "p").
		Select(landingPageColumns).
		ForTenant(f.TenantID).
		WhereIf(f.Status != "", "p.status = ?", f.Status).
		Search(f.Search, "name", "slug", "description")

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	q := b.OrderBy("p.updated_at DESC").Page(f.Page, f.Limit).Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.LandingPage{}
	for rows.Next() {
		p, err := scanLandingPage(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// GetByID returns the tenant's page or nil
func (r *LandingPageRepository) GetByID(ctx context.Context, tenantID, id string) (*models.LandingPage, error) {
	query := fmt.Sprintf("SELECT %s FROM %s p WHERE p.id = ? AND p.tenant_id = ?", landingPageColumns, constants.TableLandingPage)
	p, err := scanLandingPage(conn(ctx, r.db).QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetPublished resolves a published page by tenant slug and page slug
func (r *LandingPageRepository) GetPublished(ctx context.Context, tenantSlug, slug string) (*models.LandingPage, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s p JOIN %s t ON t.id = p.tenant_id
		WHERE t.slug = ? AND p.slug = ? AND p.status = ?`, landingPageColumns, constants.TableLandingPage, constants.TableTenant)
	p, err := scanLandingPage(conn(ctx, r.db).QueryRowContext(ctx, query, tenantSlug, slug, constants.PageStatusPublished))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// SlugExists checks per-tenant slug uniqueness, ignoring excludeID
func (r *LandingPageRepository) SlugExists(ctx context.Context, tenantID, slug, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE tenant_id = ? AND slug = ? AND id != ?)", constants.TableLandingPage)
	return exists(ctx, conn(ctx, r.db), query, tenantID, slug, excludeID)
}

// DomainExists checks global custom domain uniqueness, ignoring excludeID
func (r *LandingPageRepository) DomainExists(ctx context.Context, domain, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE custom_domain = ? AND id != ?)", constants.TableLandingPage)
	return exists(ctx, conn(ctx, r.db), query, domain, excludeID)
}

// Create inserts a page
func (r *LandingPageRepository) Create(ctx context.Context, p *models.LandingPage) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, name, slug, description, content, css, javascript, meta_title,
		meta_description, meta_keywords, custom_domain, status, created_by) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableLandingPage)
	content := p.Content
	if content == nil {
		content = []interface{}{}
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, query, p.ID, p.TenantID, p.Name, p.Slug, nullable(p.Description),
		mustJSON(content), nullable(p.CSS), nullable(p.JavaScript), nullable(p.MetaTitle), nullable(p.MetaDescription),
		nullable(p.MetaKeywords), nullable(p.CustomDomain), p.Status, nullable(p.CreatedBy))
	return err
}

// Update applies a partial update
func (r *LandingPageRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	b := query.Update(constants.TableLandingPage).SetMap(fields).Where("id = ?", id).Where("tenant_id = ?", tenantID)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// Delete removes a page
func (r *LandingPageRepository) Delete(ctx context.Context, tenantID, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND tenant_id = ?", constants.TableLandingPage)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id, tenantID)
	return err
}
