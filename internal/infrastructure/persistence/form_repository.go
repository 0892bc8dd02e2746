package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/query"
)

const formColumns = "f.id, f.tenant_id, f.title, f.description, f.fields, f.styles, f.button_style, f.submit_text, f.success_message, f.redirect_url, f.is_active, f.embed_code, f.created_by, f.created_at, f.updated_at"

// FormRepository persists forms and their submissions
type FormRepository struct {
	db *sql.DB
}

func NewFormRepository(db *sql.DB) *FormRepository {
	return &FormRepository{db: db}
}

func scanForm(s rowScanner, extra ...interface{}) (*models.Form, error) {
	var f models.Form
	var desc, submitText, successMsg, redirect, embed, createdBy sql.NullString
	var fields, styles, button []byte
	dest := []interface{}{&f.ID, &f.TenantID, &f.Title, &desc, &fields, &styles, &button, &submitText, &successMsg,
		&redirect, &f.IsActive, &embed, &createdBy, &f.CreatedAt, &f.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	f.Description = strPtr(desc)
	f.SubmitText = strPtr(submitText)
	f.SuccessMessage = strPtr(successMsg)
	f.RedirectURL = strPtr(redirect)
	f.EmbedCode = strPtr(embed)
	f.CreatedBy = strPtr(createdBy)
	if err := decodeJSON(fields, &f.Fields); err != nil {
		return nil, err
	}
	if err := decodeJSON(styles, &f.Styles); err != nil {
		return nil, err
	}
	if err := decodeJSON(button, &f.ButtonStyle); err != nil {
		return nil, err
	}
	return &f, nil
}

// List returns the tenant's forms with submission counts, newest first
func (r *FormRepository) List(ctx context.Context, f ListFilter) ([]models.Form, int64, error) {
	b := query.From(constants.TableForm, "f").
		Select(formColumns, fmt.Sprintf("(SELECT COUNT(*) FROM %s fs WHERE fs.form_id = f.id)", constants.TableFormSubmission)).
		ForTenant(f.TenantID).
		Search(f.Search, "title", "description")

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	q := b.OrderBy("f.created_at DESC").Page(f.Page, f.Limit).Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Form{}
	for rows.Next() {
		var n int64
		form, err := scanForm(rows, &n)
		if err != nil {
			return nil, 0, err
		}
		form.SubmissionCount = n
		out = append(out, *form)
	}
	return out, total, rows.Err()
}

// GetByID returns the tenant's form or nil
func (r *FormRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Form, error) {
	query := fmt.Sprintf("SELECT %s FROM %s f WHERE f.id = ? AND f.tenant_id = ?", formColumns, constants.TableForm)
	f, err := scanForm(conn(ctx, r.db).QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// GetActive returns an active form regardless of tenant, for public endpoints
func (r *FormRepository) GetActive(ctx context.Context, id string) (*models.Form, error) {
	query := fmt.Sprintf("SELECT %s FROM %s f WHERE f.id = ? AND f.is_active = TRUE", formColumns, constants.TableForm)
	f, err := scanForm(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// Create inserts a form
func (r *FormRepository) Create(ctx context.Context, f *models.Form) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, title, description, fields, styles, button_style, submit_text,
		success_message, redirect_url, is_active, embed_code, created_by) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableForm)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, f.ID, f.TenantID, f.Title, nullable(f.Description), mustJSON(f.Fields),
		mustJSON(f.Styles), mustJSON(f.ButtonStyle), nullable(f.SubmitText), nullable(f.SuccessMessage),
		nullable(f.RedirectURL), f.IsActive, nullable(f.EmbedCode), nullable(f.CreatedBy))
	return err
}

// Update applies a partial update
func (r *FormRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	b := query.Update(constants.TableForm).SetMap(fields).Where("id = ?", id).Where("tenant_id = ?", tenantID)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// Delete removes a form and its submissions
func (r *FormRepository) Delete(ctx context.Context, tenantID, id string) error {
	subs := fmt.Sprintf("DELETE FROM %s WHERE form_id = ? AND tenant_id = ?", constants.TableFormSubmission)
	if _, err := conn(ctx, r.db).ExecContext(ctx, subs, id, tenantID); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND tenant_id = ?", constants.TableForm)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id, tenantID)
	return err
}

// CountByTenant counts forms for plan enforcement
func (r *FormRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", constants.TableForm)
	return count(ctx, conn(ctx, r.db), query, tenantID)
}

// CreateSubmission stores a public submission
func (r *FormRepository) CreateSubmission(ctx context.Context, s *models.FormSubmission) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, form_id, data, contact_id, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, constants.TableFormSubmission)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, s.ID, s.TenantID, s.FormID, mustJSON(s.Data),
		nullable(s.ContactID), nullable(s.IPAddress), nullable(s.UserAgent))
	return err
}

// LinkSubmissionContact records the contact a submission produced
func (r *FormRepository) LinkSubmissionContact(ctx context.Context, submissionID, contactID string) error {
	query := fmt.Sprintf("UPDATE %s SET contact_id = ? WHERE id = ?", constants.TableFormSubmission)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, contactID, submissionID)
	return err
}

// SubmissionFilter narrows submission listings
type SubmissionFilter struct {
	TenantID string
	FormID   string
	Page     int
	Limit    int
}

// ListSubmissions returns the tenant's submissions, newest first
func (r *FormRepository) ListSubmissions(ctx context.Context, f SubmissionFilter) ([]models.FormSubmission, int64, error) {
	b := query.From(constants.TableFormSubmission, "fs").
		Select("fs.id, fs.tenant_id, fs.form_id, fs.data, fs.contact_id, fs.ip_address, fs.user_agent, fs.created_at, f.title").
		Join(fmt.Sprintf("JOIN %s f ON f.id = fs.form_id", constants.TableForm)).
		ForTenant(f.TenantID).
		WhereIf(f.FormID != "", "fs.form_id = ?", f.FormID)

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	q := b.OrderBy("fs.created_at DESC").Page(f.Page, f.Limit).Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.FormSubmission{}
	for rows.Next() {
		var s models.FormSubmission
		var data []byte
		var contactID, ip, ua sql.NullString
		var title string
		if err := rows.Scan(&s.ID, &s.TenantID, &s.FormID, &data, &contactID, &ip, &ua, &s.CreatedAt, &title); err != nil {
			return nil, 0, err
		}
		s.ContactID = strPtr(contactID)
		s.IPAddress = strPtr(ip)
		s.UserAgent = strPtr(ua)
		s.Form = &models.Ref{ID: s.FormID, Name: title}
		if err := decodeJSON(data, &s.Data); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
