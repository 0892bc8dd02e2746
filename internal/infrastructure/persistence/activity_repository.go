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

const activityColumns = "a.id, a.tenant_id, a.type, a.title, a.description, a.scheduled_at, a.duration, a.is_completed, a.completed_at, a.user_id, a.contact_id, a.company_id, a.deal_id, a.created_at, a.updated_at"

// ActivityRepository persists calls, meetings, tasks and notes
type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func scanActivity(s rowScanner) (*models.Activity, error) {
	var a models.Activity
	var desc, userID, contactID, companyID, dealID sql.NullString
	var userName, contactFirst, contactLast, companyName, dealName sql.NullString
	var scheduled, completed sql.NullTime
	var duration sql.NullInt64
	if err := s.Scan(&a.ID, &a.TenantID, &a.Type, &a.Title, &desc, &scheduled, &duration, &a.IsCompleted, &completed,
		&userID, &contactID, &companyID, &dealID, &a.CreatedAt, &a.UpdatedAt,
		&userName, &contactFirst, &contactLast, &companyName, &dealName); err != nil {
		return nil, err
	}
	a.Description = strPtr(desc)
	a.ScheduledAt = timePtr(scheduled)
	a.Duration = intPtr(duration)
	a.CompletedAt = timePtr(completed)
	a.UserID = strPtr(userID)
	a.ContactID = strPtr(contactID)
	a.CompanyID = strPtr(companyID)
	a.DealID = strPtr(dealID)
	if a.UserID != nil && userName.Valid {
		a.User = &models.Ref{ID: *a.UserID, Name: userName.String}
	}
	if a.ContactID != nil && contactFirst.Valid {
		name := contactFirst.String
		if contactLast.Valid && contactLast.String != "" {
			name += " " + contactLast.String
		}
		a.Contact = &models.Ref{ID: *a.ContactID, Name: name}
	}
	if a.CompanyID != nil && companyName.Valid {
		a.Company = &models.Ref{ID: *a.CompanyID, Name: companyName.String}
	}
	if a.DealID != nil && dealName.Valid {
		a.Deal = &models.Ref{ID: *a.DealID, Name: dealName.String}
	}
	return &a, nil
}

func (r *ActivityRepository) base() *query.Builder {
	return query.From(constants.TableActivity, "a").
		Select(activityColumns, "u.name", "c.first_name", "c.last_name", "co.name", "d.name").
		Join(fmt.Sprintf("LEFT JOIN %s u ON u.id = a.user_id", constants.TableUser)).
		Join(fmt.Sprintf("LEFT JOIN %s c ON c.id = a.contact_id", constants.TableContact)).
		Join(fmt.Sprintf("LEFT JOIN %s co ON co.id = a.company_id", constants.TableCompany)).
		Join(fmt.Sprintf("LEFT JOIN %s d ON d.id = a.deal_id", constants.TableDeal))
}

// ActivityFilter narrows activity listings. Completed nil means any state.
type ActivityFilter struct {
	TenantID   string
	Search     string
	Type       string
	Completed  *bool
	AssignedTo string
	From       *time.Time
	To         *time.Time
	ContactID  string
	DealID     string
	Page       int
	Limit      int
}

// List returns activities ordered by schedule then creation, newest first
func (r *ActivityRepository) List(ctx context.Context, f ActivityFilter) ([]models.Activity, int64, error) {
	b := r.base().
		ForTenant(f.TenantID).
		WhereIf(f.Type != "", "a.type = ?", f.Type).
		WhereIf(f.Completed != nil, "a.is_completed = ?", boolValue(f.Completed)).
		WhereIf(f.AssignedTo != "", "a.user_id = ?", f.AssignedTo).
		WhereIf(f.From != nil, "a.scheduled_at >= ?", timeValue(f.From)).
		WhereIf(f.To != nil, "a.scheduled_at < ?", timeValue(f.To)).
		WhereIf(f.ContactID != "", "a.contact_id = ?", f.ContactID).
		WhereIf(f.DealID != "", "a.deal_id = ?", f.DealID).
		Search(f.Search, "title", "description")

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	b = b.OrderBy("a.scheduled_at DESC, a.created_at DESC")
	if f.Limit > 0 {
		b = b.Page(f.Page, f.Limit)
	}
	q := b.Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

func boolValue(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return *b
}

func timeValue(t *time.Time) interface{} {
	return nullableTime(t)
}

// GetByID returns the tenant's activity or nil
func (r *ActivityRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Activity, error) {
	q := r.base().ForTenant(tenantID).Where("a.id = ?", id).Build()
	a, err := scanActivity(conn(ctx, r.db).QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// Create inserts an activity
func (r *ActivityRepository) Create(ctx context.Context, a *models.Activity) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, type, title, description, scheduled_at, duration, is_completed,
		completed_at, user_id, contact_id, company_id, deal_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableActivity)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, a.ID, a.TenantID, a.Type, a.Title, nullable(a.Description),
		nullableTime(a.ScheduledAt), nullableInt(a.Duration), a.IsCompleted, nullableTime(a.CompletedAt),
		nullable(a.UserID), nullable(a.ContactID), nullable(a.CompanyID), nullable(a.DealID))
	return err
}

// Update applies a partial update of activity columns
func (r *ActivityRepository) Update(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	b := query.Update(constants.TableActivity).SetMap(fields).Where("id = ?", id).Where("tenant_id = ?", tenantID)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// Delete removes an activity
func (r *ActivityRepository) Delete(ctx context.Context, tenantID, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND tenant_id = ?", constants.TableActivity)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id, tenantID)
	return err
}

// CountOwned returns how many of ids belong to the tenant
func (r *ActivityRepository) CountOwned(ctx context.Context, tenantID string, ids []string) (int64, error) {
	q := query.From(constants.TableActivity, "").Where("tenant_id = ?", tenantID).WhereIn("id", ids).Count()
	return count(ctx, conn(ctx, r.db), q.SQL, q.Params...)
}

// Bulk applies complete, incomplete or delete to every id as one statement
func (r *ActivityRepository) Bulk(ctx context.Context, tenantID string, ids []string, action string, at time.Time) (int64, error) {
	var b *query.Builder
	switch action {
	case constants.BulkActionComplete:
		b = query.Update(constants.TableActivity).Set("is_completed", true).Set("completed_at", at)
	case constants.BulkActionIncomplete:
		b = query.Update(constants.TableActivity).Set("is_completed", false).Set("completed_at", nil)
	case constants.BulkActionDelete:
		b = query.Delete(constants.TableActivity)
	default:
		return 0, fmt.Errorf("unsupported bulk action %q", action)
	}
	q := b.Where("tenant_id = ?", tenantID).WhereIn("id", ids).Build()
	return rowsAffected(conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...))
}
