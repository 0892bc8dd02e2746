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

const (
	emailListColumns  = "l.id, l.tenant_id, l.name, l.description, l.double_opt_in, l.created_by, l.created_at, l.updated_at"
	subscriberColumns = "s.id, s.list_id, s.email, s.first_name, s.last_name, s.status, s.source, s.subscribed_at, s.unsubscribed_at, s.created_at"
)

// EmailRepository persists email lists and their subscribers
type EmailRepository struct {
	db *sql.DB
}

func NewEmailRepository(db *sql.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

func scanEmailList(s rowScanner) (*models.EmailList, error) {
	var l models.EmailList
	var desc, createdBy sql.NullString
	if err := s.Scan(&l.ID, &l.TenantID, &l.Name, &desc, &l.DoubleOptIn, &createdBy, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Description = strPtr(desc)
	l.CreatedBy = strPtr(createdBy)
	return &l, nil
}

func scanSubscriber(s rowScanner) (*models.EmailSubscriber, error) {
	var sub models.EmailSubscriber
	var first, last, source sql.NullString
	var subscribed, unsubscribed sql.NullTime
	if err := s.Scan(&sub.ID, &sub.ListID, &sub.Email, &first, &last, &sub.Status, &source, &subscribed,
		&unsubscribed, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.FirstName = strPtr(first)
	sub.LastName = strPtr(last)
	sub.Source = strPtr(source)
	sub.SubscribedAt = timePtr(subscribed)
	sub.UnsubscribedAt = timePtr(unsubscribed)
	return &sub, nil
}

// ListLists returns the tenant's email lists with subscriber counts by status
func (r *EmailRepository) ListLists(ctx context.Context, tenantID string) ([]models.EmailList, error) {
	query := fmt.Sprintf("SELECT %s FROM %s l WHERE l.tenant_id = ? ORDER BY l.created_at DESC", emailListColumns, constants.TableEmailList)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lists := []models.EmailList{}
	for rows.Next() {
		l, err := scanEmailList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range lists {
		if err := r.fillCounts(ctx, &lists[i]); err != nil {
			return nil, err
		}
	}
	return lists, nil
}

func (r *EmailRepository) fillCounts(ctx context.Context, l *models.EmailList) error {
	query := fmt.Sprintf("SELECT status, COUNT(*) FROM %s WHERE list_id = ? GROUP BY status", constants.TableEmailSubscriber)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, l.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	l.StatusCounts = map[string]int64{}
	l.SubscriberCount = 0
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return err
		}
		l.StatusCounts[status] = n
		l.SubscriberCount += n
	}
	return rows.Err()
}

// GetList returns the tenant's list with counts, or nil
func (r *EmailRepository) GetList(ctx context.Context, tenantID, id string) (*models.EmailList, error) {
	query := fmt.Sprintf("SELECT %s FROM %s l WHERE l.id = ? AND l.tenant_id = ?", emailListColumns, constants.TableEmailList)
	l, err := scanEmailList(conn(ctx, r.db).QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.fillCounts(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// ListNameExists checks per-tenant list name uniqueness, ignoring excludeID
func (r *EmailRepository) ListNameExists(ctx context.Context, tenantID, name, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE tenant_id = ? AND name = ? AND id != ?)", constants.TableEmailList)
	return exists(ctx, conn(ctx, r.db), query, tenantID, name, excludeID)
}

// CreateList inserts an email list
func (r *EmailRepository) CreateList(ctx context.Context, l *models.EmailList) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, name, description, double_opt_in, created_by)
		VALUES (?, ?, ?, ?, ?, ?)`, constants.TableEmailList)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, l.ID, l.TenantID, l.Name, nullable(l.Description), l.DoubleOptIn, nullable(l.CreatedBy))
	return err
}

// UpdateList applies a partial update
func (r *EmailRepository) UpdateList(ctx context.Context, tenantID, id string, fields map[string]interface{}) error {
	b := query.Update(constants.TableEmailList).SetMap(fields).Where("id = ?", id).Where("tenant_id = ?", tenantID)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// DeleteList removes a list and its subscribers
func (r *EmailRepository) DeleteList(ctx context.Context, tenantID, id string) error {
	subs := fmt.Sprintf("DELETE FROM %s WHERE list_id = ?", constants.TableEmailSubscriber)
	if _, err := conn(ctx, r.db).ExecContext(ctx, subs, id); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND tenant_id = ?", constants.TableEmailList)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id, tenantID)
	return err
}

// SubscriberFilter narrows subscriber listings
type SubscriberFilter struct {
	ListID string
	Search string
	Status string
	Page   int
	Limit  int
}

// ListSubscribers returns a list's subscribers, newest first. Limit 0 returns all.
func (r *EmailRepository) ListSubscribers(ctx context.Context, f SubscriberFilter) ([]models.EmailSubscriber, int64, error) {
	b := query.From(constants.TableEmailSubscriber, "s").
		Select(subscriberColumns).
		Where("s.list_id = ?", f.ListID).
		WhereIf(f.Status != "", "s.status = ?", f.Status).
		Search(f.Search, "email", "first_name", "last_name")

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	b = b.OrderBy("s.created_at DESC")
	if f.Limit > 0 {
		b = b.Page(f.Page, f.Limit)
	}
	q := b.Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.EmailSubscriber{}
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

// GetSubscriber returns the list's subscriber or nil
func (r *EmailRepository) GetSubscriber(ctx context.Context, listID, id string) (*models.EmailSubscriber, error) {
	query := fmt.Sprintf("SELECT %s FROM %s s WHERE s.id = ? AND s.list_id = ?", subscriberColumns, constants.TableEmailSubscriber)
	s, err := scanSubscriber(conn(ctx, r.db).QueryRowContext(ctx, query, id, listID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// SubscriberExists checks per-list email uniqueness
func (r *EmailRepository) SubscriberExists(ctx context.Context, listID, email string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE list_id = ? AND email = ?)", constants.TableEmailSubscriber)
	return exists(ctx, conn(ctx, r.db), query, listID, email)
}

// CreateSubscriber inserts a subscriber
func (r *EmailRepository) CreateSubscriber(ctx context.Context, s *models.EmailSubscriber) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, list_id, email, first_name, last_name, status, source, subscribed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableEmailSubscriber)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, s.ID, s.ListID, s.Email, nullable(s.FirstName), nullable(s.LastName),
		s.Status, nullable(s.Source), nullableTime(s.SubscribedAt))
	return err
}

// UpdateSubscriber applies a partial update
func (r *EmailRepository) UpdateSubscriber(ctx context.Context, listID, id string, fields map[string]interface{}) error {
	b := query.Update(constants.TableEmailSubscriber).SetMap(fields).Where("id = ?", id).Where("list_id = ?", listID)
	if !b.HasValues() {
		return nil
	}
	q := b.Build()
	_, err := conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	return err
}

// Unsubscribe marks a subscriber unsubscribed
func (r *EmailRepository) Unsubscribe(ctx context.Context, listID, id string, at time.Time) error {
	return r.UpdateSubscriber(ctx, listID, id, map[string]interface{}{
		"status":          constants.SubscriberUnsubscribed,
		"unsubscribed_at": at,
	})
}

// DeleteSubscribers removes the listed subscribers of a list
func (r *EmailRepository) DeleteSubscribers(ctx context.Context, listID string, ids []string) (int64, error) {
	q := query.Delete(constants.TableEmailSubscriber).Where("list_id = ?", listID).WhereIn("id", ids).Build()
	return rowsAffected(conn(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...))
}
