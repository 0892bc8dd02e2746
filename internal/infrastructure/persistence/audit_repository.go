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

// AuditRepository appends and queries audit log rows
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an entry
func (r *AuditRepository) Create(ctx context.Context, l *models.AuditLog) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, user_id, action, resource, resource_id, old_values, new_values,
		metadata, ip_address, user_agent, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableAuditLog)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, l.ID, nullable(l.TenantID), nullable(l.UserID), l.Action, l.Resource,
		nullable(l.ResourceID), mustJSON(l.OldValues), mustJSON(l.NewValues), mustJSON(l.Metadata),
		nullable(l.IPAddress), nullable(l.UserAgent), l.CreatedAt)
	return err
}

// AuditFilter narrows the audit log listing
type AuditFilter struct {
	TenantID  string
	UserID    string
	Action    string
	Resource  string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// List returns entries newest first with user and tenant names
func (r *AuditRepository) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, int64, error) {
	b := query.From(constants.TableAuditLog, "al").
		Select("al.id, al.tenant_id, al.user_id, al.action, al.resource, al.resource_id, al.old_values, al.new_values, al.metadata, al.ip_address, al.user_agent, al.created_at, u.name, t.name").
		Join(fmt.Sprintf("LEFT JOIN %s u ON u.id = al.user_id", constants.TableUser)).
		Join(fmt.Sprintf("LEFT JOIN %s t ON t.id = al.tenant_id", constants.TableTenant)).
		WhereIf(f.TenantID != "", "al.tenant_id = ?", f.TenantID).
		WhereIf(f.UserID != "", "al.user_id = ?", f.UserID).
		WhereIf(f.Action != "", "al.action = ?", f.Action).
		WhereIf(f.Resource != "", "al.resource = ?", f.Resource).
		WhereIf(f.StartDate != nil, "al.created_at >= ?", nullableTime(f.StartDate)).
		WhereIf(f.EndDate != nil, "al.created_at <= ?", nullableTime(f.EndDate))

	c := b.Count()
	total, err := count(ctx, conn(ctx, r.db), c.SQL, c.Params...)
	if err != nil {
		return nil, 0, err
	}

	q := b.OrderBy("al.created_at DESC").Page(f.Page, f.Limit).Build()
	rows, err := conn(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		var tenantID, userID, resourceID, ip, ua, userName, tenantName sql.NullString
		var oldValues, newValues, metadata []byte
		if err := rows.Scan(&l.ID, &tenantID, &userID, &l.Action, &l.Resource, &resourceID, &oldValues, &newValues,
			&metadata, &ip, &ua, &l.CreatedAt, &userName, &tenantName); err != nil {
			return nil, 0, err
		}
		l.TenantID = strPtr(tenantID)
		l.UserID = strPtr(userID)
		l.ResourceID = strPtr(resourceID)
		l.IPAddress = strPtr(ip)
		l.UserAgent = strPtr(ua)
		if l.UserID != nil && userName.Valid {
			l.User = &models.Ref{ID: *l.UserID, Name: userName.String}
		}
		if l.TenantID != nil && tenantName.Valid {
			l.Tenant = &models.Ref{ID: *l.TenantID, Name: tenantName.String}
		}
		for _, col := range []struct {
			raw []byte
			dst *map[string]interface{}
		}{{oldValues, &l.OldValues}, {newValues, &l.NewValues}, {metadata, &l.Metadata}} {
			if err := decodeJSON(col.raw, col.dst); err != nil {
				return nil, 0, err
			}
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}
