package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/internal/metrics"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// AuditService writes and lists audit entries
type AuditService struct {
	repo        *persistence.AuditRepository
	permissions *PermissionService
	metrics     *metrics.Metrics
}

var _ ports.Auditor = (*AuditService)(nil)

func NewAuditService(repo *persistence.AuditRepository, permissions *PermissionService, m *metrics.Metrics) *AuditService {
	return &AuditService{repo: repo, permissions: permissions, metrics: m}
}

// Record stores the entry. Failures are logged and counted, never returned.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = utils.GenerateID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	meta := RequestMetaFrom(ctx)
	if entry.IPAddress == nil {
		entry.IPAddress = stringPtr(meta.IP)
	}
	if entry.UserAgent == nil {
		entry.UserAgent = stringPtr(meta.UserAgent)
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		glog.Errorf("Failed to write audit entry %s %s: %v", entry.Action, entry.Resource, err)
		if s.metrics != nil {
			s.metrics.AuditWriteFailures.Inc()
		}
	}
}

// AuditQuery is the filter accepted by List
type AuditQuery struct {
	UserID    string
	TenantID  string
	Action    string
	Resource  string
	StartDate *time.Time
	EndDate   *time.Time
	Page      utils.Pagination
}

// List returns audit entries. Tenant admins only see their own tenant.
func (s *AuditService) List(ctx context.Context, user *auth.UserSession, q AuditQuery) ([]models.AuditLog, utils.Pagination, error) {
	if user == nil || !s.permissions.HasSystemPermission(user.Role, constants.PermViewAuditLogs) {
		return nil, q.Page, errors.Forbidden("Insufficient permissions to view audit logs")
	}

	tenantID := q.TenantID
	if user.Role == constants.RoleTenantAdmin {
		var err error
		if tenantID, err = requireTenant(user); err != nil {
			return nil, q.Page, err
		}
	}

	logs, total, err := s.repo.List(ctx, persistence.AuditFilter{
		TenantID:  tenantID,
		UserID:    q.UserID,
		Action:    q.Action,
		Resource:  q.Resource,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Page:      q.Page.Page,
		Limit:     q.Page.Limit,
	})
	if err != nil {
		return nil, q.Page, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, q.Page.WithTotal(total), nil
}
