package services

import (
	"context"
	"sort"

	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

type requestMetaKey struct{}

// RequestMeta carries the caller's network identity for audit and session rows
type RequestMeta struct {
	IP        string
	UserAgent string
}

// WithRequestMeta attaches the caller's IP and user agent to ctx
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, RequestMeta{IP: ip, UserAgent: userAgent})
}

// RequestMetaFrom returns the metadata attached by WithRequestMeta, if any
func RequestMetaFrom(ctx context.Context) RequestMeta {
	if m, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return m
	}
	return RequestMeta{}
}

// requireTenant returns the caller's tenant or a TenantRequiredError
func requireTenant(user *auth.UserSession) (string, error) {
	if user == nil {
		return "", errors.NewUnauthorizedError("authentication required")
	}
	if user.TenantID == "" {
		return "", errors.NewTenantRequiredError()
	}
	return user.TenantID, nil
}

func requireRole(user *auth.UserSession, allowed []constants.Role, message string) error {
	if user == nil || !constants.HasRole(user.Role, allowed...) {
		return errors.Forbidden(message)
	}
	return nil
}

// auditEntry builds an audit row for the calling user
func auditEntry(user *auth.UserSession, action, resource, resourceID string, newValues, metadata map[string]interface{}) *models.AuditLog {
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		NewValues: newValues,
		Metadata:  metadata,
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if user != nil {
		uid := user.ID
		entry.UserID = &uid
		if user.TenantID != "" {
			tid := user.TenantID
			entry.TenantID = &tid
		}
	}
	return entry
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// logBestEffort logs a failed side-write that must not fail the request
func logBestEffort(what, id string, err error) {
	glog.Warningf("Best-effort %s for %s failed: %v", what, id, err)
}

// mapKeys returns the sorted keys of m
func mapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
