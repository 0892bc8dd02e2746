package models

import (
	"time"
)

// AuditLog is an append-only record of a mutating action
type AuditLog struct {
	ID         string                 `json:"id"`
	TenantID   *string                `json:"tenantId"`
	UserID     *string                `json:"userId"`
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID *string                `json:"resourceId"`
	OldValues  map[string]interface{} `json:"oldValues,omitempty"`
	NewValues  map[string]interface{} `json:"newValues,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	IPAddress  *string                `json:"ipAddress"`
	UserAgent  *string                `json:"userAgent"`
	CreatedAt  time.Time              `json:"createdAt"`

	User   *Ref `json:"user,omitempty"`
	Tenant *Ref `json:"tenant,omitempty"`
}
