package models

import (
	"time"

	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// User is an account that can sign in
type User struct {
	ID          string         `json:"id"`
	TenantID    *string        `json:"tenantId"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Password    string         `json:"-"`
	Role        constants.Role `json:"role"`
	IsActive    bool           `json:"isActive"`
	LastLoginAt *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`

	Tenant *Tenant `json:"tenant,omitempty"`
}

// TenantIDValue returns the tenant id or ""
func (u *User) TenantIDValue() string {
	if u.TenantID == nil {
		return ""
	}
	return *u.TenantID
}

// Session is a persisted login keyed by the token JTI
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ExpiresAt    time.Time `json:"expiresAt"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	IsRevoked    bool      `json:"isRevoked"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
}
