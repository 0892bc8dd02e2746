package models

import (
	"time"
)

// PlanFeatures holds numeric limits (-1 unlimited) and descriptive strings
// such as storage and support.
type PlanFeatures map[string]interface{}

// Plan is a billing tier
type Plan struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"` // FREE, NORMAL, PREMIUM, ELITE
	DisplayName string       `json:"displayName"`
	Description *string      `json:"description,omitempty"`
	Price       int64        `json:"price"`       // cents per month
	YearlyPrice int64        `json:"yearlyPrice"` // cents per year
	Features    PlanFeatures `json:"features"`
	IsActive    bool         `json:"isActive"`
	SortOrder   int          `json:"sortOrder"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// IsFree reports whether the plan costs nothing
func (p *Plan) IsFree() bool {
	return p.Price <= 0
}

// Tenant is an isolated customer account
type Tenant struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Slug        string                 `json:"slug"`
	Domain      *string                `json:"domain,omitempty"`
	PlanID      *string                `json:"planId,omitempty"`
	Status      string                 `json:"status"`
	TrialEndsAt *time.Time             `json:"trialEndsAt,omitempty"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`

	Plan *Plan `json:"plan,omitempty"`
}

// Subscription tracks a tenant's current billing period
type Subscription struct {
	ID                 string    `json:"id"`
	TenantID           string    `json:"tenantId"`
	PlanID             string    `json:"planId"`
	Status             string    `json:"status"`
	CurrentPeriodStart time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time `json:"currentPeriodEnd"`
	CreatedAt          time.Time `json:"createdAt"`
}

// TenantSummary is a tenant row with usage counts for the admin console
type TenantSummary struct {
	Tenant
	UserCount    int64 `json:"userCount"`
	ContactCount int64 `json:"contactCount"`
	DealCount    int64 `json:"dealCount"`
}
