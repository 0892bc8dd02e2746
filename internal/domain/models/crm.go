package models

import (
	"time"
)

// Pipeline groups ordered contact stages
type Pipeline struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	IsDefault bool           `json:"isDefault"`
	CreatedAt time.Time      `json:"createdAt"`
	Stages    []ContactStage `json:"stages"`
}

// ContactStage is a column of a contact pipeline
type ContactStage struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	PipelineID  string    `json:"pipelineId"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Color       string    `json:"color"`
	Order       int       `json:"order"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`

	Contacts     []Contact `json:"contacts,omitempty"`
	ContactCount int64     `json:"contactCount"`
}

// Ref is the minimal embedded view of a related record
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Company is an organisation contacts and deals belong to
type Company struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Industry    *string   `json:"industry,omitempty"`
	Website     *string   `json:"website,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Address     *string   `json:"address,omitempty"`
	Size        *string   `json:"size,omitempty"`
	Revenue     *int64    `json:"revenue,omitempty"` // cents
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	ContactCount int64 `json:"contactCount"`
	DealCount    int64 `json:"dealCount"`
}

// Contact is a person tracked by a tenant
type Contact struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	FirstName    string     `json:"firstName"`
	LastName     *string    `json:"lastName"`
	Email        *string    `json:"email"`
	Phone        *string    `json:"phone"`
	JobTitle     *string    `json:"jobTitle"`
	Status       string     `json:"status"`
	Source       *string    `json:"source"`
	Notes        *string    `json:"notes"`
	LeadScore    int        `json:"leadScore"`
	Tags         []string   `json:"tags"`
	AssignedTo   *string    `json:"assignedTo"`
	CompanyID    *string    `json:"companyId"`
	StageID      *string    `json:"stageId"`
	LastActivity *time.Time `json:"lastActivity"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	Company    *Ref          `json:"company,omitempty"`
	Stage      *ContactStage `json:"stage,omitempty"`
	Deals      []Deal        `json:"deals,omitempty"`
	Activities []Activity    `json:"activities,omitempty"`
}

// FullName joins first and last name
func (c *Contact) FullName() string {
	if c.LastName == nil || *c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + *c.LastName
}

// Deal is a sales opportunity
type Deal struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	Name         string     `json:"name"`
	Value        int64      `json:"value"` // cents
	Stage        string     `json:"stage"`
	Probability  int        `json:"probability"`
	CloseDate    *time.Time `json:"closeDate"`
	Description  *string    `json:"description"`
	Source       *string    `json:"source"`
	Tags         []string   `json:"tags"`
	AssignedTo   *string    `json:"assignedTo"`
	ContactID    *string    `json:"contactId"`
	CompanyID    *string    `json:"companyId"`
	LastActivity *time.Time `json:"lastActivity"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	Contact    *Ref       `json:"contact,omitempty"`
	Company    *Ref       `json:"company,omitempty"`
	Activities []Activity `json:"activities,omitempty"`
}

// Activity is a call, meeting, task or note
type Activity struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	Duration    *int       `json:"duration"`
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt"`
	UserID      *string    `json:"userId"`
	ContactID   *string    `json:"contactId"`
	CompanyID   *string    `json:"companyId"`
	DealID      *string    `json:"dealId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	User    *Ref `json:"user,omitempty"`
	Contact *Ref `json:"contact,omitempty"`
	Company *Ref `json:"company,omitempty"`
	Deal    *Ref `json:"deal,omitempty"`
}
