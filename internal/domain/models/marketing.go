package models

import (
	"time"

	"github.com/nexuscrm/tenantcrm/pkg/validator"
)

// EmailList is a named audience of subscribers
type EmailList struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	DoubleOptIn bool      `json:"doubleOptIn"`
	CreatedBy   *string   `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	SubscriberCount int64            `json:"subscriberCount"`
	StatusCounts    map[string]int64 `json:"statusCounts"`
}

// EmailSubscriber is an address on a list
type EmailSubscriber struct {
	ID             string     `json:"id"`
	ListID         string     `json:"listId"`
	Email          string     `json:"email"`
	FirstName      *string    `json:"firstName"`
	LastName       *string    `json:"lastName"`
	Status         string     `json:"status"`
	Source         *string    `json:"source"`
	SubscribedAt   *time.Time `json:"subscribedAt"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Form is an embeddable lead capture form
type Form struct {
	ID             string                 `json:"id"`
	TenantID       string                 `json:"tenantId"`
	Title          string                 `json:"title"`
	Description    *string                `json:"description"`
	Fields         []validator.FormField  `json:"fields"`
	Styles         map[string]interface{} `json:"styles"`
	ButtonStyle    map[string]interface{} `json:"buttonStyle"`
	SubmitText     *string                `json:"submitText"`
	SuccessMessage *string                `json:"successMessage"`
	RedirectURL    *string                `json:"redirectUrl"`
	IsActive       bool                   `json:"isActive"`
	EmbedCode      *string                `json:"embedCode"`
	CreatedBy      *string                `json:"createdBy"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`

	SubmissionCount int64 `json:"submissionCount"`
}

// PublicForm is the view of a form served to anonymous visitors
type PublicForm struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Description    *string                `json:"description"`
	Fields         []validator.FormField  `json:"fields"`
	Styles         map[string]interface{} `json:"styles"`
	ButtonStyle    map[string]interface{} `json:"buttonStyle"`
	SubmitText     *string                `json:"submitText"`
	SuccessMessage *string                `json:"successMessage"`
	RedirectURL    *string                `json:"redirectUrl"`
}

// FormSubmission is a stored public submission
type FormSubmission struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenantId"`
	FormID    string                 `json:"formId"`
	Data      map[string]interface{} `json:"data"`
	ContactID *string                `json:"contactId"`
	IPAddress *string                `json:"ipAddress"`
	UserAgent *string                `json:"userAgent"`
	CreatedAt time.Time              `json:"createdAt"`

	Form *Ref `json:"form,omitempty"`
}

// LandingPage is a hosted marketing page
type LandingPage struct {
	ID              string        `json:"id"`
	TenantID        string        `json:"tenantId"`
	Name            string        `json:"name"`
	Slug            string        `json:"slug"`
	Description     *string       `json:"description"`
	Content         []interface{} `json:"content"`
	CSS             *string       `json:"css"`
	JavaScript      *string       `json:"javascript"`
	MetaTitle       *string       `json:"metaTitle"`
	MetaDescription *string       `json:"metaDescription"`
	MetaKeywords    *string       `json:"metaKeywords"`
	CustomDomain    *string       `json:"customDomain"`
	Status          string        `json:"status"`
	PublishedAt     *time.Time    `json:"publishedAt"`
	PublishedBy     *string       `json:"publishedBy"`
	CreatedBy       *string       `json:"createdBy"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}
