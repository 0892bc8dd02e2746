package models

import (
	"time"
)

// WhatsAppIntegration connects a tenant to a WhatsApp Business phone number
type WhatsAppIntegration struct {
	ID                string    `json:"id"`
	TenantID          string    `json:"tenantId"`
	Name              string    `json:"name"`
	PhoneNumber       string    `json:"phoneNumber"`
	PhoneNumberID     string    `json:"phoneNumberId"`
	BusinessAccountID *string   `json:"businessAccountId"`
	AccessToken       string    `json:"-"` // encrypted at rest, never serialised
	VerifyToken       string    `json:"verifyToken"`
	WebhookURL        *string   `json:"webhookUrl"`
	Status            string    `json:"status"`
	IsActive          bool      `json:"isActive"`
	CreatedBy         *string   `json:"createdBy"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`

	ConversationCount int64 `json:"conversationCount"`
}

// WhatsAppConversation is a thread with one customer phone
type WhatsAppConversation struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenantId"`
	IntegrationID string     `json:"integrationId"`
	CustomerPhone string     `json:"customerPhone"`
	CustomerName  *string    `json:"customerName"`
	ContactID     *string    `json:"contactId"`
	Status        string     `json:"status"`
	UnreadCount   int        `json:"unreadCount"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time  `json:"createdAt"`

	Contact     *Ref             `json:"contact,omitempty"`
	LastMessage *WhatsAppMessage `json:"lastMessage,omitempty"`
}

// WhatsAppMessage is one inbound or outbound message
type WhatsAppMessage struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	WAMessageID    string     `json:"waMessageId"`
	Direction      string     `json:"direction"`
	Type           string     `json:"type"`
	Content        *string    `json:"content"`
	MediaURL       *string    `json:"mediaUrl"`
	Status         string     `json:"status"`
	SentAt         time.Time  `json:"sentAt"`
	DeliveredAt    *time.Time `json:"deliveredAt"`
	ReadAt         *time.Time `json:"readAt"`
	ErrorMessage   *string    `json:"errorMessage"`
}
