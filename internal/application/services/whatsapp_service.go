package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/tidwall/gjson"

	"github.com/nexuscrm/tenantcrm/internal/domain/events"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/crypto"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

const verifyTokenBytes = 32

// webhookStatuses maps delivery receipt states to stored message statuses
var webhookStatuses = map[string]string{
	"sent":      constants.MessageSent,
	"delivered": constants.MessageDelivered,
	"read":      constants.MessageRead,
	"failed":    constants.MessageFailed,
}

// WhatsAppService manages WhatsApp Business integrations and ingests their webhooks
type WhatsAppService struct {
	repo      *persistence.WhatsAppRepository
	contacts  *persistence.ContactRepository
	secrets   *crypto.SecretBox
	limits    ports.LimitChecker
	events    ports.EventPublisher
	auditor   ports.Auditor
	appSecret string
	baseURL   string
}

func NewWhatsAppService(repo *persistence.WhatsAppRepository, contacts *persistence.ContactRepository, secrets *crypto.SecretBox,
	limits ports.LimitChecker, events ports.EventPublisher, auditor ports.Auditor, appSecret, baseURL string) *WhatsAppService {
	return &WhatsAppService{
		repo:      repo,
		contacts:  contacts,
		secrets:   secrets,
		limits:    limits,
		events:    events,
		auditor:   auditor,
		appSecret: appSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// IntegrationInput is the payload that connects a phone number
type IntegrationInput struct {
	Name              string `json:"name"`
	PhoneNumber       string `json:"phoneNumber"`
	PhoneNumberID     string `json:"phoneNumberId"`
	BusinessAccountID string `json:"businessAccountId"`
	AccessToken       string `json:"accessToken"`
}

// Integrations returns the tenant's integrations with conversation counts
func (s *WhatsAppService) Integrations(ctx context.Context, user *auth.UserSession) ([]models.WhatsAppIntegration, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListIntegrations(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	return list, nil
}

// CreateIntegration stores an integration with its access token encrypted and
// a fresh webhook verify token
func (s *WhatsAppService) CreateIntegration(ctx context.Context, user *auth.UserSession, in IntegrationInput) (*models.WhatsAppIntegration, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if err := requireRole(user, constants.MarketingManagerRoles, "Insufficient permissions"); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.PhoneNumberID = strings.TrimSpace(in.PhoneNumberID)
	if in.Name == "" || in.PhoneNumber == "" || in.PhoneNumberID == "" || in.AccessToken == "" {
		return nil, errors.BadRequest("Missing required fields")
	}
	if err := s.limits.EnsureWithinLimit(ctx, tenantID, constants.LimitIntegrations, 1); err != nil {
		return nil, err
	}
	taken, err := s.repo.IntegrationExists(ctx, tenantID, in.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check integration: %w", err)
	}
	if taken {
		return nil, errors.BadRequest("A WhatsApp integration with this phone number already exists")
	}

	if s.secrets == nil {
		return nil, errors.NewInternalError("credential encryption is not configured", nil)
	}
	sealed, err := s.secrets.Encrypt(in.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	verify, err := crypto.RandomToken(verifyTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate verify token: %w", err)
	}

	now := time.Now().UTC()
	webhook := s.baseURL + "/api/whatsapp/webhook"
	integration := &models.WhatsAppIntegration{
		ID:                utils.GenerateID(),
		TenantID:          tenantID,
		Name:              in.Name,
		PhoneNumber:       in.PhoneNumber,
		PhoneNumberID:     in.PhoneNumberID,
		BusinessAccountID: stringPtr(strings.TrimSpace(in.BusinessAccountID)),
		AccessToken:       sealed,
		VerifyToken:       verify,
		WebhookURL:        &webhook,
		Status:            constants.IntegrationActive,
		IsActive:          true,
		CreatedBy:         &user.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.CreateIntegration(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to create integration: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditIntegrationCreate, constants.ResourceIntegration, integration.ID,
		map[string]interface{}{"name": integration.Name, "phoneNumber": integration.PhoneNumber}, nil))
	return integration, nil
}

// VerifyWebhook answers Meta's subscription handshake. ok is false unless the
// mode is subscribe and the token belongs to an active integration.
func (s *WhatsAppService) VerifyWebhook(ctx context.Context, mode, token, challenge string) (string, bool, error) {
	if mode != "subscribe" || token == "" {
		return "", false, nil
	}
	integration, err := s.repo.FindByVerifyToken(ctx, token)
	if err != nil {
		return "", false, fmt.Errorf("failed to verify webhook: %w", err)
	}
	if integration == nil {
		return "", false, nil
	}
	glog.Infof("WhatsApp webhook verified for %s", integration.PhoneNumber)
	return challenge, true, nil
}

// HandleWebhook checks the payload signature when an app secret is configured
// and ingests every "messages" change. Individual item failures are logged.
func (s *WhatsAppService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if s.appSecret != "" && !crypto.VerifySHA256(s.appSecret, body, signature) {
		return errors.Forbidden("Invalid signature")
	}
	if !gjson.ValidBytes(body) {
		return errors.BadRequest("Invalid webhook payload")
	}

	gjson.GetBytes(body, "entry").ForEach(func(_, entry gjson.Result) bool {
		entry.Get("changes").ForEach(func(_, change gjson.Result) bool {
			if change.Get("field").String() == "messages" {
				s.processChange(ctx, change.Get("value"))
			}
			return true
		})
		return true
	})
	return nil
}

func (s *WhatsAppService) processChange(ctx context.Context, value gjson.Result) {
	phoneNumberID := value.Get("metadata.phone_number_id").String()
	if phoneNumberID == "" {
		glog.Warning("WhatsApp webhook: missing phone_number_id")
		return
	}
	integration, err := s.repo.FindByPhoneNumberID(ctx, phoneNumberID)
	if err != nil {
		glog.Errorf("WhatsApp webhook: failed to resolve integration %s: %v", phoneNumberID, err)
		return
	}
	if integration == nil {
		glog.Warningf("WhatsApp webhook: no active integration for phone_number_id %s", phoneNumberID)
		return
	}

	contacts := value.Get("contacts")
	value.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		if err := s.processInbound(ctx, integration, msg, contacts); err != nil {
			glog.Errorf("WhatsApp webhook: failed to process message %s: %v", msg.Get("id").String(), err)
		}
		return true
	})
	value.Get("statuses").ForEach(func(_, st gjson.Result) bool {
		if err := s.processStatus(ctx, st); err != nil {
			glog.Errorf("WhatsApp webhook: failed to apply status %s: %v", st.Get("id").String(), err)
		}
		return true
	})
}

// processInbound stores one inbound message on its conversation, creating
// the conversation and a LEAD contact as needed
func (s *WhatsAppService) processInbound(ctx context.Context, integration *models.WhatsAppIntegration, msg, contacts gjson.Result) error {
	from := msg.Get("from").String()
	if from == "" {
		return fmt.Errorf("message without sender")
	}
	var profileName string
	contacts.ForEach(func(_, c gjson.Result) bool {
		if c.Get("wa_id").String() == from {
			profileName = strings.TrimSpace(c.Get("profile.name").String())
			return false
		}
		return true
	})

	conv, err := s.repo.FindConversation(ctx, integration.ID, from)
	if err != nil {
		return err
	}
	if conv == nil {
		existing, err := s.contacts.FindByPhone(ctx, integration.TenantID, from)
		if err != nil {
			return err
		}
		conv = &models.WhatsAppConversation{
			ID:            utils.GenerateID(),
			TenantID:      integration.TenantID,
			IntegrationID: integration.ID,
			CustomerPhone: from,
			CustomerName:  stringPtr(profileName),
			Status:        constants.ConversationActive,
			CreatedAt:     time.Now().UTC(),
		}
		if existing != nil {
			conv.ContactID = &existing.ID
		}
		if err := s.repo.CreateConversation(ctx, conv); err != nil {
			return err
		}
	}

	message := inboundMessage(conv.ID, msg)
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return err
	}

	var contactID *string
	if conv.ContactID == nil && profileName != "" {
		id, err := s.ensureContact(ctx, integration.TenantID, from, profileName)
		if err != nil {
			logBestEffort("whatsapp contact", conv.ID, err)
		} else {
			contactID = &id
			conv.ContactID = &id
		}
	}
	if err := s.repo.RecordInbound(ctx, conv.ID, time.Now().UTC(), stringPtr(profileName), contactID); err != nil {
		return err
	}

	s.events.PublishAsync(events.NewTriggerEvent(constants.TriggerWhatsAppMessageReceived, integration.TenantID,
		constants.EntityWhatsApp, conv.ID, map[string]interface{}{
			"conversationId": conv.ID,
			"integrationId":  integration.ID,
			"phoneNumber":    from,
			"customerName":   profileName,
			"contactId":      derefString(conv.ContactID),
			"messageId":      message.ID,
			"messageType":    message.Type,
			"messageText":    derefString(message.Content),
			"source":         "WhatsApp",
		}))
	return nil
}

// inboundMessage converts a webhook message into a stored row
func inboundMessage(conversationID string, msg gjson.Result) *models.WhatsAppMessage {
	kind := msg.Get("type").String()
	sentAt := time.Now().UTC()
	if ts := msg.Get("timestamp").Int(); ts > 0 {
		sentAt = time.Unix(ts, 0).UTC()
	}
	m := &models.WhatsAppMessage{
		ID:             utils.GenerateID(),
		ConversationID: conversationID,
		WAMessageID:    msg.Get("id").String(),
		Direction:      constants.DirectionInbound,
		Type:           strings.ToUpper(kind),
		Status:         constants.MessageReceived,
		SentAt:         sentAt,
	}
	switch kind {
	case "text":
		m.Content = stringPtr(msg.Get("text.body").String())
	case "image", "video", "audio", "document":
		media := msg.Get(kind)
		m.MediaURL = stringPtr(media.Get("id").String())
		m.Content = stringPtr(media.Get("caption").String())
	case "location":
		m.Content = stringPtr(fmt.Sprintf("Location: %s, %s",
			msg.Get("location.latitude").Raw, msg.Get("location.longitude").Raw))
	}
	return m
}

// ensureContact returns the contact keyed by the WhatsApp placeholder email,
// creating it as a LEAD when missing
func (s *WhatsAppService) ensureContact(ctx context.Context, tenantID, phone, profileName string) (string, error) {
	email := phone + constants.WhatsAppPlaceholder
	first, last := splitName(profileName)

	existing, err := s.contacts.FindByEmail(ctx, tenantID, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, s.contacts.Update(ctx, tenantID, existing.ID, map[string]interface{}{
			"first_name": first,
			"last_name":  stringPtr(last),
			"phone":      phone,
			"updated_at": time.Now().UTC(),
		})
	}

	now := time.Now().UTC()
	contact := &models.Contact{
		ID:           utils.GenerateID(),
		TenantID:     tenantID,
		FirstName:    first,
		LastName:     stringPtr(last),
		Email:        &email,
		Phone:        &phone,
		Status:       constants.ContactStatusLead,
		Source:       stringPtr("WhatsApp"),
		Tags:         []string{},
		LastActivity: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return "", err
	}
	s.events.PublishAsync(contactEvent(constants.TriggerContactCreated, nil, contact, contactEventData(contact)))
	return contact.ID, nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return constants.DefaultContactFirst, ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (s *WhatsAppService) processStatus(ctx context.Context, st gjson.Result) error {
	id := st.Get("id").String()
	status, ok := webhookStatuses[st.Get("status").String()]
	if id == "" || !ok {
		return nil
	}
	at := time.Now().UTC()
	if ts := st.Get("timestamp").Int(); ts > 0 {
		at = time.Unix(ts, 0).UTC()
	}
	var errMsg *string
	if status == constants.MessageFailed {
		msg := st.Get("errors.0.title").String()
		if msg == "" {
			msg = "Message failed"
		}
		errMsg = &msg
	}
	n, err := s.repo.UpdateMessageStatus(ctx, id, status, at, errMsg)
	if err != nil {
		return err
	}
	if n == 0 {
		glog.V(1).Infof("WhatsApp webhook: no message for status update %s", id)
	}
	return nil
}

// Conversations lists the ACTIVE conversations of a tenant-owned integration
func (s *WhatsAppService) Conversations(ctx context.Context, user *auth.UserSession, integrationID string) ([]models.WhatsAppConversation, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if integrationID == "" {
		return nil, errors.BadRequest("Integration ID is required")
	}
	integration, err := s.repo.GetIntegration(ctx, tenantID, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load integration: %w", err)
	}
	if integration == nil {
		return nil, errors.NewNotFoundError("Integration", integrationID)
	}
	list, err := s.repo.ListConversations(ctx, tenantID, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return list, nil
}

// Messages returns a conversation's messages oldest first and marks it read
func (s *WhatsAppService) Messages(ctx context.Context, user *auth.UserSession, conversationID string) ([]models.WhatsAppMessage, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	conv, err := s.repo.GetConversation(ctx, tenantID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return nil, errors.NewNotFoundError("Conversation", conversationID)
	}
	msgs, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if conv.UnreadCount > 0 {
		if err := s.repo.MarkRead(ctx, conv.ID); err != nil {
			logBestEffort("mark read", conv.ID, err)
		}
	}
	return msgs, nil
}
