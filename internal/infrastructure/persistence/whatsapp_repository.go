package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

const (
	integrationColumns  = "i.id, i.tenant_id, i.name, i.phone_number, i.phone_number_id, i.business_account_id, i.access_token, i.verify_token, i.webhook_url, i.status, i.is_active, i.created_by, i.created_at, i.updated_at"
	conversationColumns = "cv.id, cv.tenant_id, cv.integration_id, cv.customer_phone, cv.customer_name, cv.contact_id, cv.status, cv.unread_count, cv.last_message_at, cv.created_at"
	messageColumns      = "m.id, m.conversation_id, m.wa_message_id, m.direction, m.type, m.content, m.media_url, m.status, m.sent_at, m.delivered_at, m.read_at, m.error_message"
)

// WhatsAppRepository persists integrations, conversations and messages
type WhatsAppRepository struct {
	db *sql.DB
}

func NewWhatsAppRepository(db *sql.DB) *WhatsAppRepository {
	return &WhatsAppRepository{db: db}
}

func scanIntegration(s rowScanner, extra ...interface{}) (*models.WhatsAppIntegration, error) {
	var i models.WhatsAppIntegration
	var business, webhook, createdBy sql.NullString
	dest := []interface{}{&i.ID, &i.TenantID, &i.Name, &i.PhoneNumber, &i.PhoneNumberID, &business, &i.AccessToken,
		&i.VerifyToken, &webhook, &i.Status, &i.IsActive, &createdBy, &i.CreatedAt, &i.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	i.BusinessAccountID = strPtr(business)
	i.WebhookURL = strPtr(webhook)
	i.CreatedBy = strPtr(createdBy)
	return &i, nil
}

func scanConversation(s rowScanner, extra ...interface{}) (*models.WhatsAppConversation, error) {
	var c models.WhatsAppConversation
	var name, contactID sql.NullString
	var last sql.NullTime
	dest := []interface{}{&c.ID, &c.TenantID, &c.IntegrationID, &c.CustomerPhone, &name, &contactID, &c.Status,
		&c.UnreadCount, &last, &c.CreatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.CustomerName = strPtr(name)
	c.ContactID = strPtr(contactID)
	c.LastMessageAt = timePtr(last)
	return &c, nil
}

func scanMessage(s rowScanner) (*models.WhatsAppMessage, error) {
	var m models.WhatsAppMessage
	var content, media, errMsg sql.NullString
	var delivered, read sql.NullTime
	if err := s.Scan(&m.ID, &m.ConversationID, &m.WAMessageID, &m.Direction, &m.Type, &content, &media, &m.Status,
		&m.SentAt, &delivered, &read, &errMsg); err != nil {
		return nil, err
	}
	m.Content = strPtr(content)
	m.MediaURL = strPtr(media)
	m.DeliveredAt = timePtr(delivered)
	m.ReadAt = timePtr(read)
	m.ErrorMessage = strPtr(errMsg)
	return &m, nil
}

// ListIntegrations returns the tenant's integrations with conversation counts
func (r *WhatsAppRepository) ListIntegrations(ctx context.Context, tenantID string) ([]models.WhatsAppIntegration, error) {
	query := fmt.Sprintf(`SELECT %s, (SELECT COUNT(*) FROM %s cv WHERE cv.integration_id = i.id)
		FROM %s i WHERE i.tenant_id = ? ORDER BY i.created_at DESC`,
		integrationColumns, constants.TableWhatsAppConversation, constants.TableWhatsAppIntegration)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.WhatsAppIntegration{}
	for rows.Next() {
		var n int64
		i, err := scanIntegration(rows, &n)
		if err != nil {
			return nil, err
		}
		i.ConversationCount = n
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (r *WhatsAppRepository) findIntegration(ctx context.Context, where string, args ...interface{}) (*models.WhatsAppIntegration, error) {
	query := fmt.Sprintf("SELECT %s FROM %s i WHERE %s LIMIT 1", integrationColumns, constants.TableWhatsAppIntegration, where)
	i, err := scanIntegration(conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return i, err
}

// GetIntegration returns the tenant's integration or nil
func (r *WhatsAppRepository) GetIntegration(ctx context.Context, tenantID, id string) (*models.WhatsAppIntegration, error) {
	return r.findIntegration(ctx, "i.id = ? AND i.tenant_id = ?", id, tenantID)
}

// FindByPhoneNumberID resolves the active integration a webhook change belongs to
func (r *WhatsAppRepository) FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.WhatsAppIntegration, error) {
	return r.findIntegration(ctx, "i.phone_number_id = ? AND i.is_active = TRUE", phoneNumberID)
}

// FindByVerifyToken resolves the active integration owning a verify token
func (r *WhatsAppRepository) FindByVerifyToken(ctx context.Context, token string) (*models.WhatsAppIntegration, error) {
	return r.findIntegration(ctx, "i.verify_token = ? AND i.is_active = TRUE", token)
}

// IntegrationExists checks tenant + phone number uniqueness
func (r *WhatsAppRepository) IntegrationExists(ctx context.Context, tenantID, phone string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE tenant_id = ? AND phone_number = ?)", constants.TableWhatsAppIntegration)
	return exists(ctx, conn(ctx, r.db), query, tenantID, phone)
}

// CountIntegrations counts the tenant's integrations for plan enforcement
func (r *WhatsAppRepository) CountIntegrations(ctx context.Context, tenantID string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", constants.TableWhatsAppIntegration)
	return count(ctx, conn(ctx, r.db), query, tenantID)
}

// CreateIntegration inserts an integration; AccessToken must already be encrypted
func (r *WhatsAppRepository) CreateIntegration(ctx context.Context, i *models.WhatsAppIntegration) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, name, phone_number, phone_number_id, business_account_id,
		access_token, verify_token, webhook_url, status, is_active, created_by) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableWhatsAppIntegration)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, i.ID, i.TenantID, i.Name, i.PhoneNumber, i.PhoneNumberID,
		nullable(i.BusinessAccountID), i.AccessToken, i.VerifyToken, nullable(i.WebhookURL), i.Status, i.IsActive,
		nullable(i.CreatedBy))
	return err
}

// FindConversation returns the conversation with a customer phone on an integration, or nil
func (r *WhatsAppRepository) FindConversation(ctx context.Context, integrationID, phone string) (*models.WhatsAppConversation, error) {
	query := fmt.Sprintf("SELECT %s FROM %s cv WHERE cv.integration_id = ? AND cv.customer_phone = ?",
		conversationColumns, constants.TableWhatsAppConversation)
	c, err := scanConversation(conn(ctx, r.db).QueryRowContext(ctx, query, integrationID, phone))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetConversation returns the tenant's conversation or nil
func (r *WhatsAppRepository) GetConversation(ctx context.Context, tenantID, id string) (*models.WhatsAppConversation, error) {
	query := fmt.Sprintf("SELECT %s FROM %s cv WHERE cv.id = ? AND cv.tenant_id = ?",
		conversationColumns, constants.TableWhatsAppConversation)
	c, err := scanConversation(conn(ctx, r.db).QueryRowContext(ctx, query, id, tenantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// CreateConversation inserts a conversation
func (r *WhatsAppRepository) CreateConversation(ctx context.Context, c *models.WhatsAppConversation) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, integration_id, customer_phone, customer_name, contact_id, status,
		unread_count, last_message_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableWhatsAppConversation)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, c.ID, c.TenantID, c.IntegrationID, c.CustomerPhone,
		nullable(c.CustomerName), nullable(c.ContactID), c.Status, c.UnreadCount, nullableTime(c.LastMessageAt))
	return err
}

// RecordInbound bumps unread and last message time, and fills name and contact when known
func (r *WhatsAppRepository) RecordInbound(ctx context.Context, id string, at time.Time, name, contactID *string) error {
	query := fmt.Sprintf(`UPDATE %s SET unread_count = unread_count + 1, last_message_at = ?,
		customer_name = COALESCE(?, customer_name), contact_id = COALESCE(?, contact_id) WHERE id = ?`,
		constants.TableWhatsAppConversation)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, at, nullable(name), nullable(contactID), id)
	return err
}

// MarkRead resets the unread counter
func (r *WhatsAppRepository) MarkRead(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET unread_count = 0 WHERE id = ?", constants.TableWhatsAppConversation)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	return err
}

// ListConversations returns ACTIVE conversations of an integration, unread first
func (r *WhatsAppRepository) ListConversations(ctx context.Context, tenantID, integrationID string) ([]models.WhatsAppConversation, error) {
	query := fmt.Sprintf(`SELECT %s, c.first_name, c.last_name FROM %s cv
		LEFT JOIN %s c ON c.id = cv.contact_id
		WHERE cv.tenant_id = ? AND cv.integration_id = ? AND cv.status = ?
		ORDER BY cv.unread_count DESC, cv.last_message_at DESC, cv.created_at DESC`,
		conversationColumns, constants.TableWhatsAppConversation, constants.TableContact)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, tenantID, integrationID, constants.ConversationActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.WhatsAppConversation{}
	for rows.Next() {
		var first, last sql.NullString
		c, err := scanConversation(rows, &first, &last)
		if err != nil {
			return nil, err
		}
		if c.ContactID != nil && first.Valid {
			name := first.String
			if last.Valid && last.String != "" {
				name += " " + last.String
			}
			c.Contact = &models.Ref{ID: *c.ContactID, Name: name}
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		msgs, err := r.listMessages(ctx, out[i].ID, "m.sent_at DESC", 1)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			out[i].LastMessage = &msgs[0]
		}
	}
	return out, nil
}

// CreateMessage inserts a message
func (r *WhatsAppRepository) CreateMessage(ctx context.Context, m *models.WhatsAppMessage) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, conversation_id, wa_message_id, direction, type, content, media_url, status, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableWhatsAppMessage)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, m.ID, m.ConversationID, m.WAMessageID, m.Direction, m.Type,
		nullable(m.Content), nullable(m.MediaURL), m.Status, m.SentAt)
	return err
}

// UpdateMessageStatus applies a delivery receipt to the message with the WhatsApp id
func (r *WhatsAppRepository) UpdateMessageStatus(ctx context.Context, waMessageID, status string, at time.Time, errMsg *string) (int64, error) {
	fields := "status = ?"
	args := []interface{}{status}
	switch status {
	case constants.MessageDelivered:
		fields += ", delivered_at = ?"
		args = append(args, at)
	case constants.MessageRead:
		fields += ", read_at = ?"
		args = append(args, at)
	case constants.MessageFailed:
		fields += ", error_message = ?"
		args = append(args, nullable(errMsg))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE wa_message_id = ?", constants.TableWhatsAppMessage, fields)
	args = append(args, waMessageID)
	return rowsAffected(conn(ctx, r.db).ExecContext(ctx, query, args...))
}

// ListMessages returns a conversation's messages oldest first
func (r *WhatsAppRepository) ListMessages(ctx context.Context, conversationID string) ([]models.WhatsAppMessage, error) {
	return r.listMessages(ctx, conversationID, "m.sent_at ASC", 0)
}

func (r *WhatsAppRepository) listMessages(ctx context.Context, conversationID, order string, limit int) ([]models.WhatsAppMessage, error) {
	query := fmt.Sprintf("SELECT %s FROM %s m WHERE m.conversation_id = ? ORDER BY %s", messageColumns, constants.TableWhatsAppMessage, order)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.WhatsAppMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
