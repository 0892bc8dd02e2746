package rest

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

// maxWebhookBody bounds the webhook payload read into memory
const maxWebhookBody = 1 << 20

// WhatsAppService defines the WhatsApp operations used by WhatsAppHandler
type WhatsAppService interface {
	Integrations(ctx context.Context, user *auth.UserSession) ([]models.WhatsAppIntegration, error)
	CreateIntegration(ctx context.Context, user *auth.UserSession, in services.IntegrationInput) (*models.WhatsAppIntegration, error)
	VerifyWebhook(ctx context.Context, mode, token, challenge string) (string, bool, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	Conversations(ctx context.Context, user *auth.UserSession, integrationID string) ([]models.WhatsAppConversation, error)
	Messages(ctx context.Context, user *auth.UserSession, conversationID string) ([]models.WhatsAppMessage, error)
}

type WhatsAppHandler struct {
	svc WhatsAppService
}

func NewWhatsAppHandler(svc WhatsAppService) *WhatsAppHandler {
	return &WhatsAppHandler{svc: svc}
}

// Integrations handles GET /api/whatsapp/integrations
func (h *WhatsAppHandler) Integrations(c *gin.Context) {
	HandleGetEnvelope(c, "integrations", func() (interface{}, error) {
		return h.svc.Integrations(c.Request.Context(), GetUserFromContext(c))
	})
}

// CreateIntegration handles POST /api/whatsapp/integrations
func (h *WhatsAppHandler) CreateIntegration(c *gin.Context) {
	var req services.IntegrationInput
	HandleCreateEnvelope(c, "integration", &req, func() (interface{}, error) {
		return h.svc.CreateIntegration(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// VerifyWebhook handles GET /api/whatsapp/webhook
func (h *WhatsAppHandler) VerifyWebhook(c *gin.Context) {
	challenge, ok, err := h.svc.VerifyWebhook(c.Request.Context(),
		c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if !ok {
		c.String(http.StatusForbidden, "Forbidden")
		return
	}
	c.String(http.StatusOK, challenge)
}

// ReceiveWebhook handles POST /api/whatsapp/webhook
func (h *WhatsAppHandler) ReceiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		RespondAppError(c, errors.BadRequest("Invalid webhook payload"))
		return
	}
	if err := h.svc.HandleWebhook(c.Request.Context(), body, c.GetHeader(constants.HeaderHubSignature256)); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Conversations handles GET /api/whatsapp/conversations
func (h *WhatsAppHandler) Conversations(c *gin.Context) {
	HandleGetEnvelope(c, "conversations", func() (interface{}, error) {
		return h.svc.Conversations(c.Request.Context(), GetUserFromContext(c), c.Query("integrationId"))
	})
}

// Messages handles GET /api/whatsapp/conversations/:id/messages
func (h *WhatsAppHandler) Messages(c *gin.Context) {
	HandleGetEnvelope(c, "messages", func() (interface{}, error) {
		return h.svc.Messages(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}
