package rest_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/interfaces/rest"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

// MockWhatsAppService is a mock implementation of rest.WhatsAppService
type MockWhatsAppService struct {
	mock.Mock
}

func (m *MockWhatsAppService) Integrations(ctx context.Context, user *auth.UserSession) ([]models.WhatsAppIntegration, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WhatsAppIntegration), args.Error(1)
}

func (m *MockWhatsAppService) CreateIntegration(ctx context.Context, user *auth.UserSession, in services.IntegrationInput) (*models.WhatsAppIntegration, error) {
	args := m.Called(ctx, user, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WhatsAppIntegration), args.Error(1)
}

func (m *MockWhatsAppService) VerifyWebhook(ctx context.Context, mode, token, challenge string) (string, bool, error) {
	args := m.Called(ctx, mode, token, challenge)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockWhatsAppService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	return m.Called(ctx, body, signature).Error(0)
}

func (m *MockWhatsAppService) Conversations(ctx context.Context, user *auth.UserSession, integrationID string) ([]models.WhatsAppConversation, error) {
	args := m.Called(ctx, user, integrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WhatsAppConversation), args.Error(1)
}

func (m *MockWhatsAppService) Messages(ctx context.Context, user *auth.UserSession, conversationID string) ([]models.WhatsAppMessage, error) {
	args := m.Called(ctx, user, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WhatsAppMessage), args.Error(1)
}

func TestWhatsAppHandler_VerifyWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)

	const target = "/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=12345"

	t.Run("Known token echoes challenge", func(t *testing.T) {
		mockService := new(MockWhatsAppService)
		handler := rest.NewWhatsAppHandler(mockService)
		c, w := newTestContext(http.MethodGet, target, nil)

		mockService.On("VerifyWebhook", mock.Anything, "subscribe", "tok", "12345").Return("12345", true, nil)

		handler.VerifyWebhook(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "12345", w.Body.String())
		mockService.AssertExpectations(t)
	})

	t.Run("Unknown token is forbidden", func(t *testing.T) {
		mockService := new(MockWhatsAppService)
		handler := rest.NewWhatsAppHandler(mockService)
		c, w := newTestContext(http.MethodGet, target, nil)

		mockService.On("VerifyWebhook", mock.Anything, "subscribe", "tok", "12345").Return("", false, nil)

		handler.VerifyWebhook(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Forbidden", w.Body.String())
	})
}

func TestWhatsAppHandler_ReceiveWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)

	payload := `{"entry":[]}`

	t.Run("Accepted", func(t *testing.T) {
		mockService := new(MockWhatsAppService)
		handler := rest.NewWhatsAppHandler(mockService)
		c, w := newTestContext(http.MethodPost, "/api/whatsapp/webhook", payload)
		c.Request.Header.Set(constants.HeaderHubSignature256, "sha256=abc")

		mockService.On("HandleWebhook", mock.Anything, []byte(payload), "sha256=abc").Return(nil)

		handler.ReceiveWebhook(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decodeBody(t, w)["status"])
		mockService.AssertExpectations(t)
	})

	t.Run("Bad signature", func(t *testing.T) {
		mockService := new(MockWhatsAppService)
		handler := rest.NewWhatsAppHandler(mockService)
		c, w := newTestContext(http.MethodPost, "/api/whatsapp/webhook", payload)

		mockService.On("HandleWebhook", mock.Anything, []byte(payload), "").
			Return(errors.Forbidden("Invalid signature"))

		handler.ReceiveWebhook(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Invalid signature", decodeBody(t, w)[constants.ResponseError])
	})
}
