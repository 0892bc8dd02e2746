package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/interfaces/rest"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// MockActivityService is a mock implementation of rest.ActivityService
type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) List(ctx context.Context, user *auth.UserSession, q services.ActivityQuery) ([]models.Activity, utils.Pagination, error) {
	args := m.Called(ctx, user, q)
	if args.Get(0) == nil {
		return nil, args.Get(1).(utils.Pagination), args.Error(2)
	}
	return args.Get(0).([]models.Activity), args.Get(1).(utils.Pagination), args.Error(2)
}

func (m *MockActivityService) Create(ctx context.Context, user *auth.UserSession, in services.ActivityInput) (*models.Activity, error) {
	args := m.Called(ctx, user, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Activity), args.Error(1)
}

func (m *MockActivityService) Get(ctx context.Context, user *auth.UserSession, id string) (*models.Activity, error) {
	args := m.Called(ctx, user, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Activity), args.Error(1)
}

func (m *MockActivityService) Update(ctx context.Context, user *auth.UserSession, id string, in services.ActivityInput) (*models.Activity, error) {
	args := m.Called(ctx, user, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Activity), args.Error(1)
}

func (m *MockActivityService) Complete(ctx context.Context, user *auth.UserSession, id string) (*models.Activity, error) {
	args := m.Called(ctx, user, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Activity), args.Error(1)
}

func (m *MockActivityService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	return m.Called(ctx, user, id).Error(0)
}

func (m *MockActivityService) Bulk(ctx context.Context, user *auth.UserSession, ids []string, action string) (*services.BulkResult, error) {
	args := m.Called(ctx, user, ids, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BulkResult), args.Error(1)
}

var testSession = auth.UserSession{
	ID:       "user123",
	Name:     "Test User",
	Email:    "test@example.com",
	Role:     constants.RoleSales,
	TenantID: "tenant123",
}

// newTestContext builds a gin context carrying the test session
func newTestContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(constants.ContextKeyUser, testSession)

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	c.Request = httptest.NewRequest(method, target, &buf)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestActivityHandler_Bulk(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockActivityService)
		handler := rest.NewActivityHandler(mockService)

		c, w := newTestContext(http.MethodPatch, "/api/activities/bulk",
			rest.BulkActivityRequest{ActivityIDs: []string{"a1", "a2"}, Action: constants.BulkActionComplete})

		mockService.On("Bulk", mock.Anything, &testSession, []string{"a1", "a2"}, constants.BulkActionComplete).
			Return(&services.BulkResult{Message: "2 activities marked as completed", Count: 2}, nil)

		handler.Bulk(c)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, float64(2), resp["count"])
		mockService.AssertExpectations(t)
	})

	t.Run("Foreign IDs are rejected", func(t *testing.T) {
		mockService := new(MockActivityService)
		handler := rest.NewActivityHandler(mockService)

		c, w := newTestContext(http.MethodPatch, "/api/activities/bulk",
			rest.BulkActivityRequest{ActivityIDs: []string{"other"}, Action: constants.BulkActionDelete})

		mockService.On("Bulk", mock.Anything, &testSession, []string{"other"}, constants.BulkActionDelete).
			Return(nil, errors.NewNotFoundError("Activity", "other"))

		handler.Bulk(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Malformed body", func(t *testing.T) {
		mockService := new(MockActivityService)
		handler := rest.NewActivityHandler(mockService)

		c, w := newTestContext(http.MethodPatch, "/api/activities/bulk", "{not json")

		handler.Bulk(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", decodeBody(t, w)[constants.ResponseError])
		mockService.AssertNotCalled(t, "Bulk", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestActivityHandler_List(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockService := new(MockActivityService)
	handler := rest.NewActivityHandler(mockService)

	c, w := newTestContext(http.MethodGet, "/api/activities?type=CALL&status=pending&page=2&limit=5", nil)

	page := utils.Pagination{Page: 2, Limit: 5, Total: 6, TotalPages: 2}
	mockService.On("List", mock.Anything, &testSession, mock.MatchedBy(func(q services.ActivityQuery) bool {
		return q.Type == "CALL" && q.Status == "pending" && q.Page.Page == 2 && q.Page.Limit == 5
	})).Return([]models.Activity{{ID: "a6", Title: "Call back"}}, page, nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Len(t, resp["activities"], 1)
	assert.Contains(t, resp, "pagination")
	mockService.AssertExpectations(t)
}

func TestActivityHandler_Delete(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockService := new(MockActivityService)
	handler := rest.NewActivityHandler(mockService)

	c, w := newTestContext(http.MethodDelete, "/api/activities/a1", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}

	mockService.On("Delete", mock.Anything, &testSession, "a1").Return(nil)

	handler.Delete(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Activity deleted successfully", decodeBody(t, w)[constants.ResponseMessage])
	mockService.AssertExpectations(t)
}
