package rest_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/interfaces/rest"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

func TestRespondAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "validation",
			err:         errors.BadRequest("Name is required"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Name is required",
		},
		{
			name:        "not found",
			err:         errors.NewNotFoundError("Contact", "c1"),
			wantStatus:  http.StatusNotFound,
			wantCode:    "NOT_FOUND",
			wantMessage: "Contact with ID 'c1' not found",
		},
		{
			name:        "wrapped app error keeps its status",
			err:         fmt.Errorf("update: %w", errors.NewNotFoundError("Deal", "")),
			wantStatus:  http.StatusNotFound,
			wantCode:    "NOT_FOUND",
			wantMessage: "Deal not found",
		},
		{
			name:        "unexpected errors are hidden",
			err:         fmt.Errorf("dial tcp 10.0.0.1:4000: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "UNKNOWN_ERROR",
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(http.MethodGet, "/api/test", nil)

			rest.RespondAppError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeBody(t, w)
			assert.Equal(t, tt.wantMessage, resp[constants.ResponseError])
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, resp[constants.ResponseCode])
			}
			assert.NotContains(t, resp, "planLimit")
		})
	}
}

func TestRespondAppError_PlanLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, w := newTestContext(http.MethodPost, "/api/contacts", nil)

	rest.RespondAppError(c, errors.NewPlanLimitError("Contact limit reached", constants.LimitContacts, 100, 100))

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "PLAN_LIMIT_EXCEEDED", resp[constants.ResponseCode])

	limit, ok := resp["planLimit"].(map[string]interface{})
	require.True(t, ok, "planLimit should be an object")
	assert.Equal(t, constants.LimitContacts, limit["type"])
	assert.Equal(t, float64(100), limit["currentUsage"])
	assert.Equal(t, float64(100), limit["limit"])
}

func TestGetUserFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := newTestContext(http.MethodGet, "/", nil)
	user := rest.GetUserFromContext(c)
	require.NotNil(t, user)
	assert.Equal(t, testSession.TenantID, user.TenantID)

	empty, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, rest.GetUserFromContext(empty))
}
