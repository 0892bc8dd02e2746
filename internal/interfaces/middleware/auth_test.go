package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) ValidateSession(ctx context.Context, token string) (*auth.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func (m *mockSessions) TouchSession(jti string) {
	m.Called(jti)
}

type staticPermissions map[string]bool

func (p staticPermissions) HasPermission(role constants.Role, permission string) bool {
	return p[string(role)+":"+permission]
}

// setUser stands in for RequireAuth in tests of the downstream guards
func setUser(user auth.UserSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(constants.ContextKeyUser, user)
		c.Next()
	}
}

func perform(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	session := auth.UserSession{ID: "u1", Email: "a@b.co", Role: constants.RoleSales, TenantID: "t1"}
	claims := &auth.Claims{User: session, RegisteredClaims: jwt.RegisteredClaims{ID: "jti-1"}}

	tests := []struct {
		name       string
		header     string
		setup      func(m *mockSessions)
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing header",
			setup:      func(m *mockSessions) {},
			wantStatus: http.StatusUnauthorized,
			wantError:  "No authorization token provided",
		},
		{
			name:       "not a bearer token",
			header:     "Basic abc",
			setup:      func(m *mockSessions) {},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid authorization header format",
		},
		{
			name:   "revoked session",
			header: "Bearer revoked",
			setup: func(m *mockSessions) {
				m.On("ValidateSession", mock.Anything, "revoked").
					Return(nil, errors.NewUnauthorizedError("Session expired or revoked"))
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Session expired or revoked",
		},
		{
			name:   "valid session",
			header: "Bearer good",
			setup: func(m *mockSessions) {
				m.On("ValidateSession", mock.Anything, "good").Return(claims, nil)
				m.On("TouchSession", "jti-1").Return()
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(mockSessions)
			tt.setup(sessions)

			r := gin.New()
			r.GET("/me", RequireAuth(sessions), func(c *gin.Context) {
				user, ok := CurrentUser(c)
				require.True(t, ok)
				assert.Equal(t, session, user)
				assert.Equal(t, "good", c.GetString(constants.ContextKeyToken))
				c.Status(http.StatusOK)
			})

			header := http.Header{}
			if tt.header != "" {
				header.Set(constants.HeaderAuthorization, tt.header)
			}
			w := perform(r, http.MethodGet, "/me", header)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				body := errorBody(t, w)
				assert.Equal(t, tt.wantError, body[constants.ResponseError])
				assert.Equal(t, "UNAUTHORIZED", body[constants.ResponseCode])
			}
			sessions.AssertExpectations(t)
		})
	}
}

func TestRequireAuth_SessionStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sessions := new(mockSessions)
	sessions.On("ValidateSession", mock.Anything, "good").
		Return(nil, fmt.Errorf("failed to load session: %w", fmt.Errorf("dial tcp 10.0.0.1:4000: connection refused")))

	r := gin.New()
	r.GET("/me", RequireAuth(sessions), func(c *gin.Context) { c.Status(http.StatusOK) })

	header := http.Header{}
	header.Set(constants.HeaderAuthorization, "Bearer good")
	w := perform(r, http.MethodGet, "/me", header)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := errorBody(t, w)
	assert.Equal(t, "INTERNAL_ERROR", body[constants.ResponseCode])
	assert.Equal(t, "Internal server error", body[constants.ResponseError])
	sessions.AssertNotCalled(t, "TouchSession", mock.Anything)
}

func TestRequireTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("platform admin without tenant", func(t *testing.T) {
		r := gin.New()
		r.GET("/x", setUser(auth.UserSession{ID: "admin", Role: constants.RoleSuperAdmin}), RequireTenant(),
			func(c *gin.Context) { c.Status(http.StatusOK) })

		w := perform(r, http.MethodGet, "/x", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := errorBody(t, w)
		assert.Equal(t, "TENANT_REQUIRED", body[constants.ResponseCode])
		assert.Equal(t, "Tenant ID not found", body[constants.ResponseError])
	})

	t.Run("tenant user", func(t *testing.T) {
		r := gin.New()
		r.GET("/x", setUser(auth.UserSession{ID: "u1", Role: constants.RoleSales, TenantID: "t1"}), RequireTenant(),
			func(c *gin.Context) { c.Status(http.StatusOK) })

		assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/x", nil).Code)
	})

	t.Run("no session", func(t *testing.T) {
		r := gin.New()
		r.GET("/x", RequireTenant(), func(c *gin.Context) { c.Status(http.StatusOK) })

		assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/x", nil).Code)
	})
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		role constants.Role
		want int
	}{
		{constants.RoleSuperAdmin, http.StatusOK},
		{constants.RoleTenantAdmin, http.StatusOK},
		{constants.RoleManager, http.StatusForbidden},
		{constants.RoleUser, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			r := gin.New()
			r.GET("/team", setUser(auth.UserSession{ID: "u1", Role: tt.role, TenantID: "t1"}),
				RequireRoles(constants.TenantAdministerRoles...),
				func(c *gin.Context) { c.Status(http.StatusOK) })

			w := perform(r, http.MethodGet, "/team", nil)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, "Insufficient permissions", errorBody(t, w)[constants.ResponseError])
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	gin.SetMode(gin.TestMode)

	perms := staticPermissions{string(constants.RoleManager) + ":analytics.view_dashboard": true}

	for role, want := range map[constants.Role]int{
		constants.RoleManager: http.StatusOK,
		constants.RoleSupport: http.StatusForbidden,
	} {
		r := gin.New()
		r.GET("/dash", setUser(auth.UserSession{ID: "u1", Role: role, TenantID: "t1"}),
			RequirePermission(perms, "analytics.view_dashboard"),
			func(c *gin.Context) { c.Status(http.StatusOK) })

		assert.Equal(t, want, perform(r, http.MethodGet, "/dash", nil).Code, "role %s", role)
	}
}
