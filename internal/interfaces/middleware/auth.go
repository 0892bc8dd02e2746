package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

// SessionValidator is the part of the auth service the middleware needs
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*auth.Claims, error)
	TouchSession(jti string)
}

// PermissionChecker resolves role permissions
type PermissionChecker interface {
	HasPermission(role constants.Role, permission string) bool
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		constants.ResponseError:   message,
		constants.ResponseMessage: message,
		constants.ResponseCode:    code,
		constants.ResponseData:    nil,
	})
}

// RequireAuth is a middleware that validates JWT tokens
func RequireAuth(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from Authorization header
		authHeader := c.GetHeader(constants.HeaderAuthorization)
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "No authorization token provided")
			return
		}

		// Extract token (format: "Bearer <token>")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header format")
			return
		}
		tokenString := parts[1]

		claims, err := sessions.ValidateSession(c.Request.Context(), tokenString)
		if err != nil {
			if status := errors.GetHTTPStatus(err); status >= http.StatusInternalServerError {
				glog.Errorf("ERROR [%d] %s %s: session validation failed: %v", status, c.Request.Method, c.Request.URL.Path, err)
				abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", errors.PublicMessage(err))
				return
			}
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", errors.PublicMessage(err))
			return
		}

		// Update last activity (fire and forget)
		sessions.TouchSession(claims.RegisteredClaims.ID)

		c.Set(constants.ContextKeyUser, claims.User)
		c.Set(constants.ContextKeyToken, tokenString)
		c.Next()
	}
}

// CurrentUser returns the session stored by RequireAuth
func CurrentUser(c *gin.Context) (auth.UserSession, bool) {
	v, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return auth.UserSession{}, false
	}
	user, ok := v.(auth.UserSession)
	return user, ok
}

// RequireTenant rejects sessions that are not bound to a tenant
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
			return
		}
		if !user.HasTenant() {
			abort(c, http.StatusBadRequest, "TENANT_REQUIRED", errors.NewTenantRequiredError().Error())
			return
		}
		c.Next()
	}
}

// RequireRoles allows only the listed roles
func RequireRoles(roles ...constants.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
			return
		}
		if !constants.HasRole(user.Role, roles...) {
			abort(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		c.Next()
	}
}

// RequireSuperAdmin checks if the user administers the platform
func RequireSuperAdmin() gin.HandlerFunc {
	return RequireRoles(constants.RoleSuperAdmin)
}

// RequirePermission checks a "category.action" permission against the caller's role
func RequirePermission(checker PermissionChecker, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
			return
		}
		if !checker.HasPermission(user.Role, permission) {
			abort(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		c.Next()
	}
}
