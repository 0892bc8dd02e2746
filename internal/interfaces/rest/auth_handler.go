package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// AuthService defines the account operations used by AuthHandler
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.SignupResult, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, session *auth.UserSession) (*models.User, error)
	ChangePassword(ctx context.Context, session *auth.UserSession, currentJTI, currentPassword, newPassword string) error
}

// PermissionLister resolves the permissions of a role
type PermissionLister interface {
	ForRole(role constants.Role) services.RolePermissions
}

type AuthHandler struct {
	svc         AuthService
	permissions PermissionLister
}

func NewAuthHandler(svc AuthService, permissions PermissionLister) *AuthHandler {
	return &AuthHandler{svc: svc, permissions: permissions}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents the change-password body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.SignupInput
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.svc.Signup(c.Request.Context(), req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(constants.ContextKeyToken)
	if token == "" {
		RespondError(c, http.StatusUnauthorized, "No token provided")
		return
	}
	HandleDeleteEnvelope(c, "Logged out successfully", func() error {
		return h.svc.Logout(c.Request.Context(), token)
	})
}

// GetMe handles GET /api/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "user", func() (interface{}, error) {
		return h.svc.Me(c.Request.Context(), user)
	})
}

// ChangePassword handles POST /api/auth/change-password. Other sessions of
// the user are revoked; the current one stays valid.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !BindJSON(c, &req) {
		return
	}
	var jti string
	if claims, err := auth.DecodeToken(c.GetString(constants.ContextKeyToken)); err == nil {
		jti = claims.ID
	}
	if err := h.svc.ChangePassword(c.Request.Context(), GetUserFromContext(c), jti, req.CurrentPassword, req.NewPassword); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.ResponseMessage: "Password changed successfully"})
}

// GetMyPermissions handles GET /api/permissions/me
func (h *AuthHandler) GetMyPermissions(c *gin.Context) {
	user := GetUserFromContext(c)
	if user == nil {
		RespondError(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	c.JSON(http.StatusOK, h.permissions.ForRole(user.Role))
}
