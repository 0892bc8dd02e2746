package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// AdminHandler serves the platform administration endpoints
type AdminHandler struct {
	admin *services.AdminService
	audit *services.AuditService
}

func NewAdminHandler(admin *services.AdminService, audit *services.AuditService) *AdminHandler {
	return &AdminHandler{admin: admin, audit: audit}
}

// Tenants handles GET /api/admin/tenants
func (h *AdminHandler) Tenants(c *gin.Context) {
	HandleListEnvelope(c, "tenants", func() (interface{}, utils.Pagination, error) {
		return h.admin.Tenants(c.Request.Context(), GetUserFromContext(c), trimmedQuery(c, "search"), c.Query("status"),
			pagination(c, constants.DefaultPageLimit))
	})
}

// CreateTenant handles POST /api/admin/tenants
func (h *AdminHandler) CreateTenant(c *gin.Context) {
	var req services.TenantInput
	HandleCreateEnvelope(c, "tenant", &req, func() (interface{}, error) {
		return h.admin.CreateTenant(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// Tenant handles GET /api/admin/tenants/:id
func (h *AdminHandler) Tenant(c *gin.Context) {
	HandleGetEnvelope(c, "tenant", func() (interface{}, error) {
		return h.admin.Tenant(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// UpdateTenant handles PUT /api/admin/tenants/:id
func (h *AdminHandler) UpdateTenant(c *gin.Context) {
	var req services.TenantInput
	HandleUpdateEnvelope(c, "tenant", &req, func() (interface{}, error) {
		return h.admin.UpdateTenant(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context(), GetUserFromContext(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Users handles GET /api/admin/users
func (h *AdminHandler) Users(c *gin.Context) {
	HandleListEnvelope(c, "users", func() (interface{}, utils.Pagination, error) {
		return h.admin.Users(c.Request.Context(), GetUserFromContext(c), trimmedQuery(c, "search"), c.Query("role"),
			c.Query("tenantId"), pagination(c, constants.DefaultPageLimit))
	})
}

// AuditLogs handles GET /api/admin/audit-logs
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	start, err := parseDateParam(c, "startDate")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	end, err := parseDateParam(c, "endDate")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleListEnvelope(c, "logs", func() (interface{}, utils.Pagination, error) {
		return h.audit.List(c.Request.Context(), GetUserFromContext(c), services.AuditQuery{
			UserID:    c.Query("userId"),
			TenantID:  c.Query("tenantId"),
			Action:    c.Query("action"),
			Resource:  c.Query("resource"),
			StartDate: start,
			EndDate:   end,
			Page:      pagination(c, constants.DefaultAuditLimit),
		})
	})
}

// parseDateParam accepts RFC3339 timestamps or plain dates
func parseDateParam(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.BadRequest("Invalid %s", key)
}
