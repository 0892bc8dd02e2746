package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

type LandingPageHandler struct {
	svc *services.LandingPageService
}

func NewLandingPageHandler(svc *services.LandingPageService) *LandingPageHandler {
	return &LandingPageHandler{svc: svc}
}

// List handles GET /api/landing-pages
func (h *LandingPageHandler) List(c *gin.Context) {
	HandleListEnvelope(c, "pages", func() (interface{}, utils.Pagination, error) {
		return h.svc.List(c.Request.Context(), GetUserFromContext(c), trimmedQuery(c, "search"), c.Query("status"),
			pagination(c, constants.DefaultFormLimit))
	})
}

// Create handles POST /api/landing-pages
func (h *LandingPageHandler) Create(c *gin.Context) {
	var req services.LandingPageInput
	HandleCreateEnvelope(c, "page", &req, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// Get handles GET /api/landing-pages/:id
func (h *LandingPageHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "page", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Update handles PUT /api/landing-pages/:id
func (h *LandingPageHandler) Update(c *gin.Context) {
	var req services.LandingPageInput
	HandleUpdateEnvelope(c, "page", &req, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}

// Delete handles DELETE /api/landing-pages/:id
func (h *LandingPageHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Page deleted successfully", func() error {
		return h.svc.Delete(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Publish handles POST /api/landing-pages/:id/publish
func (h *LandingPageHandler) Publish(c *gin.Context) {
	HandleGetEnvelope(c, "page", func() (interface{}, error) {
		return h.svc.Publish(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Duplicate handles POST /api/landing-pages/:id/duplicate
func (h *LandingPageHandler) Duplicate(c *gin.Context) {
	page, err := h.svc.Duplicate(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"page": page})
}

// Public handles GET /api/public/pages/:tenantSlug/:slug
func (h *LandingPageHandler) Public(c *gin.Context) {
	HandleGetEnvelope(c, "page", func() (interface{}, error) {
		return h.svc.Public(c.Request.Context(), c.Param("tenantSlug"), c.Param("slug"))
	})
}
