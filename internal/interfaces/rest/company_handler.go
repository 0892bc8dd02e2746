package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

type CompanyHandler struct {
	svc *services.CompanyService
}

func NewCompanyHandler(svc *services.CompanyService) *CompanyHandler {
	return &CompanyHandler{svc: svc}
}

// List handles GET /api/companies
func (h *CompanyHandler) List(c *gin.Context) {
	HandleListEnvelope(c, "companies", func() (interface{}, utils.Pagination, error) {
		return h.svc.List(c.Request.Context(), GetUserFromContext(c), trimmedQuery(c, "search"),
			pagination(c, constants.DefaultPageLimit))
	})
}

// Create handles POST /api/companies
func (h *CompanyHandler) Create(c *gin.Context) {
	var req services.CompanyInput
	HandleCreateEnvelope(c, "company", &req, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// Get handles GET /api/companies/:id
func (h *CompanyHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "company", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Update handles PUT /api/companies/:id
func (h *CompanyHandler) Update(c *gin.Context) {
	var req services.CompanyInput
	HandleUpdateEnvelope(c, "company", &req, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}

// Delete handles DELETE /api/companies/:id
func (h *CompanyHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Company deleted successfully", func() error {
		return h.svc.Delete(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}
