package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

type DealHandler struct {
	svc *services.DealService
}

func NewDealHandler(svc *services.DealService) *DealHandler {
	return &DealHandler{svc: svc}
}

// List handles GET /api/deals
func (h *DealHandler) List(c *gin.Context) {
	HandleListEnvelope(c, "deals", func() (interface{}, utils.Pagination, error) {
		return h.svc.List(c.Request.Context(), GetUserFromContext(c), trimmedQuery(c, "search"), c.Query("stage"),
			pagination(c, constants.DefaultPageLimit))
	})
}

// Create handles POST /api/deals
func (h *DealHandler) Create(c *gin.Context) {
	var req services.DealInput
	HandleCreateEnvelope(c, "deal", &req, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// Get handles GET /api/deals/:id
func (h *DealHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "deal", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Update handles PATCH and PUT /api/deals/:id
func (h *DealHandler) Update(c *gin.Context) {
	var req services.DealInput
	HandleUpdateEnvelope(c, "deal", &req, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}

// Delete handles DELETE /api/deals/:id
func (h *DealHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Deal deleted successfully", func() error {
		return h.svc.Delete(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Pipeline handles GET /api/deals/pipeline
func (h *DealHandler) Pipeline(c *gin.Context) {
	HandleGetEnvelope(c, "pipeline", func() (interface{}, error) {
		return h.svc.Pipeline(c.Request.Context(), GetUserFromContext(c))
	})
}

// Forecast handles GET /api/deals/forecast?team=&product=
func (h *DealHandler) Forecast(c *gin.Context) {
	forecast, err := h.svc.Forecast(c.Request.Context(), GetUserFromContext(c), services.ForecastQuery{
		Team:    c.Query("team"),
		Product: c.Query("product"),
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, forecast)
}

// Stats handles GET /api/deals/pipeline/stats
func (h *DealHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), GetUserFromContext(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
