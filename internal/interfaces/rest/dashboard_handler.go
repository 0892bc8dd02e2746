package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
)

type DashboardHandler struct {
	svc *services.DashboardService
}

func NewDashboardHandler(svc *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Stats handles GET /api/dashboard/stats
func (h *DashboardHandler) Stats(c *gin.Context) {
	period, _ := strconv.Atoi(c.Query("period"))
	stats, err := h.svc.Stats(c.Request.Context(), GetUserFromContext(c), period)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
