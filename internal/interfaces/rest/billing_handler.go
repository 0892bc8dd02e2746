package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// BillingHandler serves plan usage, upgrades and the admin plan catalogue
type BillingHandler struct {
	plans *services.PlanService
}

func NewBillingHandler(plans *services.PlanService) *BillingHandler {
	return &BillingHandler{plans: plans}
}

// UpgradeRequest is the body of POST /api/billing/upgrade
type UpgradeRequest struct {
	PlanID   string `json:"planId"`
	Interval string `json:"interval"`
}

// CurrentPlan handles GET /api/billing/current-plan
func (h *BillingHandler) CurrentPlan(c *gin.Context) {
	result, err := h.plans.CurrentPlan(c.Request.Context(), GetUserFromContext(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Usage handles GET /api/plan/usage
func (h *BillingHandler) Usage(c *gin.Context) {
	HandleGetEnvelope(c, "usage", func() (interface{}, error) {
		return h.plans.TenantUsage(c.Request.Context(), GetUserFromContext(c))
	})
}

// Available handles GET /api/plan/available
func (h *BillingHandler) Available(c *gin.Context) {
	HandleGetEnvelope(c, "plans", func() (interface{}, error) {
		return h.plans.AvailablePlans(c.Request.Context())
	})
}

// Upgrade handles POST /api/billing/upgrade
func (h *BillingHandler) Upgrade(c *gin.Context) {
	var req UpgradeRequest
	if !BindJSON(c, &req) {
		return
	}
	plan, err := h.plans.Upgrade(c.Request.Context(), GetUserFromContext(c), req.PlanID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		constants.ResponseSuccess: true,
		constants.ResponseMessage: "Plan updated successfully",
		"plan":                    plan,
	})
}

// ListPlans handles GET /api/admin/plans
func (h *BillingHandler) ListPlans(c *gin.Context) {
	HandleGetEnvelope(c, "plans", func() (interface{}, error) {
		return h.plans.ListAll(c.Request.Context())
	})
}

// CreatePlan handles POST /api/admin/plans
func (h *BillingHandler) CreatePlan(c *gin.Context) {
	var req services.PlanInput
	HandleCreateEnvelope(c, "plan", &req, func() (interface{}, error) {
		return h.plans.Create(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// UpdatePlan handles PUT /api/admin/plans/:id
func (h *BillingHandler) UpdatePlan(c *gin.Context) {
	var req services.PlanInput
	HandleUpdateEnvelope(c, "plan", &req, func() (interface{}, error) {
		return h.plans.Update(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}

// DeletePlan handles DELETE /api/admin/plans/:id
func (h *BillingHandler) DeletePlan(c *gin.Context) {
	HandleDeleteEnvelope(c, "Plan deleted successfully", func() error {
		return h.plans.Delete(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}
