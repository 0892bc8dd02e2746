package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// WorkflowHandler serves workflow definitions and their execution history
type WorkflowHandler struct {
	svc *services.WorkflowService
}

func NewWorkflowHandler(svc *services.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// List handles GET /api/workflows
func (h *WorkflowHandler) List(c *gin.Context) {
	HandleGetEnvelope(c, "workflows", func() (interface{}, error) {
		return h.svc.List(c.Request.Context(), GetUserFromContext(c), c.Query("status"), c.Query("triggerType"))
	})
}

// Create handles POST /api/workflows
func (h *WorkflowHandler) Create(c *gin.Context) {
	var req services.WorkflowInput
	HandleCreateEnvelope(c, "workflow", &req, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// Get handles GET /api/workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "workflow", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Update handles PUT /api/workflows/:id
func (h *WorkflowHandler) Update(c *gin.Context) {
	var req services.WorkflowInput
	HandleUpdateEnvelope(c, "workflow", &req, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}

// ReplaceActions handles PUT /api/workflows/:id/actions
func (h *WorkflowHandler) ReplaceActions(c *gin.Context) {
	var req struct {
		Actions []services.ActionInput `json:"actions"`
	}
	HandleUpdateEnvelope(c, "workflow", &req, func() (interface{}, error) {
		return h.svc.ReplaceActions(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req.Actions)
	})
}

// Delete handles DELETE /api/workflows/:id
func (h *WorkflowHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Workflow deleted successfully", func() error {
		return h.svc.Delete(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Toggle handles POST /api/workflows/:id/toggle
func (h *WorkflowHandler) Toggle(c *gin.Context) {
	result, err := h.svc.Toggle(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Executions handles GET /api/workflows/executions
func (h *WorkflowHandler) Executions(c *gin.Context) {
	HandleListEnvelope(c, "executions", func() (interface{}, utils.Pagination, error) {
		return h.svc.Executions(c.Request.Context(), GetUserFromContext(c), c.Query("workflowId"), c.Query("status"),
			pagination(c, constants.DefaultAuditLimit))
	})
}

// Test handles POST /api/workflows/:id/test
func (h *WorkflowHandler) Test(c *gin.Context) {
	var req services.TestInput
	if !BindJSON(c, &req) {
		return
	}
	execution, err := h.svc.Test(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.ResponseSuccess: true, "execution": execution})
}
