package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// ActivityService defines the activity operations used by ActivityHandler
type ActivityService interface {
	List(ctx context.Context, user *auth.UserSession, q services.ActivityQuery) ([]models.Activity, utils.Pagination, error)
	Create(ctx context.Context, user *auth.UserSession, in services.ActivityInput) (*models.Activity, error)
	Get(ctx context.Context, user *auth.UserSession, id string) (*models.Activity, error)
	Update(ctx context.Context, user *auth.UserSession, id string, in services.ActivityInput) (*models.Activity, error)
	Complete(ctx context.Context, user *auth.UserSession, id string) (*models.Activity, error)
	Delete(ctx context.Context, user *auth.UserSession, id string) error
	Bulk(ctx context.Context, user *auth.UserSession, ids []string, action string) (*services.BulkResult, error)
}

type ActivityHandler struct {
	svc ActivityService
}

func NewActivityHandler(svc ActivityService) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

// BulkActivityRequest is the body of PATCH /api/activities/bulk
type BulkActivityRequest struct {
	ActivityIDs []string `json:"activityIds"`
	Action      string   `json:"action"`
}

// List handles GET /api/activities
func (h *ActivityHandler) List(c *gin.Context) {
	HandleListEnvelope(c, "activities", func() (interface{}, utils.Pagination, error) {
		return h.svc.List(c.Request.Context(), GetUserFromContext(c), services.ActivityQuery{
			Search:     trimmedQuery(c, "search"),
			Type:       c.Query("type"),
			Status:     c.Query("status"),
			AssignedTo: c.Query("assignedTo"),
			DateRange:  c.Query("dateRange"),
			Page:       pagination(c, constants.DefaultPageLimit),
		})
	})
}

// Create handles POST /api/activities
func (h *ActivityHandler) Create(c *gin.Context) {
	var req services.ActivityInput
	HandleCreateEnvelope(c, "activity", &req, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// Get handles GET /api/activities/:id
func (h *ActivityHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "activity", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Update handles PATCH /api/activities/:id
func (h *ActivityHandler) Update(c *gin.Context) {
	var req services.ActivityInput
	HandleUpdateEnvelope(c, "activity", &req, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}

// Complete handles PATCH /api/activities/:id/complete
func (h *ActivityHandler) Complete(c *gin.Context) {
	HandleGetEnvelope(c, "activity", func() (interface{}, error) {
		return h.svc.Complete(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Delete handles DELETE /api/activities/:id
func (h *ActivityHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Activity deleted successfully", func() error {
		return h.svc.Delete(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Bulk handles PATCH /api/activities/bulk
func (h *ActivityHandler) Bulk(c *gin.Context) {
	var req BulkActivityRequest
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.svc.Bulk(c.Request.Context(), GetUserFromContext(c), req.ActivityIDs, req.Action)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
