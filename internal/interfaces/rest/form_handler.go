package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// FormService defines the form operations used by FormHandler
type FormService interface {
	List(ctx context.Context, user *auth.UserSession, search string, page utils.Pagination) ([]models.Form, utils.Pagination, error)
	Create(ctx context.Context, user *auth.UserSession, in services.FormInput) (*models.Form, error)
	Update(ctx context.Context, user *auth.UserSession, id string, in services.FormInput) (*models.Form, error)
	Delete(ctx context.Context, user *auth.UserSession, id string) error
	Submissions(ctx context.Context, user *auth.UserSession, formID string, page utils.Pagination) ([]models.FormSubmission, utils.Pagination, error)
	PublicForm(ctx context.Context, formID string) (*models.PublicForm, error)
	Submit(ctx context.Context, formID string, data map[string]interface{}) (*services.SubmitResult, error)
}

// FormHandler serves form management and the public embed endpoints
type FormHandler struct {
	svc FormService
}

func NewFormHandler(svc FormService) *FormHandler {
	return &FormHandler{svc: svc}
}

// UpdateFormRequest carries the form id in the body
type UpdateFormRequest struct {
	ID string `json:"id"`
	services.FormInput
}

// List handles GET /api/forms
func (h *FormHandler) List(c *gin.Context) {
	HandleListEnvelope(c, "forms", func() (interface{}, utils.Pagination, error) {
		return h.svc.List(c.Request.Context(), GetUserFromContext(c), trimmedQuery(c, "search"),
			pagination(c, constants.DefaultFormLimit))
	})
}

// Create handles POST /api/forms
func (h *FormHandler) Create(c *gin.Context) {
	var req services.FormInput
	HandleCreateEnvelope(c, "form", &req, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// Update handles PUT /api/forms
func (h *FormHandler) Update(c *gin.Context) {
	var req UpdateFormRequest
	HandleUpdateEnvelope(c, "form", &req, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), GetUserFromContext(c), req.ID, req.FormInput)
	})
}

// Delete handles DELETE /api/forms?id=
func (h *FormHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Form deleted successfully", func() error {
		id := c.Query("id")
		if id == "" {
			return errors.BadRequest("Form ID is required")
		}
		return h.svc.Delete(c.Request.Context(), GetUserFromContext(c), id)
	})
}

// Submissions handles GET /api/forms/submissions
func (h *FormHandler) Submissions(c *gin.Context) {
	HandleListEnvelope(c, "submissions", func() (interface{}, utils.Pagination, error) {
		return h.svc.Submissions(c.Request.Context(), GetUserFromContext(c), c.Query("formId"),
			pagination(c, constants.DefaultPageLimit))
	})
}

// PublicForm handles GET /api/forms/public/:formId
func (h *FormHandler) PublicForm(c *gin.Context) {
	HandleGetEnvelope(c, "form", func() (interface{}, error) {
		return h.svc.PublicForm(c.Request.Context(), c.Param("formId"))
	})
}

// Submit handles POST /api/forms/:formId/submit
func (h *FormHandler) Submit(c *gin.Context) {
	var data map[string]interface{}
	if !BindJSON(c, &data) {
		return
	}
	result, err := h.svc.Submit(c.Request.Context(), c.Param("formId"), data)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
