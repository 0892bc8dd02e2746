package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// ContactHandler serves contacts and the contact pipeline
type ContactHandler struct {
	contacts  *services.ContactService
	pipelines *services.PipelineService
}

func NewContactHandler(contacts *services.ContactService, pipelines *services.PipelineService) *ContactHandler {
	return &ContactHandler{contacts: contacts, pipelines: pipelines}
}

// MoveStageRequest is the body of POST /api/contacts/move-stage
type MoveStageRequest struct {
	ContactID  string `json:"contactId"`
	NewStageID string `json:"newStageId"`
}

// AddToStageRequest is the body of POST /api/contacts/add-to-stage
type AddToStageRequest struct {
	ContactIDs []string `json:"contactIds"`
	StageID    string   `json:"stageId"`
}

// List handles GET /api/contacts
func (h *ContactHandler) List(c *gin.Context) {
	HandleListEnvelope(c, "contacts", func() (interface{}, utils.Pagination, error) {
		return h.contacts.List(c.Request.Context(), GetUserFromContext(c), services.ContactQuery{
			Search: trimmedQuery(c, "search"),
			Status: c.Query("status"),
			Source: c.Query("source"),
			Page:   pagination(c, constants.DefaultPageLimit),
		})
	})
}

// Create handles POST /api/contacts
func (h *ContactHandler) Create(c *gin.Context) {
	var req services.ContactInput
	HandleCreateEnvelope(c, "contact", &req, func() (interface{}, error) {
		return h.contacts.Create(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// Get handles GET /api/contacts/:id
func (h *ContactHandler) Get(c *gin.Context) {
	detail, err := h.contacts.Get(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Update handles PUT /api/contacts/:id
func (h *ContactHandler) Update(c *gin.Context) {
	var req services.ContactUpdate
	HandleUpdateEnvelope(c, "contact", &req, func() (interface{}, error) {
		return h.contacts.Update(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}

// Delete handles DELETE /api/contacts/:id
func (h *ContactHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Contact deleted successfully", func() error {
		return h.contacts.Delete(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Pipeline handles GET /api/contacts/pipeline
func (h *ContactHandler) Pipeline(c *gin.Context) {
	HandleGetEnvelope(c, "pipeline", func() (interface{}, error) {
		return h.pipelines.Pipeline(c.Request.Context(), GetUserFromContext(c))
	})
}

// CreatePipeline handles POST /api/contacts/pipeline
func (h *ContactHandler) CreatePipeline(c *gin.Context) {
	var req services.PipelineInput
	HandleCreateEnvelope(c, "pipeline", &req, func() (interface{}, error) {
		return h.pipelines.CreatePipeline(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// MoveStage handles POST /api/contacts/move-stage
func (h *ContactHandler) MoveStage(c *gin.Context) {
	var req MoveStageRequest
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.pipelines.MoveStage(c.Request.Context(), GetUserFromContext(c), req.ContactID, req.NewStageID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AddToStage handles POST /api/contacts/add-to-stage
func (h *ContactHandler) AddToStage(c *gin.Context) {
	var req AddToStageRequest
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.pipelines.AddToStage(c.Request.Context(), GetUserFromContext(c), req.ContactIDs, req.StageID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PipelineStats handles GET /api/contacts/pipeline/stats
func (h *ContactHandler) PipelineStats(c *gin.Context) {
	stats, err := h.pipelines.Stats(c.Request.Context(), GetUserFromContext(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
