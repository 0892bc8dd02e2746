package rest

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// EmailHandler serves email lists and their subscribers
type EmailHandler struct {
	svc *services.EmailService
}

func NewEmailHandler(svc *services.EmailService) *EmailHandler {
	return &EmailHandler{svc: svc}
}

// ImportRequest is the body of POST /api/email-marketing/lists/:id/import
type ImportRequest struct {
	Subscribers []services.SubscriberInput `json:"subscribers"`
}

// BulkSubscriberRequest is the body of DELETE …/subscribers/bulk
type BulkSubscriberRequest struct {
	SubscriberIDs []string `json:"subscriberIds"`
}

// Lists handles GET /api/email-marketing/lists
func (h *EmailHandler) Lists(c *gin.Context) {
	HandleGetEnvelope(c, "lists", func() (interface{}, error) {
		return h.svc.Lists(c.Request.Context(), GetUserFromContext(c))
	})
}

// CreateList handles POST /api/email-marketing/lists
func (h *EmailHandler) CreateList(c *gin.Context) {
	var req services.EmailListInput
	HandleCreateEnvelope(c, "list", &req, func() (interface{}, error) {
		return h.svc.CreateList(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// GetList handles GET /api/email-marketing/lists/:id
func (h *EmailHandler) GetList(c *gin.Context) {
	HandleGetEnvelope(c, "list", func() (interface{}, error) {
		return h.svc.GetList(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// UpdateList handles PUT /api/email-marketing/lists/:id
func (h *EmailHandler) UpdateList(c *gin.Context) {
	var req services.EmailListInput
	HandleUpdateEnvelope(c, "list", &req, func() (interface{}, error) {
		return h.svc.UpdateList(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}

// DeleteList handles DELETE /api/email-marketing/lists/:id
func (h *EmailHandler) DeleteList(c *gin.Context) {
	HandleDeleteEnvelope(c, "Email list deleted successfully", func() error {
		return h.svc.DeleteList(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	})
}

// Subscribers handles GET /api/email-marketing/lists/:id/subscribers
func (h *EmailHandler) Subscribers(c *gin.Context) {
	HandleListEnvelope(c, "subscribers", func() (interface{}, utils.Pagination, error) {
		return h.svc.Subscribers(c.Request.Context(), GetUserFromContext(c), c.Param("id"),
			trimmedQuery(c, "search"), c.Query("status"), pagination(c, constants.DefaultAuditLimit))
	})
}

// AddSubscriber handles POST /api/email-marketing/lists/:id/subscribers
func (h *EmailHandler) AddSubscriber(c *gin.Context) {
	var req services.SubscriberInput
	HandleCreateEnvelope(c, "subscriber", &req, func() (interface{}, error) {
		return h.svc.AddSubscriber(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}

// UpdateSubscriber handles PUT …/subscribers/:subscriberId
func (h *EmailHandler) UpdateSubscriber(c *gin.Context) {
	var req services.SubscriberInput
	HandleUpdateEnvelope(c, "subscriber", &req, func() (interface{}, error) {
		return h.svc.UpdateSubscriber(c.Request.Context(), GetUserFromContext(c), c.Param("id"), c.Param("subscriberId"), req)
	})
}

// Unsubscribe handles POST …/subscribers/:subscriberId/unsubscribe
func (h *EmailHandler) Unsubscribe(c *gin.Context) {
	HandleGetEnvelope(c, "subscriber", func() (interface{}, error) {
		return h.svc.Unsubscribe(c.Request.Context(), GetUserFromContext(c), c.Param("id"), c.Param("subscriberId"))
	})
}

// DeleteSubscriber handles DELETE …/subscribers/:subscriberId
func (h *EmailHandler) DeleteSubscriber(c *gin.Context) {
	HandleDeleteEnvelope(c, "Subscriber deleted successfully", func() error {
		return h.svc.DeleteSubscriber(c.Request.Context(), GetUserFromContext(c), c.Param("id"), c.Param("subscriberId"))
	})
}

// DeleteSubscribers handles DELETE …/subscribers/bulk
func (h *EmailHandler) DeleteSubscribers(c *gin.Context) {
	var req BulkSubscriberRequest
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.svc.DeleteSubscribers(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req.SubscriberIDs)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Import handles POST /api/email-marketing/lists/:id/import
func (h *EmailHandler) Import(c *gin.Context) {
	var req ImportRequest
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.svc.Import(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req.Subscribers)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// maxCSVUploadBytes bounds the subscriber file accepted by ImportCSV
const maxCSVUploadBytes = 5 << 20

// ImportCSV handles POST /api/email-marketing/lists/:id/import/csv, a
// multipart form with a "file" part and a JSON "mapping" of column indexes.
func (h *EmailHandler) ImportCSV(c *gin.Context) {
	in := services.CSVImport{Mapping: c.PostForm("mapping")}
	if header, err := c.FormFile("file"); err == nil {
		if header.Size > maxCSVUploadBytes {
			RespondAppError(c, errors.BadRequest("CSV file must be smaller than %d MB", maxCSVUploadBytes>>20))
			return
		}
		f, err := header.Open()
		if err != nil {
			RespondAppError(c, errors.BadRequest("Invalid file upload"))
			return
		}
		defer f.Close()
		in.File = f
	}

	result, err := h.svc.ImportCSV(c.Request.Context(), GetUserFromContext(c), c.Param("id"), in)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Export handles GET /api/email-marketing/lists/:id/export
func (h *EmailHandler) Export(c *gin.Context) {
	filename, data, err := h.svc.Export(c.Request.Context(), GetUserFromContext(c), c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}
