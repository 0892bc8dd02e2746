package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/tenantcrm/internal/application/services"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// TeamHandler lets tenant administrators manage their users
type TeamHandler struct {
	svc *services.TeamService
}

func NewTeamHandler(svc *services.TeamService) *TeamHandler {
	return &TeamHandler{svc: svc}
}

// List handles GET /api/team/users
func (h *TeamHandler) List(c *gin.Context) {
	HandleListEnvelope(c, "users", func() (interface{}, utils.Pagination, error) {
		return h.svc.List(c.Request.Context(), GetUserFromContext(c), trimmedQuery(c, "search"), c.Query("role"),
			pagination(c, constants.DefaultPageLimit))
	})
}

// Create handles POST /api/team/users
func (h *TeamHandler) Create(c *gin.Context) {
	var req services.CreateUserRequest
	HandleCreateEnvelope(c, "user", &req, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), GetUserFromContext(c), req)
	})
}

// Update handles PUT /api/team/users/:id
func (h *TeamHandler) Update(c *gin.Context) {
	var req services.UpdateUserRequest
	HandleUpdateEnvelope(c, "user", &req, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), GetUserFromContext(c), c.Param("id"), req)
	})
}
