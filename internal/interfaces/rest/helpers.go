package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/interfaces/middleware"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// GetUserFromContext extracts the authenticated user from gin.Context
func GetUserFromContext(c *gin.Context) *auth.UserSession {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return &user
}

// RespondError sends a JSON error with an explicit status
func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		constants.ResponseError:   message,
		constants.ResponseMessage: message,
		constants.ResponseData:    nil,
	})
}

// RespondAppError sends a standardised JSON error response using pkg/errors.
// Unexpected errors are logged and reduced to a generic message.
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	message := errors.PublicMessage(err)

	if code >= http.StatusInternalServerError {
		glog.Errorf("ERROR [%d] %s %s: %v", code, c.Request.Method, c.Request.URL.Path, err)
	}

	body := gin.H{
		constants.ResponseError:   message,
		constants.ResponseMessage: message,
		constants.ResponseCode:    errors.GetErrorCode(err),
		constants.ResponseData:    nil,
	}
	if pl, ok := errors.AsPlanLimit(err); ok {
		body["planLimit"] = pl.Limit
	}
	c.JSON(code, body)
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.BadRequest("Invalid request body"))
		return false
	}
	return true
}

// pagination reads page and limit from the query string
func pagination(c *gin.Context, defaultLimit int) utils.Pagination {
	return utils.NewPagination(c.Query("page"), c.Query("limit"), defaultLimit)
}

// trimmedQuery returns a trimmed query parameter
func trimmedQuery(c *gin.Context, key string) string {
	return strings.TrimSpace(c.Query(key))
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}

// HandleListEnvelope executes a paged list action
// Response: { [key]: items, pagination: {...} }
func HandleListEnvelope(c *gin.Context, key string, action func() (interface{}, utils.Pagination, error)) {
	items, page, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: items, "pagination": page})
}

// HandleCreateEnvelope binds the body into req, runs the action and returns the
// created object under key with status 201.
func HandleCreateEnvelope(c *gin.Context, key string, req interface{}, action func() (interface{}, error)) {
	if !BindJSON(c, req) {
		return
	}
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{key: result})
}

// HandleUpdateEnvelope binds the body into req, runs the action and returns the
// updated object under key.
func HandleUpdateEnvelope(c *gin.Context, key string, req interface{}, action func() (interface{}, error)) {
	if !BindJSON(c, req) {
		return
	}
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}

// HandleDeleteEnvelope executes a delete action and returns a success message
// Response: { message: successMsg }
func HandleDeleteEnvelope(c *gin.Context, successMsg string, action func() error) {
	if err := action(); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.ResponseMessage: successMsg})
}
