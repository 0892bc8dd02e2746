package services

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
)

func TestRequireSuperAdmin(t *testing.T) {
	assert.NoError(t, requireSuperAdmin(GetTestUser(constants.RoleSuperAdmin)))

	err := requireSuperAdmin(GetTestUser(constants.RoleTenantAdmin))
	assert.Equal(t, http.StatusForbidden, errors.GetHTTPStatus(err))
	assert.Equal(t, "Access denied", err.Error())

	assert.Error(t, requireSuperAdmin(nil))
}
