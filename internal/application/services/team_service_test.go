package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

func TestTenantRole(t *testing.T) {
	for _, r := range []constants.Role{
		constants.RoleTenantAdmin, constants.RoleManager, constants.RoleMarketer,
		constants.RoleSales, constants.RoleSupport, constants.RoleUser,
	} {
		assert.True(t, tenantRole(string(r)), "%s is grantable", r)
	}

	assert.False(t, tenantRole(string(constants.RoleSuperAdmin)))
	assert.False(t, tenantRole("OWNER"))
	assert.False(t, tenantRole(""))
}
