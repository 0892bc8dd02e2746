package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

func TestHasPermission(t *testing.T) {
	ps := NewPermissionService()

	tests := []struct {
		name       string
		role       constants.Role
		permission string
		want       bool
	}{
		{"super admin holds everything", constants.RoleSuperAdmin, "billing.manage_all", true},
		{"tenant admin expands categories", constants.RoleTenantAdmin, "landing_pages.publish", true},
		{"sales creates deals", constants.RoleSales, "deals.create", true},
		{"sales cannot delete contacts", constants.RoleSales, "contacts.delete", false},
		{"marketer manages forms", constants.RoleMarketer, "forms.view_submissions", true},
		{"viewer is read only", constants.RoleUser, "contacts.create", false},
		{"unknown role", constants.Role("GUEST"), "contacts.view", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ps.HasPermission(tt.role, tt.permission))
		})
	}
}

func TestHasSystemPermission(t *testing.T) {
	ps := NewPermissionService()

	assert.True(t, ps.HasSystemPermission(constants.RoleTenantAdmin, constants.PermViewAuditLogs))
	assert.False(t, ps.HasSystemPermission(constants.RoleManager, constants.PermViewAuditLogs))
	assert.True(t, ps.HasSystemPermission(constants.RoleManager, constants.PermManageTeam))
	assert.False(t, ps.HasSystemPermission(constants.RoleTenantAdmin, constants.PermManageAllTenants))
}

func TestForRole(t *testing.T) {
	ps := NewPermissionService()

	rp := ps.ForRole(constants.RoleSupport)
	assert.Equal(t, constants.PermissionSetSupport, rp.PermissionSet)
	assert.Contains(t, rp.Permissions, "tasks.complete")
	assert.NotContains(t, rp.Permissions, constants.PermManageTeam)
	assert.IsIncreasing(t, rp.Permissions)

	admin := ps.ForRole(constants.RoleSuperAdmin)
	assert.Contains(t, admin.Permissions, constants.PermManageSystem)
	assert.Contains(t, admin.Permissions, "team_management.manage_roles")
}
