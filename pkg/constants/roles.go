package constants

// Role is the coarse role stored on a user row.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleManager     Role = "MANAGER"
	RoleMarketer    Role = "MARKETER"
	RoleSales       Role = "SALES"
	RoleSupport     Role = "SUPPORT"
	RoleUser        Role = "USER"
)

// AllRoles lists every assignable role.
var AllRoles = []Role{
	RoleSuperAdmin, RoleTenantAdmin, RoleManager, RoleMarketer, RoleSales, RoleSupport, RoleUser,
}

// IsValidRole checks a role name.
func IsValidRole(r string) bool {
	for _, role := range AllRoles {
		if string(role) == r {
			return true
		}
	}
	return false
}

// Role gates used by handlers that are not permission-string based.
var (
	WorkflowManagerRoles    = []Role{RoleSuperAdmin, RoleTenantAdmin, RoleManager}
	MarketingManagerRoles   = []Role{RoleSuperAdmin, RoleTenantAdmin, RoleManager, RoleMarketer}
	TenantAdministerRoles   = []Role{RoleSuperAdmin, RoleTenantAdmin}
	WorkflowAssignableRoles = []Role{RoleTenantAdmin, RoleManager, RoleSales}
)

// HasRole reports whether r is one of allowed.
func HasRole(r Role, allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
