package services

import (
	"sort"
	"sync"

	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// PermissionService resolves a role to its permission set.
//
// Evaluation order:
//  1. SUPER_ADMIN holds every category permission and every system permission
//  2. The role's default permission set (ADMIN expands to every category action)
//  3. System permissions are granted per role, independent of the set
type PermissionService struct {
	sets map[string]map[string]bool
	mu   sync.RWMutex
}

// systemPermissionRoles lists the roles holding each system permission
var systemPermissionRoles = map[string][]constants.Role{
	constants.PermManageSystem:     {constants.RoleSuperAdmin},
	constants.PermManageAllTenants: {constants.RoleSuperAdmin},
	constants.PermViewAuditLogs:    {constants.RoleSuperAdmin, constants.RoleTenantAdmin},
	constants.PermManageTeam:       {constants.RoleSuperAdmin, constants.RoleTenantAdmin, constants.RoleManager},
}

func NewPermissionService() *PermissionService {
	ps := &PermissionService{sets: make(map[string]map[string]bool)}
	ps.load()
	return ps
}

func (ps *PermissionService) load() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	admin := make(map[string]bool)
	for category, actions := range constants.PermissionCategories {
		for _, action := range actions {
			admin[category+"."+action] = true
		}
	}
	ps.sets[constants.PermissionSetAdmin] = admin

	for name, perms := range constants.DefaultPermissionSets {
		set := make(map[string]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		ps.sets[name] = set
	}
}

// HasPermission checks a category permission such as "contacts.create"
func (ps *PermissionService) HasPermission(role constants.Role, permission string) bool {
	if role == constants.RoleSuperAdmin {
		return true
	}
	setName, ok := constants.RolePermissionSet[role]
	if !ok {
		return false
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.sets[setName][permission]
}

// HasSystemPermission checks a platform permission such as "system.view_audit_logs"
func (ps *PermissionService) HasSystemPermission(role constants.Role, permission string) bool {
	return constants.HasRole(role, systemPermissionRoles[permission]...)
}

// Permissions lists every permission the role holds, sorted
func (ps *PermissionService) Permissions(role constants.Role) []string {
	var out []string
	if role == constants.RoleSuperAdmin {
		ps.mu.RLock()
		for p := range ps.sets[constants.PermissionSetAdmin] {
			out = append(out, p)
		}
		ps.mu.RUnlock()
	} else if setName, ok := constants.RolePermissionSet[role]; ok {
		ps.mu.RLock()
		for p := range ps.sets[setName] {
			out = append(out, p)
		}
		ps.mu.RUnlock()
	}
	for perm := range systemPermissionRoles {
		if ps.HasSystemPermission(role, perm) {
			out = append(out, perm)
		}
	}
	sort.Strings(out)
	return out
}

// RolePermissions is the response of GET /api/permissions/me
type RolePermissions struct {
	Role          constants.Role `json:"role"`
	PermissionSet string         `json:"permissionSet"`
	Permissions   []string       `json:"permissions"`
}

// ForRole describes the caller's effective permissions
func (ps *PermissionService) ForRole(role constants.Role) RolePermissions {
	return RolePermissions{
		Role:          role,
		PermissionSet: constants.RolePermissionSet[role],
		Permissions:   ps.Permissions(role),
	}
}
