package constants

// System permissions checked against the user's role.
const (
	PermManageSystem     = "system.manage_system"
	PermManageAllTenants = "system.manage_all_tenants"
	PermViewAuditLogs    = "system.view_audit_logs"
	PermManageTeam       = "team.manage_team"
)

// PermissionCategories maps each category to its actions. A permission string
// is "<category>.<action>".
var PermissionCategories = map[string][]string{
	"contacts":        {"view", "create", "edit", "delete", "export", "import", "manage_all"},
	"companies":       {"view", "create", "edit", "delete", "export", "manage_all"},
	"deals":           {"view", "create", "edit", "delete", "change_stage", "manage_all"},
	"tasks":           {"view", "create", "edit", "delete", "assign", "complete", "manage_all"},
	"products":        {"view", "create", "edit", "delete", "manage_inventory", "manage_all"},
	"invoices":        {"view", "create", "edit", "delete", "send", "mark_paid", "manage_all"},
	"quotations":      {"view", "create", "edit", "delete", "send", "convert", "manage_all"},
	"workflows":       {"view", "create", "edit", "delete", "execute", "manage_all"},
	"forms":           {"view", "create", "edit", "delete", "view_submissions", "manage_all"},
	"email_campaigns": {"view", "create", "edit", "delete", "send", "manage_all"},
	"landing_pages":   {"view", "create", "edit", "delete", "publish", "manage_all"},
	"analytics":       {"view_dashboard", "view_reports", "export_reports", "manage_all"},
	"settings":        {"view", "edit_business", "manage_integrations", "manage_pipelines", "manage_all"},
	"team_management": {"view_teams", "create_teams", "edit_teams", "delete_teams", "invite_members", "remove_members", "manage_roles", "manage_all"},
	"billing":         {"view", "manage_subscription", "view_invoices", "manage_all"},
}

// Permission set names.
const (
	PermissionSetAdmin     = "ADMIN"
	PermissionSetManager   = "MANAGER"
	PermissionSetSalesRep  = "SALES_REP"
	PermissionSetMarketing = "MARKETING"
	PermissionSetSupport   = "SUPPORT"
	PermissionSetViewer    = "VIEWER"
)

// DefaultPermissionSets holds the explicit grants of every non-admin set.
// ADMIN is expanded from PermissionCategories.
var DefaultPermissionSets = map[string][]string{
	PermissionSetManager: {
		"contacts.view", "contacts.create", "contacts.edit", "contacts.delete", "contacts.export", "contacts.manage_all",
		"companies.view", "companies.create", "companies.edit", "companies.delete", "companies.manage_all",
		"deals.view", "deals.create", "deals.edit", "deals.delete", "deals.change_stage", "deals.manage_all",
		"tasks.view", "tasks.create", "tasks.edit", "tasks.delete", "tasks.assign", "tasks.complete", "tasks.manage_all",
		"products.view", "products.create", "products.edit",
		"invoices.view", "invoices.create", "invoices.edit", "invoices.send",
		"quotations.view", "quotations.create", "quotations.edit", "quotations.send",
		"analytics.view_dashboard", "analytics.view_reports", "analytics.export_reports",
		"team_management.view_teams", "team_management.invite_members",
	},
	PermissionSetSalesRep: {
		"contacts.view", "contacts.create", "contacts.edit",
		"companies.view", "companies.create", "companies.edit",
		"deals.view", "deals.create", "deals.edit", "deals.change_stage",
		"tasks.view", "tasks.create", "tasks.edit", "tasks.complete",
		"products.view",
		"quotations.view", "quotations.create", "quotations.edit", "quotations.send",
		"analytics.view_dashboard",
	},
	PermissionSetMarketing: {
		"contacts.view", "contacts.create", "contacts.edit", "contacts.import",
		"forms.view", "forms.create", "forms.edit", "forms.delete", "forms.view_submissions", "forms.manage_all",
		"email_campaigns.view", "email_campaigns.create", "email_campaigns.edit", "email_campaigns.delete", "email_campaigns.send", "email_campaigns.manage_all",
		"landing_pages.view", "landing_pages.create", "landing_pages.edit", "landing_pages.delete", "landing_pages.publish", "landing_pages.manage_all",
		"analytics.view_dashboard", "analytics.view_reports",
	},
	PermissionSetSupport: {
		"contacts.view", "contacts.edit",
		"companies.view",
		"deals.view",
		"tasks.view", "tasks.create", "tasks.edit", "tasks.complete",
		"invoices.view",
		"analytics.view_dashboard",
	},
	PermissionSetViewer: {
		"contacts.view", "companies.view", "deals.view", "tasks.view",
		"products.view", "invoices.view", "quotations.view", "analytics.view_dashboard",
	},
}

// RolePermissionSet maps a role onto its default permission set.
var RolePermissionSet = map[Role]string{
	RoleSuperAdmin:  PermissionSetAdmin,
	RoleTenantAdmin: PermissionSetAdmin,
	RoleManager:     PermissionSetManager,
	RoleSales:       PermissionSetSalesRep,
	RoleMarketer:    PermissionSetMarketing,
	RoleSupport:     PermissionSetSupport,
	RoleUser:        PermissionSetViewer,
}
