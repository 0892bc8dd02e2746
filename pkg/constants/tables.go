package constants

// Table names. Tenant-scoped tables carry a tenant_id column; the global ones are
// listed in GlobalTables.
const (
	TablePlan         = "plans"
	TableTenant       = "tenants"
	TableSubscription = "subscriptions"
	TableUser         = "users"
	TableSession      = "sessions"

	TablePipeline     = "pipelines"
	TableContactStage = "contact_stages"
	TableCompany      = "companies"
	TableContact      = "contacts"
	TableDeal         = "deals"
	TableActivity     = "activities"

	TableWorkflow             = "workflows"
	TableWorkflowAction       = "workflow_actions"
	TableWorkflowExecution    = "workflow_executions"
	TableWorkflowExecutionLog = "workflow_execution_logs"

	TableEmailList       = "email_lists"
	TableEmailSubscriber = "email_subscribers"
	TableForm            = "forms"
	TableFormSubmission  = "form_submissions"
	TableLandingPage     = "landing_pages"

	TableWhatsAppIntegration  = "whatsapp_integrations"
	TableWhatsAppConversation = "whatsapp_conversations"
	TableWhatsAppMessage      = "whatsapp_messages"

	TableAuditLog = "audit_logs"

	// TableSchemaMigrations is owned by golang-migrate.
	TableSchemaMigrations = "schema_migrations"
)

// FieldTenantID is the tenant scoping column
const FieldTenantID = "tenant_id"

// GlobalTables are not scoped by tenant_id. Child tables reached through a
// tenant-scoped parent are listed here too.
var GlobalTables = map[string]bool{
	TablePlan:                 true,
	TableTenant:               true,
	TableUser:                 true,
	TableSession:              true,
	TableSchemaMigrations:     true,
	TableWorkflowAction:       true,
	TableWorkflowExecution:    true,
	TableWorkflowExecutionLog: true,
	TableEmailSubscriber:      true,
	TableWhatsAppMessage:      true,
}

// IsTenantScoped reports whether rows of the table must carry a tenant_id.
func IsTenantScoped(table string) bool {
	return !GlobalTables[table]
}
