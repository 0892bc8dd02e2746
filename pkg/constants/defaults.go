package constants

// Default values for system operations
const (
	SystemUserName      = "System"
	DefaultContactFirst = "Unknown"
	DefaultStageColor   = "#3B82F6"
	DefaultPipelineName = "Default Contact Pipeline"
	PipelineTypeContact = "CONTACT"
	FormEmbedPrefix     = "crm-form-"
	FormSuccessMessage  = "Thank you for your submission!"
	WhatsAppPlaceholder = "@whatsapp.placeholder"
	TrialDays           = 14
	UnlimitedLimit      = -1
)

// DefaultContactStage describes a stage of the pipeline created for new tenants.
type DefaultContactStage struct {
	Name  string
	Color string
}

var DefaultContactStages = []DefaultContactStage{
	{"New Lead", "#3B82F6"},
	{"Qualified", "#10B981"},
	{"Contacted", "#F59E0B"},
	{"Interested", "#8B5CF6"},
	{"Proposal Sent", "#F97316"},
	{"Negotiation", "#EF4444"},
	{"Closed Won", "#059669"},
	{"Closed Lost", "#6B7280"},
}

// Plan limit resource keys
const (
	LimitContacts     = "contacts"
	LimitDeals        = "deals"
	LimitCompanies    = "companies"
	LimitUsers        = "users"
	LimitForms        = "forms"
	LimitProducts     = "products"
	LimitAutomations  = "automations"
	LimitIntegrations = "integrations"
)

var LimitResources = []string{
	LimitContacts, LimitDeals, LimitCompanies, LimitUsers, LimitForms, LimitProducts, LimitAutomations,
}
