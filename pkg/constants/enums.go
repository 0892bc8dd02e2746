package constants

// Contact statuses
const (
	ContactStatusLead     = "LEAD"
	ContactStatusProspect = "PROSPECT"
	ContactStatusCustomer = "CUSTOMER"
	ContactStatusInactive = "INACTIVE"
)

// Deal stages
const (
	DealStageProspecting   = "PROSPECTING"
	DealStageQualification = "QUALIFICATION"
	DealStageProposal      = "PROPOSAL"
	DealStageNegotiation   = "NEGOTIATION"
	DealStageClosedWon     = "CLOSED_WON"
	DealStageClosedLost    = "CLOSED_LOST"
)

// DealStages is ordered by pipeline position.
var DealStages = []string{
	DealStageProspecting, DealStageQualification, DealStageProposal,
	DealStageNegotiation, DealStageClosedWon, DealStageClosedLost,
}

// Activity types
const (
	ActivityCall            = "CALL"
	ActivityEmail           = "EMAIL"
	ActivityMeeting         = "MEETING"
	ActivityTask            = "TASK"
	ActivityNote            = "NOTE"
	ActivitySMS             = "SMS"
	ActivityLinkedInMessage = "LINKEDIN_MESSAGE"
	ActivityDemo            = "DEMO"
	ActivityFollowUp        = "FOLLOW_UP"
	ActivityProposalSent    = "PROPOSAL_SENT"
	ActivityContractSent    = "CONTRACT_SENT"
	ActivityPaymentReceived = "PAYMENT_RECEIVED"
)

var ActivityTypes = []string{
	ActivityCall, ActivityEmail, ActivityMeeting, ActivityTask, ActivityNote, ActivitySMS,
	ActivityLinkedInMessage, ActivityDemo, ActivityFollowUp, ActivityProposalSent,
	ActivityContractSent, ActivityPaymentReceived,
}

// Bulk activity actions
const (
	BulkActionComplete   = "complete"
	BulkActionIncomplete = "incomplete"
	BulkActionDelete     = "delete"
)

// Email subscriber statuses
const (
	SubscriberPending      = "PENDING"
	SubscriberActive       = "ACTIVE"
	SubscriberUnsubscribed = "UNSUBSCRIBED"
	SubscriberBounced      = "BOUNCED"
)

// Landing page statuses
const (
	PageStatusDraft     = "DRAFT"
	PageStatusPublished = "PUBLISHED"
	PageStatusArchived  = "ARCHIVED"
)

// Tenant statuses
const (
	TenantStatusActive    = "ACTIVE"
	TenantStatusTrial     = "TRIAL"
	TenantStatusSuspended = "SUSPENDED"
)

// Subscription statuses
const (
	SubscriptionTrialing = "TRIALING"
	SubscriptionActive   = "ACTIVE"
	SubscriptionCanceled = "CANCELED"
)

// WhatsApp
const (
	ConversationActive   = "ACTIVE"
	ConversationArchived = "ARCHIVED"

	IntegrationActive   = "ACTIVE"
	IntegrationInactive = "INACTIVE"

	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"

	MessageReceived  = "RECEIVED"
	MessageSent      = "SENT"
	MessageDelivered = "DELIVERED"
	MessageRead      = "READ"
	MessageFailed    = "FAILED"
)

// Audit actions
const (
	AuditCreate            = "CREATE"
	AuditUpdate            = "UPDATE"
	AuditDelete            = "DELETE"
	AuditImport            = "IMPORT"
	AuditLogin             = "LOGIN"
	AuditSignup            = "SIGNUP"
	AuditPublish           = "PUBLISH"
	AuditDuplicate         = "DUPLICATE"
	AuditWorkflowToggled   = "WORKFLOW_TOGGLED"
	AuditPlanUpgraded      = "PLAN_UPGRADED"
	AuditTenantCreated     = "CREATE_TENANT"
	AuditTenantUpdated     = "UPDATE_TENANT"
	AuditIntegrationCreate = "CREATE_INTEGRATION"
)

// Audit resources
const (
	ResourceContact     = "Contact"
	ResourceDeal        = "Deal"
	ResourceCompany     = "Company"
	ResourceWorkflow    = "Workflow"
	ResourceLandingPage = "LandingPage"
	ResourceIntegration = "WhatsAppIntegration"
	ResourceTenant      = "Tenant"
	ResourcePlan        = "Plan"
	ResourceUser        = "User"
	ResourceEmailList   = "EmailList"
	ResourceForm        = "Form"
)

// Contains reports whether v is in list.
func Contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
