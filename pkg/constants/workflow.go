package constants

// Workflow statuses
const (
	WorkflowStatusDraft  = "DRAFT"
	WorkflowStatusActive = "ACTIVE"
	WorkflowStatusPaused = "PAUSED"
)

// Workflow trigger types
const (
	TriggerContactCreated          = "CONTACT_CREATED"
	TriggerContactUpdated          = "CONTACT_UPDATED"
	TriggerContactStageChanged     = "CONTACT_STAGE_CHANGED"
	TriggerContactScoreChanged     = "CONTACT_SCORE_CHANGED"
	TriggerDealCreated             = "DEAL_CREATED"
	TriggerDealStageChanged        = "DEAL_STAGE_CHANGED"
	TriggerDealWon                 = "DEAL_WON"
	TriggerDealLost                = "DEAL_LOST"
	TriggerFormSubmitted           = "FORM_SUBMITTED"
	TriggerEmailOpened             = "EMAIL_OPENED"
	TriggerWhatsAppMessageReceived = "WHATSAPP_MESSAGE_RECEIVED"
	TriggerTimeBased               = "TIME_BASED"
	TriggerRecurring               = "RECURRING"
	TriggerAPICall                 = "API_CALL"
)

var TriggerTypes = []string{
	TriggerContactCreated, TriggerContactUpdated, TriggerContactStageChanged, TriggerContactScoreChanged,
	TriggerDealCreated, TriggerDealStageChanged, TriggerDealWon, TriggerDealLost,
	TriggerFormSubmitted, TriggerEmailOpened, TriggerWhatsAppMessageReceived,
	TriggerTimeBased, TriggerRecurring, TriggerAPICall,
}

// IsScheduledTrigger reports whether the trigger is fired by the scheduler.
func IsScheduledTrigger(t string) bool {
	return t == TriggerTimeBased || t == TriggerRecurring
}

// Workflow action types
const (
	ActionUpdateContact      = "UPDATE_CONTACT"
	ActionUpdateContactStage = "UPDATE_CONTACT_STAGE"
	ActionAddContactTag      = "ADD_CONTACT_TAG"
	ActionUpdateContactScore = "UPDATE_CONTACT_SCORE"
	ActionCreateDeal         = "CREATE_DEAL"
	ActionCreateTask         = "CREATE_TASK"
	ActionCreateActivity     = "CREATE_ACTIVITY"
	ActionAssignContact      = "ASSIGN_CONTACT"
	ActionSendEmail          = "SEND_EMAIL"
	ActionSendNotification   = "SEND_NOTIFICATION"
	ActionWait               = "WAIT"
)

var ActionTypes = []string{
	ActionUpdateContact, ActionUpdateContactStage, ActionAddContactTag, ActionUpdateContactScore,
	ActionCreateDeal, ActionCreateTask, ActionCreateActivity, ActionAssignContact,
	ActionSendEmail, ActionSendNotification, ActionWait,
}

// Execution statuses
const (
	ExecutionRunning   = "RUNNING"
	ExecutionCompleted = "COMPLETED"
	ExecutionFailed    = "FAILED"
)

// Entity types carried by trigger events
const (
	EntityContact  = "contact"
	EntityDeal     = "deal"
	EntityCompany  = "company"
	EntityForm     = "form"
	EntityWhatsApp = "whatsapp_conversation"
	EntityWorkflow = "workflow"
)

// Scheduler guards
const (
	ScheduleMaxRuntimeMins = 10
	WaitActionCap          = 5 // seconds
)
