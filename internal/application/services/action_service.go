package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// contactFieldColumns maps updateFields keys of UPDATE_CONTACT to columns
var contactFieldColumns = map[string]string{
	"firstName": "first_name",
	"lastName":  "last_name",
	"email":     "email",
	"phone":     "phone",
	"jobTitle":  "job_title",
	"status":    "status",
	"source":    "source",
	"notes":     "notes",
	"leadScore": "lead_score",
}

// ActionService runs the CRM side effects of workflow actions
type ActionService struct {
	contacts   *persistence.ContactRepository
	deals      *persistence.DealRepository
	activities *persistence.ActivityRepository
	pipelines  *persistence.PipelineRepository
	users      *persistence.UserRepository
	waitCap    time.Duration
}

// NewActionService creates the handlers. waitCap bounds WAIT actions and action delays.
func NewActionService(contacts *persistence.ContactRepository, deals *persistence.DealRepository,
	activities *persistence.ActivityRepository, pipelines *persistence.PipelineRepository,
	users *persistence.UserRepository, waitCap time.Duration) *ActionService {
	return &ActionService{
		contacts:   contacts,
		deals:      deals,
		activities: activities,
		pipelines:  pipelines,
		users:      users,
		waitCap:    waitCap,
	}
}

// Register adds every built-in action type to reg
func (as *ActionService) Register(reg *ActionHandlerRegistry) {
	for actionType, run := range map[string]func(context.Context, map[string]interface{}, *ExecutionContext) (map[string]interface{}, error){
		constants.ActionUpdateContact:      as.updateContact,
		constants.ActionUpdateContactStage: as.updateContactStage,
		constants.ActionAddContactTag:      as.addContactTag,
		constants.ActionUpdateContactScore: as.updateContactScore,
		constants.ActionCreateDeal:         as.createDeal,
		constants.ActionCreateTask:         as.createTask,
		constants.ActionCreateActivity:     as.createActivity,
		constants.ActionAssignContact:      as.assignContact,
		constants.ActionSendEmail:          as.sendEmail,
		constants.ActionSendNotification:   as.sendNotification,
		constants.ActionWait:               as.wait,
	} {
		reg.Register(actionFunc{actionType: actionType, run: run})
	}
}

// Sleep blocks for d capped at the wait cap, or until ctx is done
func (as *ActionService) Sleep(ctx context.Context, d time.Duration) error {
	if d > as.waitCap {
		d = as.waitCap
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// contactID resolves the contact an action applies to
func contactID(ec *ExecutionContext) string {
	if ec.EntityType == constants.EntityContact {
		return ec.EntityID
	}
	if id, ok := ec.TriggerData["contactId"].(string); ok {
		return id
	}
	return ""
}

func (as *ActionService) loadContact(ctx context.Context, ec *ExecutionContext) (*models.Contact, error) {
	id := contactID(ec)
	if id == "" {
		return nil, fmt.Errorf("Contact not found")
	}
	c, err := as.contacts.GetByID(ctx, ec.TenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("Contact not found")
	}
	return c, nil
}

// tenantAssignee returns the configured assignedTo after checking it belongs to the tenant
func (as *ActionService) tenantAssignee(ctx context.Context, config map[string]interface{}, tenantID string) (string, error) {
	id := GetConfigString(config, "assignedTo")
	if id == "" {
		return "", nil
	}
	u, err := as.users.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return "", fmt.Errorf("failed to load assignee: %w", err)
	}
	if u == nil {
		return "", fmt.Errorf("Assigned user %s not found", id)
	}
	return u.ID, nil
}

func mergeTags(existing []string, add ...string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, t := range append(append([]string{}, existing...), add...) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (as *ActionService) updateContact(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	c, err := as.loadContact(ctx, ec)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if updates, ok := GetConfigMap(config, "updateFields"); ok {
		for key, v := range updates {
			if column, known := contactFieldColumns[key]; known {
				fields[column] = v
			}
		}
	}
	if tags, ok := GetConfigStrings(config, "addTags"); ok {
		fields["tags"] = persistence.JSON(mergeTags(c.Tags, tags...))
	}
	if score, ok := GetConfigNumber(config, "leadScore"); ok {
		fields["lead_score"] = int(score)
	}
	if err := as.contacts.Update(ctx, ec.TenantID, c.ID, fields); err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}

	updated := make([]string, 0, len(fields))
	for column := range fields {
		updated = append(updated, column)
	}
	return map[string]interface{}{"contactId": c.ID, "updated": updated}, nil
}

func (as *ActionService) updateContactStage(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	stageID, err := GetConfigStringRequired(config, "stageId")
	if err != nil {
		return nil, err
	}
	c, err := as.loadContact(ctx, ec)
	if err != nil {
		return nil, err
	}
	stage, err := as.pipelines.GetStage(ctx, ec.TenantID, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage: %w", err)
	}
	if stage == nil {
		return nil, fmt.Errorf("stage %s not found", stageID)
	}
	if err := as.contacts.Update(ctx, ec.TenantID, c.ID, map[string]interface{}{
		"stage_id":      stageID,
		"last_activity": time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("failed to update contact stage: %w", err)
	}
	return map[string]interface{}{"contactId": c.ID, "newStageId": stageID}, nil
}

func (as *ActionService) addContactTag(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	tag, err := GetConfigStringRequired(config, "tag")
	if err != nil {
		return nil, err
	}
	c, err := as.loadContact(ctx, ec)
	if err != nil {
		return nil, err
	}
	if err := as.contacts.SetTags(ctx, ec.TenantID, c.ID, mergeTags(c.Tags, tag)); err != nil {
		return nil, fmt.Errorf("failed to tag contact: %w", err)
	}
	return map[string]interface{}{"contactId": c.ID, "tag": tag}, nil
}

func (as *ActionService) updateContactScore(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	c, err := as.loadContact(ctx, ec)
	if err != nil {
		return nil, err
	}
	value, _ := GetConfigNumber(config, "value")
	score := float64(c.LeadScore)
	switch GetConfigString(config, "operation") {
	case "add":
		score += value
	case "subtract":
		score -= value
	case "set":
		score = value
	case "multiply":
		if _, ok := GetConfigNumber(config, "value"); !ok {
			value = 1
		}
		score *= value
	}
	newScore := int(score)
	if newScore < 0 {
		newScore = 0
	}
	if err := as.contacts.Update(ctx, ec.TenantID, c.ID, map[string]interface{}{"lead_score": newScore}); err != nil {
		return nil, fmt.Errorf("failed to update lead score: %w", err)
	}
	return map[string]interface{}{"contactId": c.ID, "oldScore": c.LeadScore, "newScore": newScore}, nil
}

func (as *ActionService) createDeal(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	assignee, err := as.tenantAssignee(ctx, config, ec.TenantID)
	if err != nil {
		return nil, err
	}
	c, err := as.loadContact(ctx, ec)
	if err != nil {
		return nil, err
	}
	name := GetConfigString(config, "dealName")
	if name == "" {
		name = "Opportunity - " + c.FullName()
	}
	stage := GetConfigString(config, "stage")
	if !constants.Contains(constants.DealStages, stage) {
		stage = constants.DealStageProspecting
	}
	description := GetConfigString(config, "description")
	if description == "" {
		description = "Auto-generated from workflow"
	}
	value, _ := GetConfigNumber(config, "estimatedValue")

	now := time.Now().UTC()
	deal := &models.Deal{
		ID:           utils.GenerateID(),
		TenantID:     ec.TenantID,
		Name:         name,
		Value:        utils.ToCents(value),
		Stage:        stage,
		Probability:  GetConfigInt(config, "probability", 0),
		Description:  &description,
		Tags:         []string{},
		AssignedTo:   stringPtr(assignee),
		ContactID:    &c.ID,
		CompanyID:    c.CompanyID,
		LastActivity: &now,
	}
	if err := as.deals.Create(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}
	return map[string]interface{}{"dealId": deal.ID, "contactId": c.ID}, nil
}

// relate links an activity to the triggering entity
func relate(a *models.Activity, ec *ExecutionContext) {
	id := ec.EntityID
	switch ec.EntityType {
	case constants.EntityContact:
		a.ContactID = &id
	case constants.EntityDeal:
		a.DealID = &id
	case constants.EntityCompany:
		a.CompanyID = &id
	default:
		a.ContactID = stringPtr(contactID(ec))
	}
}

func (as *ActionService) firstAssignee(ctx context.Context, tenantID string) (string, error) {
	ids, err := as.users.ListAssignable(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("failed to load users: %w", err)
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

func (as *ActionService) createTask(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	assignee, err := as.tenantAssignee(ctx, config, ec.TenantID)
	if err != nil {
		return nil, err
	}
	if assignee == "" {
		first, err := as.firstAssignee(ctx, ec.TenantID)
		if err != nil {
			return nil, err
		}
		if first == "" {
			return nil, fmt.Errorf("No available user to assign task to")
		}
		assignee = first
	}

	title := GetConfigString(config, "title")
	if title == "" {
		title = "Workflow generated task"
	}
	description := GetConfigString(config, "description")
	if description == "" {
		description = "Auto-generated from workflow"
	}
	task := &models.Activity{
		ID:          utils.GenerateID(),
		TenantID:    ec.TenantID,
		Type:        constants.ActivityTask,
		Title:       title,
		Description: &description,
		UserID:      &assignee,
	}
	if days, ok := GetConfigNumber(config, "dueInDays"); ok && days > 0 {
		due := time.Now().UTC().Add(time.Duration(days * float64(24*time.Hour)))
		task.ScheduledAt = &due
	}
	relate(task, ec)
	if err := as.activities.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return map[string]interface{}{"taskId": task.ID, "assignedTo": assignee}, nil
}

func (as *ActionService) createActivity(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	userID := ec.UserID
	if userID == "" {
		first, err := as.firstAssignee(ctx, ec.TenantID)
		if err != nil {
			return nil, err
		}
		if first == "" {
			return nil, fmt.Errorf("No available user to associate activity with")
		}
		userID = first
	}

	activityType := GetConfigString(config, "type")
	if !constants.Contains(constants.ActivityTypes, activityType) {
		activityType = constants.ActivityNote
	}
	title := GetConfigString(config, "title")
	if title == "" {
		title = "Workflow activity"
	}
	description := GetConfigString(config, "description")
	if description == "" {
		description = "Auto-generated from workflow"
	}
	now := time.Now().UTC()
	a := &models.Activity{
		ID:          utils.GenerateID(),
		TenantID:    ec.TenantID,
		Type:        activityType,
		Title:       title,
		Description: &description,
		IsCompleted: true,
		CompletedAt: &now,
		UserID:      &userID,
	}
	relate(a, ec)
	if err := as.activities.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}
	return map[string]interface{}{"activityId": a.ID}, nil
}

func (as *ActionService) assignContact(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	assignee, err := as.tenantAssignee(ctx, config, ec.TenantID)
	if err != nil {
		return nil, err
	}
	c, err := as.loadContact(ctx, ec)
	if err != nil {
		return nil, err
	}
	switch GetConfigString(config, "assignmentRule") {
	case "round-robin":
		ids, err := as.users.ListAssignable(ctx, ec.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		if len(ids) > 0 {
			total, err := as.contacts.CountByTenant(ctx, ec.TenantID)
			if err != nil {
				return nil, fmt.Errorf("failed to count contacts: %w", err)
			}
			assignee = ids[total%int64(len(ids))]
		}
	case "load-balanced":
		id, err := as.users.LeastLoadedAssignee(ctx, ec.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to pick assignee: %w", err)
		}
		if id != "" {
			assignee = id
		}
	}

	if assignee != "" {
		if err := as.contacts.Update(ctx, ec.TenantID, c.ID, map[string]interface{}{"assigned_to": assignee}); err != nil {
			return nil, fmt.Errorf("failed to assign contact: %w", err)
		}
	}
	return map[string]interface{}{"contactId": c.ID, "assignedTo": assignee}, nil
}

// sendEmail records the message that would be sent. Delivery is handled outside the CRM.
func (as *ActionService) sendEmail(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	c, err := as.loadContact(ctx, ec)
	if err != nil {
		return nil, err
	}
	if c.Email == nil || *c.Email == "" {
		return nil, fmt.Errorf("Contact email not found")
	}
	subject := GetConfigString(config, "subject")
	glog.Infof("Workflow %s: email %q queued for %s", ec.WorkflowID, subject, *c.Email)
	return map[string]interface{}{
		"to":       *c.Email,
		"subject":  subject,
		"template": GetConfigString(config, "templateId"),
		"sentAt":   time.Now().UTC(),
		"status":   "sent",
	}, nil
}

func (as *ActionService) sendNotification(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	message := GetConfigString(config, "message")
	channels, _ := GetConfigStrings(config, "channels")
	glog.Infof("Workflow %s: notify %s via [%s]: %s", ec.WorkflowID,
		GetConfigString(config, "recipientRole"), strings.Join(channels, ", "), message)
	return map[string]interface{}{"sent": true, "message": message}, nil
}

// wait sleeps delay units (minutes, hours or days), bounded by the wait cap
func (as *ActionService) wait(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (map[string]interface{}, error) {
	delay, ok := GetConfigNumber(config, "delay")
	if !ok {
		delay = 1
	}
	unit := time.Minute
	switch GetConfigString(config, "unit") {
	case "hours":
		unit = time.Hour
	case "days":
		unit = 24 * time.Hour
	}
	d := time.Duration(delay * float64(unit))
	if err := as.Sleep(ctx, d); err != nil {
		return nil, err
	}
	return map[string]interface{}{"waited": d.Milliseconds()}, nil
}
