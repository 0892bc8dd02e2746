package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexuscrm/tenantcrm/internal/domain/events"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// scoreChangeThreshold is the minimum lead score movement that fires CONTACT_SCORE_CHANGED
const scoreChangeThreshold = 10

const contactActivityLimit = 50

var contactStatuses = []string{
	constants.ContactStatusLead, constants.ContactStatusProspect,
	constants.ContactStatusCustomer, constants.ContactStatusInactive,
}

// ContactService implements contact CRUD with plan limits and workflow events
type ContactService struct {
	contacts   *persistence.ContactRepository
	companies  *persistence.CompanyRepository
	deals      *persistence.DealRepository
	activities *persistence.ActivityRepository
	pipelines  *PipelineService
	limits     ports.LimitChecker
	events     ports.EventPublisher
	auditor    ports.Auditor
}

func NewContactService(contacts *persistence.ContactRepository, companies *persistence.CompanyRepository,
	deals *persistence.DealRepository, activities *persistence.ActivityRepository, pipelines *PipelineService,
	limits ports.LimitChecker, events ports.EventPublisher, auditor ports.Auditor) *ContactService {
	return &ContactService{
		contacts:   contacts,
		companies:  companies,
		deals:      deals,
		activities: activities,
		pipelines:  pipelines,
		limits:     limits,
		events:     events,
		auditor:    auditor,
	}
}

// ContactQuery filters the contact list. "ALL" disables a filter.
type ContactQuery struct {
	Search string
	Status string
	Source string
	Page   utils.Pagination
}

// ContactInput is the create payload
type ContactInput struct {
	FirstName  string   `json:"firstName"`
	LastName   *string  `json:"lastName"`
	Email      *string  `json:"email"`
	Phone      *string  `json:"phone"`
	JobTitle   *string  `json:"jobTitle"`
	Status     string   `json:"status"`
	Source     *string  `json:"source"`
	Notes      *string  `json:"notes"`
	LeadScore  int      `json:"leadScore"`
	Tags       []string `json:"tags"`
	CompanyID  *string  `json:"companyId"`
	StageID    *string  `json:"stageId"`
	AssignedTo *string  `json:"assignedTo"`
}

// ContactUpdate is the partial update payload; nil fields are left unchanged
type ContactUpdate struct {
	FirstName  *string   `json:"firstName"`
	LastName   *string   `json:"lastName"`
	Email      *string   `json:"email"`
	Phone      *string   `json:"phone"`
	JobTitle   *string   `json:"jobTitle"`
	Status     *string   `json:"status"`
	Source     *string   `json:"source"`
	Notes      *string   `json:"notes"`
	LeadScore  *int      `json:"leadScore"`
	Tags       *[]string `json:"tags"`
	CompanyID  *string   `json:"companyId"`
	StageID    *string   `json:"stageId"`
	AssignedTo *string   `json:"assignedTo"`
}

// ContactDetail is the response of GET /api/contacts/:id
type ContactDetail struct {
	Contact *models.Contact       `json:"contact"`
	Stages  []models.ContactStage `json:"stages"`
}

func allFilter(v string) string {
	if strings.EqualFold(v, "ALL") {
		return ""
	}
	return v
}

// List returns a page of contacts, newest first
func (s *ContactService) List(ctx context.Context, user *auth.UserSession, q ContactQuery) ([]models.Contact, utils.Pagination, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, q.Page, err
	}
	contacts, total, err := s.contacts.List(ctx, persistence.ContactFilter{
		TenantID: tenantID,
		Search:   strings.TrimSpace(q.Search),
		Status:   allFilter(q.Status),
		Source:   allFilter(q.Source),
		Page:     q.Page.Page,
		Limit:    q.Page.Limit,
	})
	if err != nil {
		return nil, q.Page, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, q.Page.WithTotal(total), nil
}

// Create stores a contact after the plan check
func (s *ContactService) Create(ctx context.Context, user *auth.UserSession, in ContactInput) (*models.Contact, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if err := s.limits.EnsureWithinLimit(ctx, tenantID, constants.LimitContacts, 1); err != nil {
		return nil, err
	}

	firstName := strings.TrimSpace(in.FirstName)
	if firstName == "" {
		return nil, errors.BadRequest("First name is required")
	}
	status := in.Status
	if status == "" {
		status = constants.ContactStatusLead
	}
	if !constants.Contains(contactStatuses, status) {
		return nil, errors.BadRequest("Invalid contact status")
	}

	email, err := s.checkEmail(ctx, tenantID, in.Email, "")
	if err != nil {
		return nil, err
	}
	if err := s.checkCompany(ctx, tenantID, in.CompanyID); err != nil {
		return nil, err
	}
	if err := s.checkStage(ctx, tenantID, in.StageID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	assigned := in.AssignedTo
	if assigned == nil || *assigned == "" {
		assigned = &user.ID
	}
	contact := &models.Contact{
		ID:           utils.GenerateID(),
		TenantID:     tenantID,
		FirstName:    firstName,
		LastName:     in.LastName,
		Email:        email,
		Phone:        in.Phone,
		JobTitle:     in.JobTitle,
		Status:       status,
		Source:       in.Source,
		Notes:        in.Notes,
		LeadScore:    in.LeadScore,
		Tags:         in.Tags,
		AssignedTo:   assigned,
		CompanyID:    emptyToNil(in.CompanyID),
		StageID:      emptyToNil(in.StageID),
		LastActivity: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if contact.Tags == nil {
		contact.Tags = []string{}
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	s.events.PublishAsync(contactEvent(constants.TriggerContactCreated, user, contact, contactEventData(contact)))
	s.auditor.Record(ctx, auditEntry(user, constants.AuditCreate, constants.ResourceContact, contact.ID,
		contactEventData(contact), nil))
	return contact, nil
}

// Get returns a contact with its company, stage, deals and recent activities
func (s *ContactService) Get(ctx context.Context, user *auth.UserSession, id string) (*ContactDetail, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	contact, err := s.contacts.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return nil, errors.NewNotFoundError("Contact", id)
	}

	if contact.StageID != nil {
		if contact.Stage, err = s.pipelines.pipelines.GetStage(ctx, tenantID, *contact.StageID); err != nil {
			return nil, fmt.Errorf("failed to load stage: %w", err)
		}
	}
	if contact.Deals, err = s.deals.ListByContact(ctx, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to load deals: %w", err)
	}
	if contact.Activities, _, err = s.activities.List(ctx, persistence.ActivityFilter{
		TenantID:  tenantID,
		ContactID: id,
		Page:      1,
		Limit:     contactActivityLimit,
	}); err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}

	pipeline, err := s.pipelines.EnsureDefault(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &ContactDetail{Contact: contact, Stages: pipeline.Stages}, nil
}

// Update applies a partial update and fires the matching workflow events
func (s *ContactService) Update(ctx context.Context, user *auth.UserSession, id string, in ContactUpdate) (*models.Contact, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	existing, err := s.contacts.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if existing == nil {
		return nil, errors.NewNotFoundError("Contact", id)
	}

	fields := map[string]interface{}{}
	updated := *existing

	if in.FirstName != nil {
		name := strings.TrimSpace(*in.FirstName)
		if name == "" {
			return nil, errors.BadRequest("First name is required")
		}
		fields["first_name"] = name
		updated.FirstName = name
	}
	if in.Email != nil {
		email, err := s.checkEmail(ctx, tenantID, in.Email, id)
		if err != nil {
			return nil, err
		}
		fields["email"] = email
		updated.Email = email
	}
	if in.Status != nil {
		if !constants.Contains(contactStatuses, *in.Status) {
			return nil, errors.BadRequest("Invalid contact status")
		}
		fields["status"] = *in.Status
		updated.Status = *in.Status
	}
	if in.CompanyID != nil {
		if err := s.checkCompany(ctx, tenantID, in.CompanyID); err != nil {
			return nil, err
		}
		fields["company_id"] = emptyToNil(in.CompanyID)
		updated.CompanyID = emptyToNil(in.CompanyID)
	}

	var newStage *models.ContactStage
	stageChanged := false
	if in.StageID != nil && *in.StageID != derefString(existing.StageID) {
		if *in.StageID != "" {
			newStage, err = s.pipelines.pipelines.GetStage(ctx, tenantID, *in.StageID)
			if err != nil {
				return nil, fmt.Errorf("failed to load stage: %w", err)
			}
			if newStage == nil {
				return nil, errors.BadRequest("Invalid stage")
			}
		}
		stageChanged = true
		fields["stage_id"] = emptyToNil(in.StageID)
		updated.StageID = emptyToNil(in.StageID)
	}

	setOptional(fields, "last_name", in.LastName, &updated.LastName)
	setOptional(fields, "phone", in.Phone, &updated.Phone)
	setOptional(fields, "job_title", in.JobTitle, &updated.JobTitle)
	setOptional(fields, "source", in.Source, &updated.Source)
	setOptional(fields, "notes", in.Notes, &updated.Notes)
	setOptional(fields, "assigned_to", in.AssignedTo, &updated.AssignedTo)
	if in.LeadScore != nil {
		fields["lead_score"] = *in.LeadScore
		updated.LeadScore = *in.LeadScore
	}
	if in.Tags != nil {
		fields["tags"] = persistence.JSON(*in.Tags)
		updated.Tags = *in.Tags
	}

	now := time.Now().UTC()
	fields["last_activity"] = now
	updated.LastActivity = &now
	updated.UpdatedAt = now

	if err := s.contacts.Update(ctx, tenantID, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}

	data := contactEventData(&updated)
	if stageChanged {
		stageName := "no stage"
		if newStage != nil {
			stageName = newStage.Name
		}
		s.pipelines.recordStageNote(ctx, user, tenantID, id, "Stage changed",
			fmt.Sprintf("Contact moved to %s", stageName))
		updated.Stage = newStage
	}

	s.events.PublishAsync(contactEvent(constants.TriggerContactUpdated, user, &updated, data))
	if stageChanged {
		stageData := contactEventData(&updated)
		stageData["previousStageId"] = derefString(existing.StageID)
		stageData["newStageId"] = derefString(updated.StageID)
		s.events.PublishAsync(contactEvent(constants.TriggerContactStageChanged, user, &updated, stageData))
	}
	if delta := updated.LeadScore - existing.LeadScore; delta >= scoreChangeThreshold || delta <= -scoreChangeThreshold {
		scoreData := contactEventData(&updated)
		scoreData["previousScore"] = existing.LeadScore
		scoreData["newScore"] = updated.LeadScore
		scoreData["scoreChange"] = delta
		s.events.PublishAsync(contactEvent(constants.TriggerContactScoreChanged, user, &updated, scoreData))
	}

	s.auditor.Record(ctx, auditEntry(user, constants.AuditUpdate, constants.ResourceContact, id, data, nil))
	return &updated, nil
}

// Delete removes a contact of the caller's tenant
func (s *ContactService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	tenantID, err := requireTenant(user)
	if err != nil {
		return err
	}
	found, err := s.contacts.ExistsInTenant(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to load contact: %w", err)
	}
	if !found {
		return errors.NewNotFoundError("Contact", id)
	}
	if err := s.contacts.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditDelete, constants.ResourceContact, id, nil, nil))
	return nil
}

// checkEmail normalises the email and rejects duplicates within the tenant
func (s *ContactService) checkEmail(ctx context.Context, tenantID string, email *string, excludeID string) (*string, error) {
	if email == nil || strings.TrimSpace(*email) == "" {
		return nil, nil
	}
	normalized := auth.NormalizeEmail(*email)
	if !auth.IsValidEmail(normalized) {
		return nil, errors.BadRequest("Invalid email format")
	}
	taken, err := s.contacts.EmailExists(ctx, tenantID, normalized, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check contact email: %w", err)
	}
	if taken {
		return nil, errors.BadRequest("A contact with this email already exists")
	}
	return &normalized, nil
}

func (s *ContactService) checkCompany(ctx context.Context, tenantID string, companyID *string) error {
	if companyID == nil || *companyID == "" {
		return nil
	}
	ok, err := s.companies.ExistsInTenant(ctx, tenantID, *companyID)
	if err != nil {
		return fmt.Errorf("failed to check company: %w", err)
	}
	if !ok {
		return errors.NewNotFoundError("Company", *companyID)
	}
	return nil
}

func (s *ContactService) checkStage(ctx context.Context, tenantID string, stageID *string) error {
	if stageID == nil || *stageID == "" {
		return nil
	}
	stage, err := s.pipelines.pipelines.GetStage(ctx, tenantID, *stageID)
	if err != nil {
		return fmt.Errorf("failed to check stage: %w", err)
	}
	if stage == nil {
		return errors.BadRequest("Invalid stage")
	}
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// setOptional records a nullable column change; an empty string clears the column
func setOptional(fields map[string]interface{}, column string, value *string, target **string) {
	if value == nil {
		return
	}
	v := emptyToNil(value)
	fields[column] = v
	*target = v
}

// contactEventData is the workflow-visible view of a contact
func contactEventData(c *models.Contact) map[string]interface{} {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]interface{}{
		"id":        c.ID,
		"firstName": c.FirstName,
		"lastName":  derefString(c.LastName),
		"email":     derefString(c.Email),
		"phone":     derefString(c.Phone),
		"status":    c.Status,
		"source":    derefString(c.Source),
		"leadScore": c.LeadScore,
		"tags":      tags,
		"stageId":   derefString(c.StageID),
		"companyId": derefString(c.CompanyID),
	}
}

func contactEvent(trigger string, user *auth.UserSession, c *models.Contact, data map[string]interface{}) events.TriggerEvent {
	ev := events.NewTriggerEvent(events.EventType(trigger), c.TenantID, constants.EntityContact, c.ID, data)
	if user != nil {
		ev.UserID = user.ID
	}
	return ev
}
