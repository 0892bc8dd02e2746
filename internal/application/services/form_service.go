package services

import (
	"context"
	"encoding/json"
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
	"github.com/nexuscrm/tenantcrm/pkg/validator"
)

// FormService manages lead capture forms and accepts their public submissions
type FormService struct {
	forms    *persistence.FormRepository
	contacts *persistence.ContactRepository
	limits   ports.LimitChecker
	events   ports.EventPublisher
	auditor  ports.Auditor
	baseURL  string
}

func NewFormService(forms *persistence.FormRepository, contacts *persistence.ContactRepository, limits ports.LimitChecker,
	events ports.EventPublisher, auditor ports.Auditor, baseURL string) *FormService {
	return &FormService{
		forms:    forms,
		contacts: contacts,
		limits:   limits,
		events:   events,
		auditor:  auditor,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// FormInput is the create and partial update payload
type FormInput struct {
	Title          *string                 `json:"title"`
	Description    *string                 `json:"description"`
	Fields         *[]validator.FormField  `json:"fields"`
	Styles         *map[string]interface{} `json:"styles"`
	ButtonStyle    *map[string]interface{} `json:"buttonStyle"`
	SubmitText     *string                 `json:"submitText"`
	SuccessMessage *string                 `json:"successMessage"`
	RedirectURL    *string                 `json:"redirectUrl"`
	IsActive       *bool                   `json:"isActive"`
}

// SubmitResult is returned to the public submitter
type SubmitResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SubmissionID string `json:"submissionId"`
}

// EmbedCode renders the snippet that mounts a form on a third-party page
func (s *FormService) EmbedCode(formID string) string {
	return fmt.Sprintf("<div id=\"%s%s\" class=\"crm-form-embed\"></div>\n<script async src=\"%s/api/forms/public/%s\"></script>",
		constants.FormEmbedPrefix, formID, s.baseURL, formID)
}

// List returns a page of the tenant's forms with submission counts
func (s *FormService) List(ctx context.Context, user *auth.UserSession, search string, page utils.Pagination) ([]models.Form, utils.Pagination, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, page, err
	}
	forms, total, err := s.forms.List(ctx, persistence.ListFilter{
		TenantID: tenantID,
		Search:   strings.TrimSpace(search),
		Page:     page.Page,
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, page, fmt.Errorf("failed to list forms: %w", err)
	}
	return forms, page.WithTotal(total), nil
}

// Create stores a form after the plan check and assigns its embed code
func (s *FormService) Create(ctx context.Context, user *auth.UserSession, in FormInput) (*models.Form, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if err := s.limits.EnsureWithinLimit(ctx, tenantID, constants.LimitForms, 1); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(derefString(in.Title))
	if title == "" || in.Fields == nil || len(*in.Fields) == 0 {
		return nil, errors.BadRequest("Form title and at least one field are required")
	}

	now := time.Now().UTC()
	form := &models.Form{
		ID:             utils.GenerateID(),
		TenantID:       tenantID,
		Title:          title,
		Description:    emptyToNil(in.Description),
		Fields:         *in.Fields,
		Styles:         map[string]interface{}{},
		ButtonStyle:    map[string]interface{}{},
		SubmitText:     emptyToNil(in.SubmitText),
		SuccessMessage: emptyToNil(in.SuccessMessage),
		RedirectURL:    emptyToNil(in.RedirectURL),
		IsActive:       true,
		CreatedBy:      &user.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Styles != nil {
		form.Styles = *in.Styles
	}
	if in.ButtonStyle != nil {
		form.ButtonStyle = *in.ButtonStyle
	}
	if in.IsActive != nil {
		form.IsActive = *in.IsActive
	}
	embed := s.EmbedCode(form.ID)
	form.EmbedCode = &embed

	if err := s.forms.Create(ctx, form); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditCreate, constants.ResourceForm, form.ID,
		map[string]interface{}{"title": form.Title, "fields": len(form.Fields)}, nil))
	return form, nil
}

// Update applies a partial update
func (s *FormService) Update(ctx context.Context, user *auth.UserSession, id string, in FormInput) (*models.Form, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.BadRequest("Form ID is required")
	}
	if _, err := s.load(ctx, tenantID, id); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, errors.BadRequest("Form title is required")
		}
		fields["title"] = title
	}
	if in.Fields != nil {
		if len(*in.Fields) == 0 {
			return nil, errors.BadRequest("Form must have at least one field")
		}
		fields["fields"] = persistence.JSON(*in.Fields)
	}
	if in.Description != nil {
		fields["description"] = emptyToNil(in.Description)
	}
	if in.Styles != nil {
		fields["styles"] = persistence.JSON(*in.Styles)
	}
	if in.ButtonStyle != nil {
		fields["button_style"] = persistence.JSON(*in.ButtonStyle)
	}
	if in.SubmitText != nil {
		fields["submit_text"] = emptyToNil(in.SubmitText)
	}
	if in.SuccessMessage != nil {
		fields["success_message"] = emptyToNil(in.SuccessMessage)
	}
	if in.RedirectURL != nil {
		fields["redirect_url"] = emptyToNil(in.RedirectURL)
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	if len(fields) > 0 {
		fields["updated_at"] = time.Now().UTC()
		if err := s.forms.Update(ctx, tenantID, id, fields); err != nil {
			return nil, fmt.Errorf("failed to update form: %w", err)
		}
		s.auditor.Record(ctx, auditEntry(user, constants.AuditUpdate, constants.ResourceForm, id, nil,
			map[string]interface{}{"changedFields": mapKeys(fields)}))
	}
	return s.load(ctx, tenantID, id)
}

// Delete removes a form and its submissions
func (s *FormService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	tenantID, err := requireTenant(user)
	if err != nil {
		return err
	}
	if id == "" {
		return errors.BadRequest("Form ID is required")
	}
	form, err := s.load(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.forms.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditDelete, constants.ResourceForm, id, nil,
		map[string]interface{}{"title": form.Title}))
	return nil
}

// Submissions returns a page of the tenant's submissions, optionally for one form
func (s *FormService) Submissions(ctx context.Context, user *auth.UserSession, formID string, page utils.Pagination) ([]models.FormSubmission, utils.Pagination, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, page, err
	}
	subs, total, err := s.forms.ListSubmissions(ctx, persistence.SubmissionFilter{
		TenantID: tenantID,
		FormID:   formID,
		Page:     page.Page,
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, page, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, page.WithTotal(total), nil
}

// PublicForm returns the anonymous view of an active form. The id may carry
// the embed container prefix.
func (s *FormService) PublicForm(ctx context.Context, formID string) (*models.PublicForm, error) {
	form, err := s.activeForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	return &models.PublicForm{
		ID:             form.ID,
		Title:          form.Title,
		Description:    form.Description,
		Fields:         form.Fields,
		Styles:         form.Styles,
		ButtonStyle:    form.ButtonStyle,
		SubmitText:     form.SubmitText,
		SuccessMessage: form.SuccessMessage,
		RedirectURL:    form.RedirectURL,
	}, nil
}

// Submit validates and stores a public submission, upserts the submitter as
// a contact of the form's tenant and fires FORM_SUBMITTED
func (s *FormService) Submit(ctx context.Context, formID string, data map[string]interface{}) (*SubmitResult, error) {
	form, err := s.activeForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	processed, err := validator.ProcessSubmission(form.Fields, data)
	if err != nil {
		return nil, errors.BadRequest("%s", err.Error())
	}

	meta := RequestMetaFrom(ctx)
	sub := &models.FormSubmission{
		ID:        utils.GenerateID(),
		TenantID:  form.TenantID,
		FormID:    form.ID,
		Data:      processed,
		IPAddress: stringPtr(meta.IP),
		UserAgent: stringPtr(meta.UserAgent),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.forms.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	contactID, err := s.upsertContact(ctx, form, processed)
	if err != nil {
		logBestEffort("contact upsert", sub.ID, err)
	} else if contactID != "" {
		sub.ContactID = &contactID
		if err := s.forms.LinkSubmissionContact(ctx, sub.ID, contactID); err != nil {
			logBestEffort("submission contact link", sub.ID, err)
		}
	}

	s.events.PublishAsync(events.NewTriggerEvent(constants.TriggerFormSubmitted, form.TenantID, constants.EntityForm, form.ID,
		map[string]interface{}{
			"formId":       form.ID,
			"formTitle":    form.Title,
			"submissionId": sub.ID,
			"contactId":    contactID,
			"data":         processed,
			"source":       "Form: " + form.Title,
		}))

	message := constants.FormSuccessMessage
	if form.SuccessMessage != nil && *form.SuccessMessage != "" {
		message = *form.SuccessMessage
	}
	return &SubmitResult{Success: true, Message: message, SubmissionID: sub.ID}, nil
}

// upsertContact creates or enriches the contact identified by the email
// field. It returns "" when the form has no email value.
func (s *FormService) upsertContact(ctx context.Context, form *models.Form, data map[string]interface{}) (string, error) {
	email := auth.NormalizeEmail(utils.ToString(data[validator.FindFieldByType(form.Fields, validator.FieldEmail)]))
	if email == "" {
		return "", nil
	}
	nameField := validator.FindFieldByType(form.Fields, validator.FieldText)
	if nameField == "" {
		nameField = validator.FindFieldByLabel(form.Fields, "name", "full name", "your name")
	}
	name := strings.TrimSpace(utils.ToString(data[nameField]))
	phone := strings.TrimSpace(utils.ToString(data[validator.FindFieldByType(form.Fields, validator.FieldPhone)]))
	raw, _ := json.Marshal(data)
	note := "Form submission: " + string(raw)

	existing, err := s.contacts.FindByEmail(ctx, form.TenantID, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		fields := map[string]interface{}{"updated_at": time.Now().UTC()}
		if name != "" {
			fields["first_name"] = name
		}
		if phone != "" {
			fields["phone"] = phone
		}
		if existing.Notes != nil && *existing.Notes != "" {
			fields["notes"] = *existing.Notes + "\n\n" + note
		} else {
			fields["notes"] = note
		}
		return existing.ID, s.contacts.Update(ctx, form.TenantID, existing.ID, fields)
	}

	if name == "" {
		name = constants.DefaultContactFirst
	}
	now := time.Now().UTC()
	contact := &models.Contact{
		ID:           utils.GenerateID(),
		TenantID:     form.TenantID,
		FirstName:    name,
		Email:        &email,
		Phone:        stringPtr(phone),
		Status:       constants.ContactStatusLead,
		Source:       stringPtr("Form: " + form.Title),
		Notes:        &note,
		Tags:         []string{},
		LastActivity: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return "", err
	}
	s.events.PublishAsync(contactEvent(constants.TriggerContactCreated, nil, contact, contactEventData(contact)))
	return contact.ID, nil
}

func (s *FormService) activeForm(ctx context.Context, formID string) (*models.Form, error) {
	id := strings.TrimPrefix(formID, constants.FormEmbedPrefix)
	form, err := s.forms.GetActive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load form: %w", err)
	}
	if form == nil {
		return nil, errors.NewNotFoundError("Form", "")
	}
	return form, nil
}

func (s *FormService) load(ctx context.Context, tenantID, id string) (*models.Form, error) {
	form, err := s.forms.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load form: %w", err)
	}
	if form == nil {
		return nil, errors.NewNotFoundError("Form", id)
	}
	return form, nil
}
