package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

var subscriberExportHeader = []string{"Email", "First Name", "Last Name", "Status", "Source", "Subscribed At", "Unsubscribed At"}

// EmailService manages email lists, their subscribers and CSV import/export
type EmailService struct {
	repo    *persistence.EmailRepository
	auditor ports.Auditor
}

func NewEmailService(repo *persistence.EmailRepository, auditor ports.Auditor) *EmailService {
	return &EmailService{repo: repo, auditor: auditor}
}

// EmailListInput is the create and partial update payload of a list
type EmailListInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DoubleOptIn *bool   `json:"doubleOptIn"`
}

// SubscriberInput is the create and partial update payload of a subscriber
type SubscriberInput struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Status    *string `json:"status"`
	Source    *string `json:"source"`
}

// ImportResult summarizes a bulk subscriber import
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

var subscriberStatuses = []string{
	constants.SubscriberPending, constants.SubscriberActive,
	constants.SubscriberUnsubscribed, constants.SubscriberBounced,
}

// Lists returns the tenant's lists with subscriber counts
func (s *EmailService) Lists(ctx context.Context, user *auth.UserSession) ([]models.EmailList, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	lists, err := s.repo.ListLists(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list email lists: %w", err)
	}
	return lists, nil
}

// CreateList stores a new list. Names are unique per tenant.
func (s *EmailService) CreateList(ctx context.Context, user *auth.UserSession, in EmailListInput) (*models.EmailList, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if err := requireRole(user, constants.MarketingManagerRoles, "Insufficient permissions to create email lists"); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(derefString(in.Name))
	if name == "" {
		return nil, errors.BadRequest("List name is required")
	}
	if err := s.checkListName(ctx, tenantID, name, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	list := &models.EmailList{
		ID:           utils.GenerateID(),
		TenantID:     tenantID,
		Name:         name,
		Description:  emptyToNil(in.Description),
		CreatedBy:    &user.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
		StatusCounts: map[string]int64{},
	}
	if in.DoubleOptIn != nil {
		list.DoubleOptIn = *in.DoubleOptIn
	}
	if err := s.repo.CreateList(ctx, list); err != nil {
		return nil, fmt.Errorf("failed to create email list: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditCreate, constants.ResourceEmailList, list.ID,
		map[string]interface{}{"name": list.Name, "doubleOptIn": list.DoubleOptIn}, nil))
	return list, nil
}

// GetList returns a list with counts
func (s *EmailService) GetList(ctx context.Context, user *auth.UserSession, id string) (*models.EmailList, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	return s.loadList(ctx, tenantID, id)
}

// UpdateList applies a partial update
func (s *EmailService) UpdateList(ctx context.Context, user *auth.UserSession, id string, in EmailListInput) (*models.EmailList, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if err := requireRole(user, constants.MarketingManagerRoles, "Insufficient permissions to update email lists"); err != nil {
		return nil, err
	}
	if _, err := s.loadList(ctx, tenantID, id); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errors.BadRequest("List name is required")
		}
		if err := s.checkListName(ctx, tenantID, name, id); err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if in.Description != nil {
		fields["description"] = emptyToNil(in.Description)
	}
	if in.DoubleOptIn != nil {
		fields["double_opt_in"] = *in.DoubleOptIn
	}
	if len(fields) > 0 {
		fields["updated_at"] = time.Now().UTC()
		if err := s.repo.UpdateList(ctx, tenantID, id, fields); err != nil {
			return nil, fmt.Errorf("failed to update email list: %w", err)
		}
		s.auditor.Record(ctx, auditEntry(user, constants.AuditUpdate, constants.ResourceEmailList, id, fields, nil))
	}
	return s.loadList(ctx, tenantID, id)
}

// DeleteList removes a list and its subscribers
func (s *EmailService) DeleteList(ctx context.Context, user *auth.UserSession, id string) error {
	tenantID, err := requireTenant(user)
	if err != nil {
		return err
	}
	if err := requireRole(user, constants.MarketingManagerRoles, "Insufficient permissions to delete email lists"); err != nil {
		return err
	}
	list, err := s.loadList(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteList(ctx, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete email list: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditDelete, constants.ResourceEmailList, id, nil,
		map[string]interface{}{"name": list.Name, "subscriberCount": list.SubscriberCount}))
	return nil
}

// Subscribers returns a page of a list's subscribers
func (s *EmailService) Subscribers(ctx context.Context, user *auth.UserSession, listID, search, status string, page utils.Pagination) ([]models.EmailSubscriber, utils.Pagination, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, page, err
	}
	if _, err := s.loadList(ctx, tenantID, listID); err != nil {
		return nil, page, err
	}
	subs, total, err := s.repo.ListSubscribers(ctx, persistence.SubscriberFilter{
		ListID: listID,
		Search: strings.TrimSpace(search),
		Status: allFilter(status),
		Page:   page.Page,
		Limit:  page.Limit,
	})
	if err != nil {
		return nil, page, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, page.WithTotal(total), nil
}

// AddSubscriber adds one address to a list
func (s *EmailService) AddSubscriber(ctx context.Context, user *auth.UserSession, listID string, in SubscriberInput) (*models.EmailSubscriber, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	list, err := s.loadList(ctx, tenantID, listID)
	if err != nil {
		return nil, err
	}
	email := auth.NormalizeEmail(derefString(in.Email))
	if email == "" {
		return nil, errors.BadRequest("Email is required")
	}
	if !auth.IsValidEmail(email) {
		return nil, errors.BadRequest("Invalid email address")
	}
	taken, err := s.repo.SubscriberExists(ctx, listID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscriber: %w", err)
	}
	if taken {
		return nil, errors.BadRequest("Subscriber already exists in this list")
	}

	source := in.Source
	if source == nil || *source == "" {
		source = stringPtr("manual")
	}
	sub := newSubscriber(list, email, in.FirstName, in.LastName, source)
	if err := s.repo.CreateSubscriber(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}
	return sub, nil
}

func newSubscriber(list *models.EmailList, email string, first, last, source *string) *models.EmailSubscriber {
	now := time.Now().UTC()
	status := constants.SubscriberActive
	if list.DoubleOptIn {
		status = constants.SubscriberPending
	}
	return &models.EmailSubscriber{
		ID:           utils.GenerateID(),
		ListID:       list.ID,
		Email:        email,
		FirstName:    emptyToNil(first),
		LastName:     emptyToNil(last),
		Status:       status,
		Source:       emptyToNil(source),
		SubscribedAt: &now,
		CreatedAt:    now,
	}
}

// UpdateSubscriber edits names, source or status. Moving to UNSUBSCRIBED
// stamps unsubscribed_at.
func (s *EmailService) UpdateSubscriber(ctx context.Context, user *auth.UserSession, listID, id string, in SubscriberInput) (*models.EmailSubscriber, error) {
	sub, err := s.loadSubscriber(ctx, user, listID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.FirstName != nil {
		fields["first_name"] = emptyToNil(in.FirstName)
	}
	if in.LastName != nil {
		fields["last_name"] = emptyToNil(in.LastName)
	}
	if in.Source != nil {
		fields["source"] = emptyToNil(in.Source)
	}
	if in.Status != nil && *in.Status != sub.Status {
		if !constants.Contains(subscriberStatuses, *in.Status) {
			return nil, errors.BadRequest("Invalid subscriber status")
		}
		fields["status"] = *in.Status
		if *in.Status == constants.SubscriberUnsubscribed {
			fields["unsubscribed_at"] = time.Now().UTC()
		} else {
			fields["unsubscribed_at"] = nil
		}
	}
	if err := s.repo.UpdateSubscriber(ctx, listID, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update subscriber: %w", err)
	}
	return s.repo.GetSubscriber(ctx, listID, id)
}

// Unsubscribe marks a subscriber unsubscribed
func (s *EmailService) Unsubscribe(ctx context.Context, user *auth.UserSession, listID, id string) (*models.EmailSubscriber, error) {
	if _, err := s.loadSubscriber(ctx, user, listID, id); err != nil {
		return nil, err
	}
	if err := s.repo.Unsubscribe(ctx, listID, id, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return s.repo.GetSubscriber(ctx, listID, id)
}

// DeleteSubscriber removes one subscriber
func (s *EmailService) DeleteSubscriber(ctx context.Context, user *auth.UserSession, listID, id string) error {
	if _, err := s.loadSubscriber(ctx, user, listID, id); err != nil {
		return err
	}
	if _, err := s.repo.DeleteSubscribers(ctx, listID, []string{id}); err != nil {
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	return nil
}

// DeleteSubscribers removes many subscribers of one list and reports the count
func (s *EmailService) DeleteSubscribers(ctx context.Context, user *auth.UserSession, listID string, ids []string) (*BulkResult, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.BadRequest("Subscriber IDs are required")
	}
	if _, err := s.loadList(ctx, tenantID, listID); err != nil {
		return nil, err
	}
	n, err := s.repo.DeleteSubscribers(ctx, listID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to delete subscribers: %w", err)
	}
	return &BulkResult{Message: fmt.Sprintf("%d subscribers deleted successfully", n), Count: n}, nil
}

// Import adds the given subscribers, skipping invalid addresses and ones
// already on the list. Per-row failures are reported, not returned.
func (s *EmailService) Import(ctx context.Context, user *auth.UserSession, listID string, rows []SubscriberInput) (*ImportResult, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	list, err := s.loadList(ctx, tenantID, listID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.BadRequest("No subscribers to import")
	}

	result := &ImportResult{Errors: []string{}}
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		email := auth.NormalizeEmail(derefString(row.Email))
		if email == "" || !auth.IsValidEmail(email) || seen[email] {
			result.Skipped++
			continue
		}
		seen[email] = true

		taken, err := s.repo.SubscriberExists(ctx, listID, email)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to import %s: %v", email, err))
			continue
		}
		if taken {
			result.Skipped++
			continue
		}
		source := row.Source
		if source == nil || *source == "" {
			source = stringPtr("import")
		}
		if err := s.repo.CreateSubscriber(ctx, newSubscriber(list, email, row.FirstName, row.LastName, source)); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to import %s: %v", email, err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

// Export renders every subscriber of a list as CSV. It returns the
// attachment file name and the document.
func (s *EmailService) Export(ctx context.Context, user *auth.UserSession, listID string) (string, []byte, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return "", nil, err
	}
	list, err := s.loadList(ctx, tenantID, listID)
	if err != nil {
		return "", nil, err
	}
	subs, _, err := s.repo.ListSubscribers(ctx, persistence.SubscriberFilter{ListID: listID})
	if err != nil {
		return "", nil, fmt.Errorf("failed to load subscribers: %w", err)
	}
	data, err := subscribersCSV(subs)
	if err != nil {
		return "", nil, fmt.Errorf("failed to render CSV: %w", err)
	}
	return utils.SafeFilename(list.Name) + "_subscribers.csv", data, nil
}

func subscribersCSV(subs []models.EmailSubscriber) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(subscriberExportHeader); err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if err := w.Write([]string{
			sub.Email,
			derefString(sub.FirstName),
			derefString(sub.LastName),
			sub.Status,
			derefString(sub.Source),
			formatTime(sub.SubscribedAt),
			formatTime(sub.UnsubscribedAt),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (s *EmailService) loadList(ctx context.Context, tenantID, id string) (*models.EmailList, error) {
	list, err := s.repo.GetList(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load email list: %w", err)
	}
	if list == nil {
		return nil, errors.NewNotFoundError("Email list", id)
	}
	return list, nil
}

func (s *EmailService) loadSubscriber(ctx context.Context, user *auth.UserSession, listID, id string) (*models.EmailSubscriber, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadList(ctx, tenantID, listID); err != nil {
		return nil, err
	}
	sub, err := s.repo.GetSubscriber(ctx, listID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	if sub == nil {
		return nil, errors.NewNotFoundError("Subscriber", id)
	}
	return sub, nil
}

func (s *EmailService) checkListName(ctx context.Context, tenantID, name, excludeID string) error {
	taken, err := s.repo.ListNameExists(ctx, tenantID, name, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check list name: %w", err)
	}
	if taken {
		return errors.BadRequest("An email list with this name already exists")
	}
	return nil
}
