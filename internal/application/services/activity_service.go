package services

import (
	"context"
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

// ActivityService implements activity CRUD and bulk updates
type ActivityService struct {
	activities *persistence.ActivityRepository
	contacts   *persistence.ContactRepository
	companies  *persistence.CompanyRepository
	deals      *persistence.DealRepository
	auditor    ports.Auditor
}

func NewActivityService(activities *persistence.ActivityRepository, contacts *persistence.ContactRepository,
	companies *persistence.CompanyRepository, deals *persistence.DealRepository, auditor ports.Auditor) *ActivityService {
	return &ActivityService{
		activities: activities,
		contacts:   contacts,
		companies:  companies,
		deals:      deals,
		auditor:    auditor,
	}
}

// ActivityQuery holds the list filters. Status is completed or pending;
// DateRange is today, week, month or quarter.
type ActivityQuery struct {
	Search     string
	Type       string
	Status     string
	AssignedTo string
	DateRange  string
	Page       utils.Pagination
}

// ActivityInput is the create and patch payload
type ActivityInput struct {
	Type        *string    `json:"type"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	Duration    *int       `json:"duration"`
	IsCompleted *bool      `json:"isCompleted"`
	ContactID   *string    `json:"contactId"`
	CompanyID   *string    `json:"companyId"`
	DealID      *string    `json:"dealId"`
}

// BulkResult is the response of a bulk activity update
type BulkResult struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

// dateWindow turns a named range into [from, to) around now
func dateWindow(name string, now time.Time) (*time.Time, *time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var from, to time.Time
	switch name {
	case "today":
		from, to = start, start.AddDate(0, 0, 1)
	case "week":
		from = start.AddDate(0, 0, -int(start.Weekday()))
		to = from.AddDate(0, 0, 7)
	case "month":
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		to = from.AddDate(0, 1, 0)
	case "quarter":
		q := (int(now.Month()) - 1) / 3
		from = time.Date(now.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, now.Location())
		to = from.AddDate(0, 3, 0)
	default:
		return nil, nil
	}
	return &from, &to
}

// List returns a page of activities
func (s *ActivityService) List(ctx context.Context, user *auth.UserSession, q ActivityQuery) ([]models.Activity, utils.Pagination, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, q.Page, err
	}
	f := persistence.ActivityFilter{
		TenantID:   tenantID,
		Search:     strings.TrimSpace(q.Search),
		Type:       allFilter(q.Type),
		AssignedTo: allFilter(q.AssignedTo),
		Page:       q.Page.Page,
		Limit:      q.Page.Limit,
	}
	switch q.Status {
	case "completed":
		done := true
		f.Completed = &done
	case "pending":
		done := false
		f.Completed = &done
	}
	f.From, f.To = dateWindow(q.DateRange, time.Now().UTC())

	activities, total, err := s.activities.List(ctx, f)
	if err != nil {
		return nil, q.Page, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, q.Page.WithTotal(total), nil
}

// Create stores an activity owned by the caller
func (s *ActivityService) Create(ctx context.Context, user *auth.UserSession, in ActivityInput) (*models.Activity, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	activityType := derefString(in.Type)
	if activityType == "" {
		return nil, errors.BadRequest("Activity type is required")
	}
	if !constants.Contains(constants.ActivityTypes, activityType) {
		return nil, errors.BadRequest("Invalid activity type")
	}
	title := strings.TrimSpace(derefString(in.Title))
	if title == "" {
		return nil, errors.BadRequest("Activity title is required")
	}
	if err := s.checkRelations(ctx, tenantID, in); err != nil {
		return nil, err
	}

	a := &models.Activity{
		ID:          utils.GenerateID(),
		TenantID:    tenantID,
		Type:        activityType,
		Title:       title,
		Description: emptyToNil(in.Description),
		ScheduledAt: in.ScheduledAt,
		Duration:    in.Duration,
		UserID:      &user.ID,
		ContactID:   emptyToNil(in.ContactID),
		CompanyID:   emptyToNil(in.CompanyID),
		DealID:      emptyToNil(in.DealID),
	}
	if in.IsCompleted != nil && *in.IsCompleted {
		now := time.Now().UTC()
		a.IsCompleted = true
		a.CompletedAt = &now
	}
	if err := s.activities.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}
	return s.Get(ctx, user, a.ID)
}

// Get returns one activity of the caller's tenant
func (s *ActivityService) Get(ctx context.Context, user *auth.UserSession, id string) (*models.Activity, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	a, err := s.activities.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	if a == nil {
		return nil, errors.NewNotFoundError("Activity", id)
	}
	return a, nil
}

// Update applies a partial update; toggling completion sets or clears completedAt
func (s *ActivityService) Update(ctx context.Context, user *auth.UserSession, id string, in ActivityInput) (*models.Activity, error) {
	existing, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	tenantID := existing.TenantID

	fields := map[string]interface{}{}
	if in.Type != nil {
		if !constants.Contains(constants.ActivityTypes, *in.Type) {
			return nil, errors.BadRequest("Invalid activity type")
		}
		fields["type"] = *in.Type
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, errors.BadRequest("Activity title is required")
		}
		fields["title"] = title
	}
	if in.ScheduledAt != nil {
		fields["scheduled_at"] = *in.ScheduledAt
	}
	if in.Duration != nil {
		fields["duration"] = *in.Duration
	}
	if in.IsCompleted != nil && *in.IsCompleted != existing.IsCompleted {
		fields["is_completed"] = *in.IsCompleted
		if *in.IsCompleted {
			fields["completed_at"] = time.Now().UTC()
		} else {
			fields["completed_at"] = nil
		}
	}
	if err := s.checkRelations(ctx, tenantID, in); err != nil {
		return nil, err
	}
	for column, v := range map[string]*string{
		"description": in.Description,
		"contact_id":  in.ContactID,
		"company_id":  in.CompanyID,
		"deal_id":     in.DealID,
	} {
		if v != nil {
			fields[column] = emptyToNil(v)
		}
	}

	if err := s.activities.Update(ctx, tenantID, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update activity: %w", err)
	}
	return s.Get(ctx, user, id)
}

// Complete marks one activity completed
func (s *ActivityService) Complete(ctx context.Context, user *auth.UserSession, id string) (*models.Activity, error) {
	done := true
	return s.Update(ctx, user, id, ActivityInput{IsCompleted: &done})
}

// Delete removes one activity
func (s *ActivityService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	a, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.activities.Delete(ctx, a.TenantID, id); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil
}

// Bulk applies complete, incomplete or delete to many activities at once
func (s *ActivityService) Bulk(ctx context.Context, user *auth.UserSession, ids []string, action string) (*BulkResult, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.BadRequest("Activity IDs are required")
	}
	if action == "" {
		return nil, errors.BadRequest("Action is required")
	}
	owned, err := s.activities.CountOwned(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to verify activities: %w", err)
	}
	if owned != int64(len(ids)) {
		return nil, errors.NewNotFoundError("Some activities", "")
	}
	switch action {
	case constants.BulkActionComplete, constants.BulkActionIncomplete, constants.BulkActionDelete:
	default:
		return nil, errors.BadRequest("Invalid action")
	}

	n, err := s.activities.Bulk(ctx, tenantID, ids, action, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to apply bulk action: %w", err)
	}
	return &BulkResult{Message: fmt.Sprintf("%d activities updated successfully", n), Count: n}, nil
}

func (s *ActivityService) checkRelations(ctx context.Context, tenantID string, in ActivityInput) error {
	checks := []struct {
		entity string
		id     *string
		exists func(context.Context, string, string) (bool, error)
	}{
		{"Contact", in.ContactID, s.contacts.ExistsInTenant},
		{"Company", in.CompanyID, s.companies.ExistsInTenant},
		{"Deal", in.DealID, s.deals.ExistsInTenant},
	}
	for _, c := range checks {
		if c.id == nil || *c.id == "" {
			continue
		}
		ok, err := c.exists(ctx, tenantID, *c.id)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", strings.ToLower(c.entity), err)
		}
		if !ok {
			return errors.NewNotFoundError(c.entity, *c.id)
		}
	}
	return nil
}
