package services

import (
	"context"
	"fmt"
	"math"
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

const dealActivityLimit = 10

// DealService implements deal CRUD, the deal pipeline and its statistics
type DealService struct {
	deals      *persistence.DealRepository
	contacts   *persistence.ContactRepository
	companies  *persistence.CompanyRepository
	activities *persistence.ActivityRepository
	limits     ports.LimitChecker
	events     ports.EventPublisher
	auditor    ports.Auditor
}

func NewDealService(deals *persistence.DealRepository, contacts *persistence.ContactRepository,
	companies *persistence.CompanyRepository, activities *persistence.ActivityRepository,
	limits ports.LimitChecker, events ports.EventPublisher, auditor ports.Auditor) *DealService {
	return &DealService{
		deals:      deals,
		contacts:   contacts,
		companies:  companies,
		activities: activities,
		limits:     limits,
		events:     events,
		auditor:    auditor,
	}
}

// DealInput is the create and partial update payload. Value is in currency units.
type DealInput struct {
	Name        *string    `json:"name"`
	Value       *float64   `json:"value"`
	Stage       *string    `json:"stage"`
	Probability *int       `json:"probability"`
	CloseDate   *time.Time `json:"closeDate"`
	Description *string    `json:"description"`
	Source      *string    `json:"source"`
	Tags        *[]string  `json:"tags"`
	AssignedTo  *string    `json:"assignedTo"`
	ContactID   *string    `json:"contactId"`
	CompanyID   *string    `json:"companyId"`
}

// List returns a page of deals
func (s *DealService) List(ctx context.Context, user *auth.UserSession, search, stage string, page utils.Pagination) ([]models.Deal, utils.Pagination, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, page, err
	}
	deals, total, err := s.deals.List(ctx, persistence.DealFilter{
		TenantID: tenantID,
		Search:   strings.TrimSpace(search),
		Stage:    allFilter(stage),
		Page:     page.Page,
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, page, fmt.Errorf("failed to list deals: %w", err)
	}
	return deals, page.WithTotal(total), nil
}

// Create stores a deal after the plan check
func (s *DealService) Create(ctx context.Context, user *auth.UserSession, in DealInput) (*models.Deal, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if err := s.limits.EnsureWithinLimit(ctx, tenantID, constants.LimitDeals, 1); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(derefString(in.Name))
	if name == "" {
		return nil, errors.BadRequest("Deal name is required")
	}
	if in.Value == nil || *in.Value <= 0 {
		return nil, errors.BadRequest("Deal value must be greater than 0")
	}
	stage := constants.DealStageProspecting
	if in.Stage != nil && *in.Stage != "" {
		stage = *in.Stage
	}
	if !constants.Contains(constants.DealStages, stage) {
		return nil, errors.BadRequest("Invalid deal stage")
	}
	if err := s.checkRelations(ctx, tenantID, in.ContactID, in.CompanyID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	deal := &models.Deal{
		ID:           utils.GenerateID(),
		TenantID:     tenantID,
		Name:         name,
		Value:        utils.ToCents(*in.Value),
		Stage:        stage,
		CloseDate:    in.CloseDate,
		Description:  emptyToNil(in.Description),
		Source:       emptyToNil(in.Source),
		AssignedTo:   emptyToNil(in.AssignedTo),
		ContactID:    emptyToNil(in.ContactID),
		CompanyID:    emptyToNil(in.CompanyID),
		LastActivity: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
		Tags:         []string{},
	}
	if deal.AssignedTo == nil {
		deal.AssignedTo = &user.ID
	}
	if in.Probability != nil {
		deal.Probability = *in.Probability
	}
	if in.Tags != nil {
		deal.Tags = *in.Tags
	}
	if err := s.deals.Create(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}

	s.events.PublishAsync(dealEvent(constants.TriggerDealCreated, user, deal, dealEventData(deal)))
	s.auditor.Record(ctx, auditEntry(user, constants.AuditCreate, constants.ResourceDeal, deal.ID, dealEventData(deal), nil))
	return deal, nil
}

// Get returns a deal with its contact, company and last activities
func (s *DealService) Get(ctx context.Context, user *auth.UserSession, id string) (*models.Deal, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	deal, err := s.deals.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load deal: %w", err)
	}
	if deal == nil {
		return nil, errors.NewNotFoundError("Deal", id)
	}
	deal.Activities, _, err = s.activities.List(ctx, persistence.ActivityFilter{
		TenantID: tenantID,
		DealID:   id,
		Page:     1,
		Limit:    dealActivityLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load deal activities: %w", err)
	}
	return deal, nil
}

// Update applies a partial update and fires stage events
func (s *DealService) Update(ctx context.Context, user *auth.UserSession, id string, in DealInput) (*models.Deal, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	existing, err := s.deals.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load deal: %w", err)
	}
	if existing == nil {
		return nil, errors.NewNotFoundError("Deal", id)
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errors.BadRequest("Deal name is required")
		}
		fields["name"] = name
	}
	if in.Value != nil {
		if *in.Value <= 0 {
			return nil, errors.BadRequest("Deal value must be greater than 0")
		}
		fields["value"] = utils.ToCents(*in.Value)
	}
	if in.Stage != nil {
		if !constants.Contains(constants.DealStages, *in.Stage) {
			return nil, errors.BadRequest("Invalid deal stage")
		}
		fields["stage"] = *in.Stage
	}
	if in.Probability != nil {
		fields["probability"] = *in.Probability
	}
	if in.CloseDate != nil {
		fields["close_date"] = *in.CloseDate
	}
	if in.Tags != nil {
		fields["tags"] = persistence.JSON(*in.Tags)
	}
	if err := s.checkRelations(ctx, tenantID, in.ContactID, in.CompanyID); err != nil {
		return nil, err
	}
	for column, v := range map[string]*string{
		"description": in.Description,
		"source":      in.Source,
		"assigned_to": in.AssignedTo,
		"contact_id":  in.ContactID,
		"company_id":  in.CompanyID,
	} {
		if v != nil {
			fields[column] = emptyToNil(v)
		}
	}
	if len(fields) > 0 {
		fields["last_activity"] = time.Now().UTC()
	}

	if err := s.deals.Update(ctx, tenantID, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update deal: %w", err)
	}
	updated, err := s.deals.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload deal: %w", err)
	}
	if updated == nil {
		return nil, errors.NewNotFoundError("Deal", id)
	}

	if updated.Stage != existing.Stage {
		data := dealEventData(updated)
		data["previousStage"] = existing.Stage
		data["newStage"] = updated.Stage
		s.events.PublishAsync(dealEvent(constants.TriggerDealStageChanged, user, updated, data))
		switch updated.Stage {
		case constants.DealStageClosedWon:
			s.events.PublishAsync(dealEvent(constants.TriggerDealWon, user, updated, data))
		case constants.DealStageClosedLost:
			s.events.PublishAsync(dealEvent(constants.TriggerDealLost, user, updated, data))
		}
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditUpdate, constants.ResourceDeal, id, dealEventData(updated),
		map[string]interface{}{"previousStage": existing.Stage}))
	return updated, nil
}

// Delete removes a deal of the caller's tenant
func (s *DealService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	tenantID, err := requireTenant(user)
	if err != nil {
		return err
	}
	found, err := s.deals.ExistsInTenant(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to load deal: %w", err)
	}
	if !found {
		return errors.NewNotFoundError("Deal", id)
	}
	if err := s.deals.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete deal: %w", err)
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditDelete, constants.ResourceDeal, id, nil, nil))
	return nil
}

// StageColumn is one stage of the deal pipeline board
type StageColumn struct {
	Stage string        `json:"stage"`
	Count int           `json:"count"`
	Value int64         `json:"value"`
	Deals []models.Deal `json:"deals"`
}

// Pipeline groups every deal of the tenant by stage, in pipeline order
func (s *DealService) Pipeline(ctx context.Context, user *auth.UserSession) ([]StageColumn, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	deals, _, err := s.deals.List(ctx, persistence.DealFilter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}

	columns := make([]StageColumn, len(constants.DealStages))
	index := make(map[string]int, len(constants.DealStages))
	for i, stage := range constants.DealStages {
		columns[i] = StageColumn{Stage: stage, Deals: []models.Deal{}}
		index[stage] = i
	}
	for _, d := range deals {
		i, ok := index[d.Stage]
		if !ok {
			continue
		}
		columns[i].Deals = append(columns[i].Deals, d)
		columns[i].Count++
		columns[i].Value += d.Value
	}
	return columns, nil
}

// StageStat is the per-stage entry of DealStats
type StageStat struct {
	Count       int   `json:"count"`
	Value       int64 `json:"value"`
	AverageTime int64 `json:"averageTime"`
}

// DealStats is the response of GET /api/deals/pipeline/stats
type DealStats struct {
	TotalValue        int64                `json:"totalValue"`
	TotalDeals        int                  `json:"totalDeals"`
	AverageDealSize   float64              `json:"averageDealSize"`
	ConversionRate    float64              `json:"conversionRate"`
	AverageSalesCycle int64                `json:"averageSalesCycle"`
	StageStats        map[string]StageStat `json:"stageStats"`
}

// Stats computes pipeline statistics over every deal of the tenant
func (s *DealService) Stats(ctx context.Context, user *auth.UserSession) (*DealStats, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	deals, _, err := s.deals.List(ctx, persistence.DealFilter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	return computeDealStats(deals, time.Now().UTC()), nil
}

// computeDealStats derives the pipeline summary. Durations are whole days rounded up.
func computeDealStats(deals []models.Deal, now time.Time) *DealStats {
	stats := &DealStats{TotalDeals: len(deals), StageStats: map[string]StageStat{}}

	var won, closed int
	var cycleDays int64
	stageDays := map[string]int64{}
	for _, d := range deals {
		stats.TotalValue += d.Value
		if d.Stage == constants.DealStageClosedWon {
			won++
		}
		if d.Stage == constants.DealStageClosedWon || d.Stage == constants.DealStageClosedLost {
			closed++
			end := d.UpdatedAt
			if d.CloseDate != nil {
				end = *d.CloseDate
			}
			cycleDays += ceilDays(end.Sub(d.CreatedAt))
		}
		st := stats.StageStats[d.Stage]
		st.Count++
		st.Value += d.Value
		stats.StageStats[d.Stage] = st
		stageDays[d.Stage] += ceilDays(now.Sub(d.CreatedAt))
	}

	for _, stage := range constants.DealStages {
		st := stats.StageStats[stage]
		if st.Count > 0 {
			st.AverageTime = int64(math.Round(float64(stageDays[stage]) / float64(st.Count)))
		}
		stats.StageStats[stage] = st
	}
	if stats.TotalDeals > 0 {
		stats.AverageDealSize = float64(stats.TotalValue) / float64(stats.TotalDeals)
		stats.ConversionRate = float64(won) / float64(stats.TotalDeals) * 100
	}
	if closed > 0 {
		stats.AverageSalesCycle = int64(math.Round(float64(cycleDays) / float64(closed)))
	}
	return stats
}

func ceilDays(d time.Duration) int64 {
	return int64(math.Ceil(d.Hours() / 24))
}

func (s *DealService) checkRelations(ctx context.Context, tenantID string, contactID, companyID *string) error {
	if contactID != nil && *contactID != "" {
		ok, err := s.contacts.ExistsInTenant(ctx, tenantID, *contactID)
		if err != nil {
			return fmt.Errorf("failed to check contact: %w", err)
		}
		if !ok {
			return errors.NewNotFoundError("Contact", *contactID)
		}
	}
	if companyID != nil && *companyID != "" {
		ok, err := s.companies.ExistsInTenant(ctx, tenantID, *companyID)
		if err != nil {
			return fmt.Errorf("failed to check company: %w", err)
		}
		if !ok {
			return errors.NewNotFoundError("Company", *companyID)
		}
	}
	return nil
}

func dealEventData(d *models.Deal) map[string]interface{} {
	return map[string]interface{}{
		"id":          d.ID,
		"name":        d.Name,
		"value":       d.Value,
		"stage":       d.Stage,
		"probability": d.Probability,
		"source":      derefString(d.Source),
		"contactId":   derefString(d.ContactID),
		"companyId":   derefString(d.CompanyID),
	}
}

func dealEvent(trigger string, user *auth.UserSession, d *models.Deal, data map[string]interface{}) events.TriggerEvent {
	ev := events.NewTriggerEvent(events.EventType(trigger), d.TenantID, constants.EntityDeal, d.ID, data)
	if user != nil {
		ev.UserID = user.ID
	}
	return ev
}
