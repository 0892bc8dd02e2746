package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	gocache "github.com/patrickmn/go-cache"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/internal/metrics"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

const availablePlansKey = "plans:available"

// usageTables maps a plan limit resource onto the table its usage is counted in.
// Resources without a table count as zero.
var usageTables = map[string]string{
	constants.LimitContacts:     constants.TableContact,
	constants.LimitDeals:        constants.TableDeal,
	constants.LimitCompanies:    constants.TableCompany,
	constants.LimitForms:        constants.TableForm,
	constants.LimitAutomations:  constants.TableWorkflow,
	constants.LimitIntegrations: constants.TableWhatsAppIntegration,
}

// PlanService enforces plan limits and manages the plan catalogue
type PlanService struct {
	plans       *persistence.PlanRepository
	tenants     *persistence.TenantRepository
	users       *persistence.UserRepository
	stats       *persistence.StatsRepository
	auditor     ports.Auditor
	metrics     *metrics.Metrics
	cache       *gocache.Cache
	development bool
}

var _ ports.LimitChecker = (*PlanService)(nil)

// NewPlanService creates a PlanService. Plans are cached for cacheTTL.
func NewPlanService(plans *persistence.PlanRepository, tenants *persistence.TenantRepository,
	users *persistence.UserRepository, stats *persistence.StatsRepository, auditor ports.Auditor,
	m *metrics.Metrics, cacheTTL time.Duration, development bool) *PlanService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &PlanService{
		plans:       plans,
		tenants:     tenants,
		users:       users,
		stats:       stats,
		auditor:     auditor,
		metrics:     m,
		cache:       gocache.New(cacheTTL, 2*cacheTTL),
		development: development,
	}
}

// LimitCheck is the outcome of a quota check
type LimitCheck struct {
	Allowed      bool   `json:"allowed"`
	CurrentUsage int64  `json:"currentUsage"`
	Limit        int64  `json:"limit"`
	Message      string `json:"message,omitempty"`
}

// UsageLimit is the per-resource entry of the current-plan response
type UsageLimit struct {
	Used       int64 `json:"used"`
	Limit      int64 `json:"limit"`
	Percentage int64 `json:"percentage"`
}

// CurrentPlan is the response of GET /api/billing/current-plan
type CurrentPlan struct {
	Plan         *models.Plan          `json:"plan"`
	Features     models.PlanFeatures   `json:"features"`
	Subscription *models.Subscription  `json:"subscription,omitempty"`
	TrialEndsAt  *time.Time            `json:"trialEndsAt,omitempty"`
	Usage        map[string]int64      `json:"usage"`
	Limits       map[string]UsageLimit `json:"limits"`
}

// AvailablePlans returns the active plans ordered by sort order
func (s *PlanService) AvailablePlans(ctx context.Context) ([]models.Plan, error) {
	if cached, ok := s.cache.Get(availablePlansKey); ok {
		return cached.([]models.Plan), nil
	}
	plans, err := s.plans.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	s.cache.SetDefault(availablePlansKey, plans)
	return plans, nil
}

func (s *PlanService) getPlan(ctx context.Context, id string) (*models.Plan, error) {
	key := "plan:" + id
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*models.Plan), nil
	}
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan != nil {
		s.cache.SetDefault(key, plan)
	}
	return plan, nil
}

func (s *PlanService) invalidate() {
	s.cache.Flush()
}

// tenantPlan loads the tenant and its plan; plan is nil when unassigned
func (s *PlanService) tenantPlan(ctx context.Context, tenantID string) (*models.Tenant, *models.Plan, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, nil, errors.NewNotFoundError("Tenant", tenantID)
	}
	if tenant.PlanID == nil {
		return tenant, nil, nil
	}
	plan, err := s.getPlan(ctx, *tenant.PlanID)
	return tenant, plan, err
}

// ResourceUsage counts one resource for a tenant
func (s *PlanService) ResourceUsage(ctx context.Context, tenantID, resource string) (int64, error) {
	if resource == constants.LimitUsers {
		return s.users.CountByTenant(ctx, tenantID)
	}
	table, ok := usageTables[resource]
	if !ok {
		return 0, nil
	}
	return s.stats.CountTenantRows(ctx, table, tenantID)
}

// Usage counts every limited resource for a tenant
func (s *PlanService) Usage(ctx context.Context, tenantID string) (map[string]int64, error) {
	usage := make(map[string]int64, len(constants.LimitResources))
	for _, r := range constants.LimitResources {
		n, err := s.ResourceUsage(ctx, tenantID, r)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", r, err)
		}
		usage[r] = n
	}
	return usage, nil
}

// planLimit reads a numeric limit. ok is false when the plan does not limit the resource.
func planLimit(features models.PlanFeatures, resource string) (int64, bool) {
	raw, present := features[resource]
	if !present {
		return 0, false
	}
	limit, numeric := utils.ToInt64(raw)
	if !numeric || limit == constants.UnlimitedLimit {
		return 0, false
	}
	return limit, true
}

// CheckLimit reports whether adding increment records of resource stays within the tenant's plan
func (s *PlanService) CheckLimit(ctx context.Context, tenantID, resource string, increment int64) (LimitCheck, error) {
	_, plan, err := s.tenantPlan(ctx, tenantID)
	if err != nil {
		return LimitCheck{}, err
	}
	if plan == nil {
		return LimitCheck{Allowed: false, Message: "No valid plan found for tenant"}, nil
	}

	limit, limited := planLimit(plan.Features, resource)
	if !limited {
		return LimitCheck{Allowed: true, Limit: constants.UnlimitedLimit}, nil
	}

	usage, err := s.ResourceUsage(ctx, tenantID, resource)
	if err != nil {
		return LimitCheck{}, fmt.Errorf("failed to count %s: %w", resource, err)
	}
	if usage+increment <= limit {
		return LimitCheck{Allowed: true, CurrentUsage: usage, Limit: limit}, nil
	}
	return LimitCheck{
		Allowed:      false,
		CurrentUsage: usage,
		Limit:        limit,
		Message: fmt.Sprintf("This action would exceed your plan limit of %d %s. Current usage: %d/%d",
			limit, resource, usage, limit),
	}, nil
}

// EnsureWithinLimit returns a PlanLimitError when the create would exceed the plan
func (s *PlanService) EnsureWithinLimit(ctx context.Context, tenantID, resource string, increment int64) error {
	check, err := s.CheckLimit(ctx, tenantID, resource, increment)
	if err != nil {
		return err
	}
	if check.Allowed {
		return nil
	}
	if s.metrics != nil {
		s.metrics.PlanLimitRejections.WithLabelValues(resource).Inc()
	}
	glog.V(1).Infof("Plan limit reached for tenant %s on %s: %s", tenantID, resource, check.Message)
	return errors.NewPlanLimitError(check.Message, resource, check.CurrentUsage, check.Limit)
}

// CurrentPlan describes the tenant's plan with usage against each limit
func (s *PlanService) CurrentPlan(ctx context.Context, user *auth.UserSession) (*CurrentPlan, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	tenant, plan, err := s.tenantPlan(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, errors.NewNotFoundError("Plan", "")
	}
	usage, err := s.Usage(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sub, err := s.tenants.GetSubscription(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	limits := make(map[string]UsageLimit, len(usage))
	for resource, used := range usage {
		limit, limited := planLimit(plan.Features, resource)
		entry := UsageLimit{Used: used, Limit: constants.UnlimitedLimit}
		if limited {
			entry.Limit = limit
			entry.Percentage = utils.Percentage(used, limit)
		}
		limits[resource] = entry
	}

	return &CurrentPlan{
		Plan:         plan,
		Features:     plan.Features,
		Subscription: sub,
		TrialEndsAt:  tenant.TrialEndsAt,
		Usage:        usage,
		Limits:       limits,
	}, nil
}

// TenantUsage returns the caller's usage counters
func (s *PlanService) TenantUsage(ctx context.Context, user *auth.UserSession) (map[string]int64, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	return s.Usage(ctx, tenantID)
}

// Upgrade moves the caller's tenant to another plan.
// Paid plans switch without payment only in development.
func (s *PlanService) Upgrade(ctx context.Context, user *auth.UserSession, planID string) (*models.Plan, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(planID) == "" {
		return nil, errors.NewValidationError("planId", "Plan ID is required")
	}
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil {
		return nil, errors.NewNotFoundError("Plan", planID)
	}
	if !plan.IsActive {
		return nil, errors.BadRequest("Plan is not available")
	}
	if !plan.IsFree() && !s.development {
		return nil, errors.BadRequest("Payment processing not configured")
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, errors.NewNotFoundError("Tenant", tenantID)
	}

	now := time.Now().UTC()
	// Only the plan changes. Tenant status stays under operator control.
	if err := s.tenants.Update(ctx, tenantID, map[string]interface{}{"plan_id": plan.ID}); err != nil {
		return nil, fmt.Errorf("failed to update tenant plan: %w", err)
	}
	if err := s.tenants.ReplaceSubscription(ctx, &models.Subscription{
		ID:                 utils.GenerateID(),
		TenantID:           tenantID,
		PlanID:             plan.ID,
		Status:             constants.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, 30),
	}); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	previous := ""
	if tenant.PlanID != nil {
		previous = *tenant.PlanID
	}
	s.auditor.Record(ctx, auditEntry(user, constants.AuditPlanUpgraded, constants.ResourceTenant, tenantID,
		map[string]interface{}{"planId": plan.ID},
		map[string]interface{}{"previousPlanId": previous, "planName": plan.Name}))
	return plan, nil
}

// PlanInput is the admin payload for creating or updating a plan
type PlanInput struct {
	Name        string              `json:"name"`
	DisplayName string              `json:"displayName"`
	Description *string             `json:"description"`
	Price       float64             `json:"price"`
	YearlyPrice float64             `json:"yearlyPrice"`
	Features    models.PlanFeatures `json:"features"`
	IsActive    *bool               `json:"isActive"`
	SortOrder   int                 `json:"sortOrder"`
}

// ListAll returns every plan including inactive ones
func (s *PlanService) ListAll(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.plans.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// Create adds a plan to the catalogue
func (s *PlanService) Create(ctx context.Context, user *auth.UserSession, in PlanInput) (*models.Plan, error) {
	name := strings.ToUpper(strings.TrimSpace(in.Name))
	if name == "" || strings.TrimSpace(in.DisplayName) == "" {
		return nil, errors.BadRequest("Name and display name are required")
	}
	existing, err := s.plans.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check plan name: %w", err)
	}
	if existing != nil {
		return nil, errors.BadRequest("A plan with this name already exists")
	}

	plan := &models.Plan{
		ID:          utils.GenerateID(),
		Name:        name,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Description: in.Description,
		Price:       utils.ToCents(in.Price),
		YearlyPrice: utils.ToCents(in.YearlyPrice),
		Features:    in.Features,
		IsActive:    in.IsActive == nil || *in.IsActive,
		SortOrder:   in.SortOrder,
	}
	if plan.Features == nil {
		plan.Features = models.PlanFeatures{}
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	s.invalidate()
	s.auditor.Record(ctx, auditEntry(user, constants.AuditCreate, constants.ResourcePlan, plan.ID,
		map[string]interface{}{"name": plan.Name}, nil))
	return plan, nil
}

// Update overwrites a plan's mutable fields
func (s *PlanService) Update(ctx context.Context, user *auth.UserSession, id string, in PlanInput) (*models.Plan, error) {
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil {
		return nil, errors.NewNotFoundError("Plan", id)
	}
	if strings.TrimSpace(in.DisplayName) != "" {
		plan.DisplayName = strings.TrimSpace(in.DisplayName)
	}
	if in.Description != nil {
		plan.Description = in.Description
	}
	plan.Price = utils.ToCents(in.Price)
	plan.YearlyPrice = utils.ToCents(in.YearlyPrice)
	if in.Features != nil {
		plan.Features = in.Features
	}
	if in.IsActive != nil {
		plan.IsActive = *in.IsActive
	}
	plan.SortOrder = in.SortOrder

	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	s.invalidate()
	s.auditor.Record(ctx, auditEntry(user, constants.AuditUpdate, constants.ResourcePlan, plan.ID,
		map[string]interface{}{"displayName": plan.DisplayName, "isActive": plan.IsActive}, nil))
	return plan, nil
}

// Delete removes a plan no tenant uses
func (s *PlanService) Delete(ctx context.Context, user *auth.UserSession, id string) error {
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil {
		return errors.NewNotFoundError("Plan", id)
	}
	inUse, err := s.plans.CountTenants(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count plan tenants: %w", err)
	}
	if inUse > 0 {
		return errors.BadRequest("Cannot delete plan: %d tenant(s) are using it", inUse)
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	s.invalidate()
	s.auditor.Record(ctx, auditEntry(user, constants.AuditDelete, constants.ResourcePlan, id,
		nil, map[string]interface{}{"name": plan.Name}))
	return nil
}
