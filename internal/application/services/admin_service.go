package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/domain/ports"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

// adminSubscriptionDays is the billing period opened for tenants created by an operator
const adminSubscriptionDays = 30

var adminTenantStatuses = []string{constants.TenantStatusActive, constants.TenantStatusSuspended, constants.TenantStatusTrial}

// AdminService is the SUPER_ADMIN console over every tenant
type AdminService struct {
	tenants   *persistence.TenantRepository
	plans     *persistence.PlanRepository
	users     *persistence.UserRepository
	pipelines *persistence.PipelineRepository
	stats     *persistence.StatsRepository
	tx        *persistence.TransactionManager
	auditor   ports.Auditor
}

func NewAdminService(tenants *persistence.TenantRepository, plans *persistence.PlanRepository, users *persistence.UserRepository,
	pipelines *persistence.PipelineRepository, stats *persistence.StatsRepository, tx *persistence.TransactionManager,
	auditor ports.Auditor) *AdminService {
	return &AdminService{
		tenants:   tenants,
		plans:     plans,
		users:     users,
		pipelines: pipelines,
		stats:     stats,
		tx:        tx,
		auditor:   auditor,
	}
}

// TenantInput is the operator payload for creating or editing a tenant
type TenantInput struct {
	Name   *string `json:"name"`
	Slug   *string `json:"slug"`
	PlanID *string `json:"planId"`
	Status *string `json:"status"`
	Domain *string `json:"domain"`
}

// PlanShare is one plan's slice of the tenant base
type PlanShare struct {
	PlanName string `json:"planName"`
	Count    int64  `json:"count"`
	Revenue  int64  `json:"revenue"` // monthly, cents
}

// AdminStats summarizes the whole installation
type AdminStats struct {
	TotalTenants      int64       `json:"totalTenants"`
	ActiveTenants     int64       `json:"activeTenants"`
	TrialTenants      int64       `json:"trialTenants"`
	SuspendedTenants  int64       `json:"suspendedTenants"`
	TotalUsers        int64       `json:"totalUsers"`
	SuperAdmins       int64       `json:"superAdmins"`
	TotalContacts     int64       `json:"totalContacts"`
	TotalDeals        int64       `json:"totalDeals"`
	TotalForms        int64       `json:"totalForms"`
	TotalSubmissions  int64       `json:"totalSubmissions"`
	TotalRevenue      int64       `json:"totalRevenue"`
	PlanDistribution  []PlanShare `json:"planDistribution"`
	MonthlyRecurring  int64       `json:"monthlyRecurringRevenue"`
	TenantsWithNoPlan int64       `json:"tenantsWithoutPlan"`
}

// TenantDetail is a tenant with its plan and subscription
type TenantDetail struct {
	*models.Tenant
	Subscription *models.Subscription `json:"subscription"`
}

func requireSuperAdmin(user *auth.UserSession) error {
	return requireRole(user, []constants.Role{constants.RoleSuperAdmin}, "Access denied")
}

// Tenants returns a page of tenants with usage counts
func (s *AdminService) Tenants(ctx context.Context, user *auth.UserSession, search, status string, page utils.Pagination) ([]models.TenantSummary, utils.Pagination, error) {
	if err := requireSuperAdmin(user); err != nil {
		return nil, page, err
	}
	list, total, err := s.tenants.List(ctx, persistence.TenantFilter{
		Search: strings.TrimSpace(search),
		Status: allFilter(status),
		Page:   page.Page,
		Limit:  page.Limit,
	})
	if err != nil {
		return nil, page, fmt.Errorf("failed to list tenants: %w", err)
	}
	return list, page.WithTotal(total), nil
}

// CreateTenant provisions a tenant on an active plan with an ACTIVE
// subscription and the default contact pipeline
func (s *AdminService) CreateTenant(ctx context.Context, user *auth.UserSession, in TenantInput) (*TenantDetail, error) {
	if err := requireSuperAdmin(user); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(derefString(in.Name))
	slug := utils.Slugify(derefString(in.Slug))
	planID := strings.TrimSpace(derefString(in.PlanID))
	if name == "" || slug == "" || planID == "" {
		return nil, errors.BadRequest("Missing required fields: name, slug, planId")
	}
	taken, err := s.tenants.SlugExists(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to check tenant slug: %w", err)
	}
	if taken {
		return nil, errors.NewConflictError("Tenant", "slug", slug)
	}
	plan, err := s.activePlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tenant := &models.Tenant{
		ID:        utils.GenerateID(),
		Name:      name,
		Slug:      slug,
		Domain:    emptyToNil(in.Domain),
		PlanID:    &plan.ID,
		Status:    constants.TenantStatusActive,
		Settings:  map[string]interface{}{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	sub := &models.Subscription{
		ID:                 utils.GenerateID(),
		TenantID:           tenant.ID,
		PlanID:             plan.ID,
		Status:             constants.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 0, adminSubscriptionDays),
		CreatedAt:          now,
	}
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.tenants.Create(ctx, tenant); err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		if err := s.tenants.CreateSubscription(ctx, sub); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		if err := s.pipelines.Create(ctx, newDefaultPipeline(tenant.ID)); err != nil {
			return fmt.Errorf("failed to create default pipeline: %w", err)
		}
		return nil
	})
	if err != nil {
		if persistence.IsDuplicateKey(err) {
			return nil, errors.NewConflictError("Tenant", "slug", slug)
		}
		return nil, err
	}

	glog.Infof("Tenant %s (%s) created by operator %s on plan %s", tenant.Slug, tenant.ID, user.ID, plan.Name)
	s.auditor.Record(ctx, auditEntry(user, constants.AuditTenantCreated, constants.ResourceTenant, tenant.ID, nil,
		map[string]interface{}{"tenantName": tenant.Name, "planId": plan.ID}))
	tenant.Plan = plan
	return &TenantDetail{Tenant: tenant, Subscription: sub}, nil
}

// Tenant returns one tenant with its plan and subscription
func (s *AdminService) Tenant(ctx context.Context, user *auth.UserSession, id string) (*TenantDetail, error) {
	if err := requireSuperAdmin(user); err != nil {
		return nil, err
	}
	return s.loadTenant(ctx, id)
}

// UpdateTenant edits name, domain, plan or status (ACTIVE/SUSPENDED/TRIAL)
func (s *AdminService) UpdateTenant(ctx context.Context, user *auth.UserSession, id string, in TenantInput) (*TenantDetail, error) {
	if err := requireSuperAdmin(user); err != nil {
		return nil, err
	}
	current, err := s.loadTenant(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errors.BadRequest("Tenant name is required")
		}
		fields["name"] = name
	}
	if in.Domain != nil {
		fields["domain"] = emptyToNil(in.Domain)
	}
	if in.Status != nil && *in.Status != current.Status {
		if !constants.Contains(adminTenantStatuses, *in.Status) {
			return nil, errors.BadRequest("Invalid tenant status")
		}
		fields["status"] = *in.Status
	}
	if in.PlanID != nil && *in.PlanID != derefString(current.PlanID) {
		plan, err := s.activePlan(ctx, *in.PlanID)
		if err != nil {
			return nil, err
		}
		fields["plan_id"] = plan.ID
	}
	if len(fields) == 0 {
		return current, nil
	}
	fields["updated_at"] = time.Now().UTC()
	if err := s.tenants.Update(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}

	glog.Infof("Tenant %s updated by operator %s: %v", id, user.ID, mapKeys(fields))
	s.auditor.Record(ctx, auditEntry(user, constants.AuditTenantUpdated, constants.ResourceTenant, id, fields,
		map[string]interface{}{"previousStatus": current.Status, "previousPlanId": derefString(current.PlanID)}))
	return s.loadTenant(ctx, id)
}

// Stats summarizes tenants, users and revenue across the installation
func (s *AdminService) Stats(ctx context.Context, user *auth.UserSession) (*AdminStats, error) {
	if err := requireSuperAdmin(user); err != nil {
		return nil, err
	}
	out := &AdminStats{PlanDistribution: []PlanShare{}}
	var err error

	statusCounts := []struct {
		status string
		target *int64
	}{
		{"", &out.TotalTenants},
		{constants.TenantStatusActive, &out.ActiveTenants},
		{constants.TenantStatusTrial, &out.TrialTenants},
		{constants.TenantStatusSuspended, &out.SuspendedTenants},
	}
	for _, c := range statusCounts {
		if *c.target, err = s.tenants.Count(ctx, c.status); err != nil {
			return nil, fmt.Errorf("failed to count tenants: %w", err)
		}
	}

	tableCounts := []struct {
		table  string
		target *int64
	}{
		{constants.TableUser, &out.TotalUsers},
		{constants.TableContact, &out.TotalContacts},
		{constants.TableDeal, &out.TotalDeals},
		{constants.TableForm, &out.TotalForms},
		{constants.TableFormSubmission, &out.TotalSubmissions},
	}
	for _, c := range tableCounts {
		if *c.target, err = s.stats.CountTenantRows(ctx, c.table, ""); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	if out.SuperAdmins, err = s.users.CountByRole(ctx, constants.RoleSuperAdmin); err != nil {
		return nil, fmt.Errorf("failed to count super admins: %w", err)
	}
	if out.TotalRevenue, err = s.stats.Revenue(ctx, "", nil, nil); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	byPlan, err := s.stats.TenantsByPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to group tenants by plan: %w", err)
	}
	plans, err := s.plans.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	for _, p := range plans {
		n := byPlan[p.Name]
		share := PlanShare{PlanName: p.DisplayName, Count: n, Revenue: p.Price * n}
		out.PlanDistribution = append(out.PlanDistribution, share)
		out.MonthlyRecurring += share.Revenue
	}
	out.TenantsWithNoPlan = byPlan["NONE"]
	return out, nil
}

// Users returns a page of users across every tenant
func (s *AdminService) Users(ctx context.Context, user *auth.UserSession, search, role, tenantID string, page utils.Pagination) ([]models.User, utils.Pagination, error) {
	if err := requireSuperAdmin(user); err != nil {
		return nil, page, err
	}
	users, total, err := s.users.List(ctx, persistence.UserFilter{
		TenantID: tenantID,
		Search:   strings.TrimSpace(search),
		Role:     allFilter(role),
		Page:     page.Page,
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, page, fmt.Errorf("failed to list users: %w", err)
	}
	return users, page.WithTotal(total), nil
}

func (s *AdminService) loadTenant(ctx context.Context, id string) (*TenantDetail, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, errors.NewNotFoundError("Tenant", id)
	}
	if tenant.PlanID != nil {
		if tenant.Plan, err = s.plans.GetByID(ctx, *tenant.PlanID); err != nil {
			return nil, fmt.Errorf("failed to load plan: %w", err)
		}
	}
	sub, err := s.tenants.GetSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &TenantDetail{Tenant: tenant, Subscription: sub}, nil
}

func (s *AdminService) activePlan(ctx context.Context, id string) (*models.Plan, error) {
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil || !plan.IsActive {
		return nil, errors.BadRequest("Invalid or inactive plan")
	}
	return plan, nil
}
