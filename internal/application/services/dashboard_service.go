package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
	"github.com/nexuscrm/tenantcrm/pkg/errors"
	"github.com/nexuscrm/tenantcrm/pkg/utils"
)

const (
	defaultDashboardPeriod = 30
	maxDashboardPeriod     = 365
	recentActivityLimit    = 10
)

// DashboardService aggregates a tenant's CRM figures for the home screen
type DashboardService struct {
	stats      *persistence.StatsRepository
	activities *persistence.ActivityRepository
}

func NewDashboardService(stats *persistence.StatsRepository, activities *persistence.ActivityRepository) *DashboardService {
	return &DashboardService{stats: stats, activities: activities}
}

// DashboardStats is the tenant dashboard. Money values are in cents.
type DashboardStats struct {
	Period            int                               `json:"period"`
	TotalContacts     int64                             `json:"totalContacts"`
	TotalCompanies    int64                             `json:"totalCompanies"`
	TotalDeals        int64                             `json:"totalDeals"`
	TotalRevenue      int64                             `json:"totalRevenue"`
	PeriodRevenue     int64                             `json:"periodRevenue"`
	NewContacts       int64                             `json:"newContacts"`
	NewDeals          int64                             `json:"newDeals"`
	ContactsGrowth    int64                             `json:"contactsGrowth"`
	DealsGrowth       int64                             `json:"dealsGrowth"`
	RevenueGrowth     int64                             `json:"revenueGrowth"`
	UpcomingTasks     int64                             `json:"upcomingTasks"`
	OverdueActivities int64                             `json:"overdueActivities"`
	ContactsByStatus  map[string]int64                  `json:"contactsByStatus"`
	DealsByStage      map[string]persistence.StageTotal `json:"dealsByStage"`
	RecentActivities  []models.Activity                 `json:"recentActivities"`
}

// Stats computes the dashboard over the trailing period in days
func (s *DashboardService) Stats(ctx context.Context, user *auth.UserSession, period int) (*DashboardStats, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	if period <= 0 {
		period = defaultDashboardPeriod
	}
	if period > maxDashboardPeriod {
		return nil, errors.BadRequest("Period must be at most %d days", maxDashboardPeriod)
	}

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -period)
	prevStart := start.AddDate(0, 0, -period)
	out := &DashboardStats{Period: period}

	counts := []struct {
		table  string
		target *int64
	}{
		{constants.TableContact, &out.TotalContacts},
		{constants.TableCompany, &out.TotalCompanies},
		{constants.TableDeal, &out.TotalDeals},
	}
	for _, c := range counts {
		if *c.target, err = s.stats.CountTenantRows(ctx, c.table, tenantID); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	var prevContacts, prevDeals, prevRevenue int64
	windows := []struct {
		table    string
		from, to time.Time
		target   *int64
	}{
		{constants.TableContact, start, now, &out.NewContacts},
		{constants.TableContact, prevStart, start, &prevContacts},
		{constants.TableDeal, start, now, &out.NewDeals},
		{constants.TableDeal, prevStart, start, &prevDeals},
	}
	for _, w := range windows {
		if *w.target, err = s.stats.CountCreatedBetween(ctx, w.table, tenantID, w.from, w.to); err != nil {
			return nil, fmt.Errorf("failed to count new %s: %w", w.table, err)
		}
	}

	if out.TotalRevenue, err = s.stats.Revenue(ctx, tenantID, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if out.PeriodRevenue, err = s.stats.Revenue(ctx, tenantID, &start, &now); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if prevRevenue, err = s.stats.Revenue(ctx, tenantID, &prevStart, &start); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	out.ContactsGrowth = utils.Growth(out.NewContacts, prevContacts)
	out.DealsGrowth = utils.Growth(out.NewDeals, prevDeals)
	out.RevenueGrowth = utils.Growth(out.PeriodRevenue, prevRevenue)

	if out.UpcomingTasks, err = s.stats.UpcomingTasks(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	if out.OverdueActivities, err = s.stats.OverdueActivities(ctx, tenantID, now); err != nil {
		return nil, fmt.Errorf("failed to count overdue activities: %w", err)
	}
	if out.ContactsByStatus, err = s.stats.ContactsByStatus(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("failed to group contacts: %w", err)
	}
	if out.DealsByStage, err = s.stats.DealsByStage(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("failed to group deals: %w", err)
	}
	if out.RecentActivities, _, err = s.activities.List(ctx, persistence.ActivityFilter{
		TenantID: tenantID,
		Page:     1,
		Limit:    recentActivityLimit,
	}); err != nil {
		return nil, fmt.Errorf("failed to load recent activities: %w", err)
	}
	return out, nil
}
