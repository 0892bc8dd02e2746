package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

func TestComputeForecast(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	on := func(m time.Month, d int) *time.Time {
		v := time.Date(2024, m, d, 9, 0, 0, 0, time.UTC)
		return &v
	}
	stale := now.AddDate(0, 0, -20)
	acme := &models.Ref{ID: "co-1", Name: "Acme"}

	deals := []models.Deal{
		{ID: "a", Stage: constants.DealStageClosedWon, Value: 50000, Probability: 100, CloseDate: on(time.May, 10)},
		{ID: "b", Stage: constants.DealStageClosedWon, Value: 25000, Probability: 100, CloseDate: on(time.April, 20)},
		{ID: "c", Stage: constants.DealStageClosedWon, Value: 30000, Probability: 100, CloseDate: on(time.February, 1)},
		{ID: "d", Stage: constants.DealStageNegotiation, Value: 100000, Probability: 80, CloseDate: on(time.May, 25), Company: acme},
		{ID: "e", Stage: constants.DealStageProposal, Value: 20000, Probability: 20, CloseDate: on(time.May, 20)},
		{ID: "f", Stage: constants.DealStageQualification, Value: 40000, Probability: 50, CloseDate: on(time.May, 1)},
		{ID: "g", Stage: constants.DealStageClosedLost, Value: 10000, CloseDate: on(time.May, 2)},
		{ID: "h", Stage: constants.DealStageProspecting, Value: 5000, Probability: 40, LastActivity: &stale},
	}

	f := computeForecast(deals, now)

	assert.Equal(t, ForecastPeriod{Target: forecastMonthTarget, Actual: 50000, Projected: 154000, Deals: 5}, f.CurrentMonth)
	assert.Equal(t, ForecastPeriod{Target: forecastQuarterTarget, Actual: 75000, Projected: 179000, Deals: 6}, f.CurrentQuarter)
	assert.Equal(t, ForecastPipeline{Weighted: 106000, Unweighted: 165000, BestCase: 100000, WorstCase: 43500}, f.Pipeline)

	assert.InDelta(t, 100.0, f.Trends.MonthlyGrowth, 0.001)
	assert.InDelta(t, 150.0, f.Trends.QuarterlyGrowth, 0.001)
	assert.InDelta(t, 37.5, f.Trends.ConversionRate, 0.001)
	assert.InDelta(t, 35000.0, f.Trends.AverageDealSize, 0.001)

	require.Len(t, f.UpcomingDeals, 2)
	assert.Equal(t, "e", f.UpcomingDeals[0].ID)
	assert.Equal(t, "d", f.UpcomingDeals[1].ID)
	assert.Equal(t, acme, f.UpcomingDeals[1].Company)

	reasons := map[string]string{}
	for _, d := range f.RiskDeals {
		reasons[d.ID] = d.RiskReason
	}
	assert.Equal(t, map[string]string{"e": "Low probability", "f": "Overdue", "h": "No recent activity"}, reasons)
}

func TestComputeForecastEmpty(t *testing.T) {
	f := computeForecast(nil, time.Now())

	assert.Equal(t, forecastMonthTarget, f.CurrentMonth.Target)
	assert.Zero(t, f.Trends.ConversionRate)
	assert.NotNil(t, f.UpcomingDeals)
	assert.NotNil(t, f.RiskDeals)
}

func TestComputeForecastCapsLists(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	var deals []models.Deal
	for i := 0; i < 15; i++ {
		closeAt := now.AddDate(0, 0, 15-i)
		deals = append(deals, models.Deal{ID: string(rune('a' + i)), Stage: constants.DealStageProposal, Value: 100, Probability: 10, CloseDate: &closeAt})
	}

	f := computeForecast(deals, now)
	require.Len(t, f.UpcomingDeals, forecastListLimit)
	assert.Len(t, f.RiskDeals, forecastListLimit)
	// soonest close date first
	assert.Equal(t, "o", f.UpcomingDeals[0].ID)
}

func TestFilterByProduct(t *testing.T) {
	desc := "Annual Widget license"
	deals := []models.Deal{
		{ID: "tagged", Tags: []string{"widget"}},
		{ID: "described", Description: &desc},
		{ID: "other", Tags: []string{"gadget"}},
	}

	assert.Len(t, filterByProduct(deals, ""), 3)

	var ids []string
	for _, d := range filterByProduct(deals, " widget ") {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"tagged", "described"}, ids)
}

func TestDealService_Forecast_TeamFilter(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewDealService(persistence.NewDealRepository(db), nil, nil, nil, nil, nil, &recordingAuditor{})

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM deals d (.+) WHERE d.tenant_id = \\? AND d.assigned_to IN \\(SELECT id FROM users WHERE LOWER\\(name\\) LIKE \\?\\)").
		WithArgs(testTenantID, "%sam%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT (.+) FROM deals d (.+) ORDER BY d.created_at DESC").
		WithArgs(testTenantID, "%sam%").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	f, err := svc.Forecast(context.Background(), GetTestUser(constants.RoleSales), ForecastQuery{Team: "Sam"})
	require.NoError(t, err)
	assert.Empty(t, f.UpcomingDeals)
	assert.Equal(t, forecastQuarterTarget, f.CurrentQuarter.Target)
}
