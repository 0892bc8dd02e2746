package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/auth"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// Revenue targets in cents
const (
	forecastMonthTarget   int64 = 100000 * 100
	forecastQuarterTarget int64 = 300000 * 100
)

const (
	forecastListLimit    = 10
	forecastUpcomingDays = 30
	forecastStaleDays    = 14
	forecastBestCaseProb = 70
	forecastWorstProb    = 30
	forecastLowProb      = 30
)

// ForecastQuery filters the deals a forecast is computed over
type ForecastQuery struct {
	Team    string // substring of the assignee's name
	Product string // exact tag or substring of the description
}

// ForecastPeriod is revenue for one calendar period
type ForecastPeriod struct {
	Target    int64 `json:"target"`
	Actual    int64 `json:"actual"`
	Projected int64 `json:"projected"`
	Deals     int   `json:"deals"`
}

// ForecastPipeline summarizes the open pipeline
type ForecastPipeline struct {
	Weighted   int64 `json:"weighted"`
	Unweighted int64 `json:"unweighted"`
	BestCase   int64 `json:"bestCase"`
	WorstCase  int64 `json:"worstCase"`
}

// ForecastTrends compares against the previous period. Percentages are 0-100.
type ForecastTrends struct {
	MonthlyGrowth   float64 `json:"monthlyGrowth"`
	QuarterlyGrowth float64 `json:"quarterlyGrowth"`
	ConversionRate  float64 `json:"conversionRate"`
	AverageDealSize float64 `json:"averageDealSize"`
}

// ForecastDeal is a deal listed in the upcoming or at-risk sections
type ForecastDeal struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Value       int64       `json:"value"`
	Probability int         `json:"probability"`
	CloseDate   *time.Time  `json:"closeDate"`
	Stage       string      `json:"stage"`
	RiskReason  string      `json:"riskReason,omitempty"`
	Company     *models.Ref `json:"company"`
}

// Forecast is the response of GET /api/deals/forecast
type Forecast struct {
	CurrentMonth   ForecastPeriod   `json:"currentMonth"`
	CurrentQuarter ForecastPeriod   `json:"currentQuarter"`
	Pipeline       ForecastPipeline `json:"pipeline"`
	Trends         ForecastTrends   `json:"trends"`
	UpcomingDeals  []ForecastDeal   `json:"upcomingDeals"`
	RiskDeals      []ForecastDeal   `json:"riskDeals"`
}

// Forecast projects revenue for the current month and quarter from the tenant's deals
func (s *DealService) Forecast(ctx context.Context, user *auth.UserSession, q ForecastQuery) (*Forecast, error) {
	tenantID, err := requireTenant(user)
	if err != nil {
		return nil, err
	}
	deals, _, err := s.deals.List(ctx, persistence.DealFilter{TenantID: tenantID, Owner: strings.TrimSpace(q.Team)})
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	return computeForecast(filterByProduct(deals, q.Product), time.Now().UTC()), nil
}

func filterByProduct(deals []models.Deal, product string) []models.Deal {
	product = strings.TrimSpace(product)
	if product == "" {
		return deals
	}
	needle := strings.ToLower(product)
	out := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if constants.Contains(d.Tags, product) || strings.Contains(strings.ToLower(derefString(d.Description)), needle) {
			out = append(out, d)
		}
	}
	return out
}

// period is the half-open interval [start, end)
type period struct{ start, end time.Time }

func (p period) contains(t *time.Time) bool {
	return t != nil && !t.Before(p.start) && t.Before(p.end)
}

func isClosedStage(stage string) bool {
	return stage == constants.DealStageClosedWon || stage == constants.DealStageClosedLost
}

func weightedValue(d models.Deal) float64 {
	return float64(d.Value) * float64(d.Probability) / 100
}

func summarizePeriod(deals []models.Deal, p period, target int64) ForecastPeriod {
	out := ForecastPeriod{Target: target}
	var projected float64
	for _, d := range deals {
		if !p.contains(d.CloseDate) {
			continue
		}
		out.Deals++
		projected += weightedValue(d)
		if d.Stage == constants.DealStageClosedWon {
			out.Actual += d.Value
		}
	}
	out.Projected = int64(math.Round(projected))
	return out
}

func wonIn(deals []models.Deal, p period) int64 {
	var sum int64
	for _, d := range deals {
		if d.Stage == constants.DealStageClosedWon && p.contains(d.CloseDate) {
			sum += d.Value
		}
	}
	return sum
}

func growth(current, previous int64) float64 {
	if previous <= 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

func forecastDeal(d models.Deal, reason string) ForecastDeal {
	return ForecastDeal{
		ID:          d.ID,
		Name:        d.Name,
		Value:       d.Value,
		Probability: d.Probability,
		CloseDate:   d.CloseDate,
		Stage:       d.Stage,
		RiskReason:  reason,
		Company:     d.Company,
	}
}

// riskReason names the first risk that applies to an open deal, or ""
func riskReason(d models.Deal, now time.Time) string {
	switch {
	case d.CloseDate != nil && d.CloseDate.Before(now):
		return "Overdue"
	case d.Probability < forecastLowProb:
		return "Low probability"
	case d.LastActivity != nil && d.LastActivity.Before(now.AddDate(0, 0, -forecastStaleDays)):
		return "No recent activity"
	}
	return ""
}

// computeForecast works on calendar months and quarters of now's location.
// deals is expected newest first, which orders the at-risk list.
func computeForecast(deals []models.Deal, now time.Time) *Forecast {
	loc := now.Location()
	y, m := now.Year(), now.Month()
	qm := time.Month((int(m)-1)/3*3 + 1)
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	quarterStart := time.Date(y, qm, 1, 0, 0, 0, 0, loc)

	month := period{monthStart, monthStart.AddDate(0, 1, 0)}
	quarter := period{quarterStart, quarterStart.AddDate(0, 3, 0)}
	prevMonth := period{monthStart.AddDate(0, -1, 0), monthStart}
	prevQuarter := period{quarterStart.AddDate(0, -3, 0), quarterStart}

	f := &Forecast{
		CurrentMonth:   summarizePeriod(deals, month, forecastMonthTarget),
		CurrentQuarter: summarizePeriod(deals, quarter, forecastQuarterTarget),
		UpcomingDeals:  []ForecastDeal{},
		RiskDeals:      []ForecastDeal{},
	}

	var weighted, worst float64
	var total int64
	won := 0
	horizon := now.AddDate(0, 0, forecastUpcomingDays)
	var upcoming []models.Deal
	for _, d := range deals {
		total += d.Value
		if d.Stage == constants.DealStageClosedWon {
			won++
		}
		if isClosedStage(d.Stage) {
			continue
		}

		weighted += weightedValue(d)
		f.Pipeline.Unweighted += d.Value
		if d.Probability >= forecastBestCaseProb {
			f.Pipeline.BestCase += d.Value
		}
		if d.Probability >= forecastWorstProb {
			worst += float64(d.Value) * 0.3
		}
		if d.CloseDate != nil && !d.CloseDate.Before(now) && !d.CloseDate.After(horizon) {
			upcoming = append(upcoming, d)
		}
		if reason := riskReason(d, now); reason != "" && len(f.RiskDeals) < forecastListLimit {
			f.RiskDeals = append(f.RiskDeals, forecastDeal(d, reason))
		}
	}
	f.Pipeline.Weighted = int64(math.Round(weighted))
	f.Pipeline.WorstCase = int64(math.Round(worst))

	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].CloseDate.Before(*upcoming[j].CloseDate) })
	for i, d := range upcoming {
		if i == forecastListLimit {
			break
		}
		f.UpcomingDeals = append(f.UpcomingDeals, forecastDeal(d, ""))
	}

	f.Trends.MonthlyGrowth = growth(f.CurrentMonth.Actual, wonIn(deals, prevMonth))
	f.Trends.QuarterlyGrowth = growth(f.CurrentQuarter.Actual, wonIn(deals, prevQuarter))
	if n := len(deals); n > 0 {
		f.Trends.ConversionRate = float64(won) / float64(n) * 100
		f.Trends.AverageDealSize = float64(total) / float64(n)
	}
	return f
}
