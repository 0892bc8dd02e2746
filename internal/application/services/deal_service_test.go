package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

func TestComputeDealStats(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	daysAgo := func(n int) time.Time { return now.AddDate(0, 0, -n) }
	closedOn := daysAgo(2)

	deals := []models.Deal{
		{Stage: constants.DealStageProspecting, Value: 10000, CreatedAt: daysAgo(4), UpdatedAt: daysAgo(4)},
		{Stage: constants.DealStageProspecting, Value: 20000, CreatedAt: daysAgo(2), UpdatedAt: daysAgo(2)},
		// closed with an explicit close date: 10 - 2 = 8 days
		{Stage: constants.DealStageClosedWon, Value: 50000, CreatedAt: daysAgo(10), UpdatedAt: now, CloseDate: &closedOn},
		// closed without one falls back to updated_at: 6 - 2 = 4 days
		{Stage: constants.DealStageClosedLost, Value: 20000, CreatedAt: daysAgo(6), UpdatedAt: daysAgo(2)},
	}

	stats := computeDealStats(deals, now)

	assert.Equal(t, int64(100000), stats.TotalValue)
	assert.Equal(t, 4, stats.TotalDeals)
	assert.Equal(t, float64(25000), stats.AverageDealSize)
	assert.Equal(t, float64(25), stats.ConversionRate)
	assert.Equal(t, int64(6), stats.AverageSalesCycle)

	prospecting := stats.StageStats[constants.DealStageProspecting]
	assert.Equal(t, 2, prospecting.Count)
	assert.Equal(t, int64(30000), prospecting.Value)
	assert.Equal(t, int64(3), prospecting.AverageTime)

	for _, stage := range constants.DealStages {
		assert.Contains(t, stats.StageStats, stage, "every stage is reported")
	}
	assert.Zero(t, stats.StageStats[constants.DealStageNegotiation].Count)
}

func TestComputeDealStatsEmpty(t *testing.T) {
	stats := computeDealStats(nil, time.Now())

	assert.Zero(t, stats.TotalDeals)
	assert.Zero(t, stats.AverageDealSize)
	assert.Zero(t, stats.ConversionRate)
	assert.Zero(t, stats.AverageSalesCycle)
	assert.Len(t, stats.StageStats, len(constants.DealStages))
}

func TestCeilDays(t *testing.T) {
	assert.Equal(t, int64(0), ceilDays(0))
	assert.Equal(t, int64(1), ceilDays(time.Hour))
	assert.Equal(t, int64(2), ceilDays(25*time.Hour))
}
