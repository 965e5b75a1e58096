package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

func TestEvaluate(t *testing.T) {
	defs := []Definition{
		{Code: "first_sale", Metric: MetricSales, Target: 1},
		{Code: "sales_10", Metric: MetricSales, Target: 10},
		{Code: "points_1000", Metric: MetricPointsEarned, Target: 1000},
		{Code: "first_order", Metric: MetricOrders, Target: 1},
	}
	earlier := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	stats := model.UserStats{SalesCount: 4, PointsEarned: 1500}
	report, fresh := Evaluate(defs, stats, map[string]time.Time{"first_sale": earlier}, now)

	require.Len(t, report.Achievements, 4)

	first := report.Achievements[0]
	assert.True(t, first.Unlocked)
	assert.Equal(t, earlier, *first.UnlockedAt, "stored unlock time must be kept")

	sales := report.Achievements[1]
	assert.False(t, sales.Unlocked)
	assert.Equal(t, 40, sales.Percent)
	assert.Nil(t, sales.UnlockedAt)

	points := report.Achievements[2]
	assert.True(t, points.Unlocked)
	assert.Equal(t, 100, points.Percent)

	assert.Equal(t, map[string]time.Time{"points_1000": now}, fresh)
	assert.Equal(t, Summary{Total: 4, Unlocked: 2, Percent: 50}, report.Summary)
	assert.Equal(t, stats, report.Stats)
}

func TestCatalog_UniqueCodes(t *testing.T) {
	seen := make(map[string]bool)
	for _, d := range Catalog {
		assert.False(t, seen[d.Code], d.Code)
		assert.Positive(t, d.Target)
		seen[d.Code] = true
	}
}
