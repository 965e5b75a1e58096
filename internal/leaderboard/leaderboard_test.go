package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

func TestRank_OrderAndTieBreak(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []model.LeaderboardRow{
		{UserID: 1, DisplayName: "late", Role: model.RoleBartender, CreatedAt: base.Add(48 * time.Hour), Points: 500},
		{UserID: 2, DisplayName: "top", Role: model.RoleBartender, CreatedAt: base.Add(72 * time.Hour), Points: 900},
		{UserID: 3, DisplayName: "early", Role: model.RoleBartender, CreatedAt: base, Points: 500},
		{UserID: 4, DisplayName: "admin", Role: model.RoleAdmin, CreatedAt: base, Points: 10000},
		{UserID: 5, DisplayName: "tester", Role: model.RoleTestBartender, CreatedAt: base, Points: 10000},
		{UserID: 6, DisplayName: "same time", Role: model.RoleBartender, CreatedAt: base, Points: 500},
	}

	got := Rank(rows, 0)
	require.Len(t, got, 4)

	ids := make([]int64, len(got))
	for i, e := range got {
		ids[i] = e.UserID
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, []int64{2, 3, 6, 1}, ids)

	again := Rank([]model.LeaderboardRow{rows[5], rows[0], rows[2], rows[1]}, 0)
	assert.Equal(t, got, again, "ranking must not depend on input order")
}

func TestRank_Limit(t *testing.T) {
	rows := make([]model.LeaderboardRow, 0, 150)
	for i := 0; i < 150; i++ {
		rows = append(rows, model.LeaderboardRow{UserID: int64(i + 1), Role: model.RoleBartender, Points: int64(i)})
	}

	assert.Len(t, Rank(rows, 0), DefaultLimit)
	assert.Len(t, Rank(rows, 3), 3)
	assert.Len(t, Rank(rows, 1000), MaxLimit)
}

func TestPeriodSince(t *testing.T) {
	// четверг
	now := time.Date(2024, 10, 17, 15, 30, 0, 0, time.UTC)

	assert.True(t, PeriodAll.Since(now).IsZero())
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), PeriodMonthly.Since(now))
	assert.Equal(t, time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC), PeriodWeekly.Since(now))

	sunday := time.Date(2024, 10, 20, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC), PeriodWeekly.Since(sunday))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodAll, p)

	p, err = ParsePeriod("weekly")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeekly, p)

	_, err = ParsePeriod("daily")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
