// Package leaderboard строит рейтинг барменов за период и рассчитывает достижения.
package leaderboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// Period определяет окно, за которое суммируются баллы рейтинга.
type Period string

const (
	PeriodAll     Period = "all"
	PeriodMonthly Period = "monthly"
	PeriodWeekly  Period = "weekly"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ParsePeriod разбирает период рейтинга. Пустая строка означает весь период.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodAll:
		return PeriodAll, nil
	case PeriodMonthly, PeriodWeekly:
		return Period(s), nil
	}
	return "", &model.ValidationError{Field: "period", Reason: fmt.Sprintf("unknown period %q", s)}
}

// Since возвращает начало периода в UTC. Для периода all возвращается нулевое время.
// Месяц начинается первого числа, неделя в понедельник.
func (p Period) Since(now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch p {
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Time{}
	}
}

// NormalizeLimit приводит размер рейтинга к допустимому диапазону.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Rank упорядочивает участников по убыванию баллов. При равенстве выше тот,
// кто зарегистрировался раньше, затем тот, у кого меньше идентификатор.
// В рейтинге участвуют только бармены.
func Rank(rows []model.LeaderboardRow, limit int) []model.LeaderboardEntry {
	limit = NormalizeLimit(limit)

	candidates := make([]model.LeaderboardRow, 0, len(rows))
	for _, r := range rows {
		if r.Role == model.RoleBartender {
			candidates = append(candidates, r)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.UserID < b.UserID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	entries := make([]model.LeaderboardEntry, len(candidates))
	for i, r := range candidates {
		entries[i] = model.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			BarName:     r.BarName,
			Points:      r.Points,
		}
	}
	return entries
}
