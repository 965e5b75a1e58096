package leaderboard

import (
	"time"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// Metric определяет показатель активности, по которому считается прогресс достижения.
type Metric string

const (
	MetricSales            Metric = "sales"
	MetricPortions         Metric = "portions"
	MetricPointsEarned     Metric = "points_earned"
	MetricOrders           Metric = "orders"
	MetricDistinctProducts Metric = "distinct_products"
)

// Definition описывает достижение: метрику и порог.
type Definition struct {
	Code        string
	Title       string
	Description string
	Metric      Metric
	Target      int64
}

// Catalog содержит набор достижений платформы.
var Catalog = []Definition{
	{Code: "first_sale", Title: "Первая продажа", Description: "Зафиксируйте первую продажу", Metric: MetricSales, Target: 1},
	{Code: "sales_10", Title: "Десять продаж", Description: "Зафиксируйте 10 продаж", Metric: MetricSales, Target: 10},
	{Code: "sales_100", Title: "Сотня", Description: "Зафиксируйте 100 продаж", Metric: MetricSales, Target: 100},
	{Code: "portions_500", Title: "Полтысячи порций", Description: "Продайте 500 порций", Metric: MetricPortions, Target: 500},
	{Code: "points_1000", Title: "Тысяча баллов", Description: "Заработайте 1000 баллов", Metric: MetricPointsEarned, Target: 1000},
	{Code: "points_10000", Title: "Десять тысяч баллов", Description: "Заработайте 10000 баллов", Metric: MetricPointsEarned, Target: 10000},
	{Code: "first_order", Title: "Первый приз", Description: "Оформите первый заказ призов", Metric: MetricOrders, Target: 1},
	{Code: "explorer", Title: "Знаток ассортимента", Description: "Продайте 5 разных продуктов", Metric: MetricDistinctProducts, Target: 5},
}

// Achievement описывает состояние достижения для пользователя.
type Achievement struct {
	Code        string     `json:"code"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Progress    int64      `json:"progress"`
	Target      int64      `json:"target"`
	Percent     int        `json:"percent"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}

// Summary содержит сводку по достижениям.
type Summary struct {
	Total    int `json:"total"`
	Unlocked int `json:"unlocked"`
	Percent  int `json:"percent"`
}

// Report содержит достижения пользователя со сводкой и статистикой.
type Report struct {
	Achievements []Achievement   `json:"achievements"`
	Summary      Summary         `json:"summary"`
	Stats        model.UserStats `json:"stats"`
}

func metricValue(stats model.UserStats, m Metric) int64 {
	switch m {
	case MetricSales:
		return stats.SalesCount
	case MetricPortions:
		return stats.PortionsSold
	case MetricPointsEarned:
		return stats.PointsEarned
	case MetricOrders:
		return stats.OrdersPlaced
	case MetricDistinctProducts:
		return stats.DistinctProducts
	}
	return 0
}

// Evaluate сопоставляет статистику с каталогом. unlocks содержит уже сохранённые
// моменты открытия; достижения, впервые достигшие порога, получают время now и
// возвращаются в fresh, чтобы вызывающий сохранил их.
func Evaluate(defs []Definition, stats model.UserStats, unlocks map[string]time.Time, now time.Time) (Report, map[string]time.Time) {
	report := Report{
		Achievements: make([]Achievement, 0, len(defs)),
		Stats:        stats,
	}
	fresh := make(map[string]time.Time)

	for _, d := range defs {
		progress := metricValue(stats, d.Metric)
		a := Achievement{
			Code:        d.Code,
			Title:       d.Title,
			Description: d.Description,
			Progress:    progress,
			Target:      d.Target,
			Percent:     percent(progress, d.Target),
		}

		if at, ok := unlocks[d.Code]; ok {
			a.Unlocked = true
			a.UnlockedAt = &at
		} else if progress >= d.Target {
			at := now
			a.Unlocked = true
			a.UnlockedAt = &at
			fresh[d.Code] = now
		}
		if a.Unlocked {
			report.Summary.Unlocked++
		}

		report.Achievements = append(report.Achievements, a)
	}

	report.Summary.Total = len(defs)
	report.Summary.Percent = percent(int64(report.Summary.Unlocked), int64(report.Summary.Total))
	return report, fresh
}

func percent(progress, target int64) int {
	if target <= 0 {
		return 100
	}
	if progress >= target {
		return 100
	}
	if progress <= 0 {
		return 0
	}
	return int(progress * 100 / target)
}
