// Package pricing рассчитывает стоимость проданных порций и начисляемые за них баллы.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// MaxQuantity ограничивает количество порций в одной продаже.
const MaxQuantity = 10000

var (
	errQuantityTooSmall = &model.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	errQuantityTooLarge = &model.ValidationError{Field: "quantity", Reason: "must not exceed 10000"}
	errPointsOverflow   = &model.ValidationError{Field: "quantity", Reason: "points do not fit into the balance"}
)

var maxPoints = decimal.NewFromInt(math.MaxInt64)

// Quote описывает результат расчёта продажи.
type Quote struct {
	PricePerPortion decimal.Decimal
	TotalPrice      decimal.Decimal
	Points          int64
}

// Calculate рассчитывает сумму продажи quantity порций продукта и количество баллов.
// Сумма округляется до копейки, баллы в режиме per_ruble округляются вниз.
func Calculate(p model.Product, quantity int) (Quote, error) {
	if err := validate(p, quantity); err != nil {
		return Quote{}, err
	}

	portions := decimal.NewFromInt(int64(p.PortionsPerBottle))
	qty := decimal.NewFromInt(int64(quantity))

	q := Quote{
		PricePerPortion: p.BottlePrice.Div(portions).Round(2),
		TotalPrice:      p.BottlePrice.Mul(qty).Div(portions).Round(2),
	}

	switch p.PointsMode {
	case model.PointsPerPortion:
		if p.PointsPerPortion > math.MaxInt64/int64(quantity) {
			return Quote{}, errPointsOverflow
		}
		q.Points = int64(quantity) * p.PointsPerPortion
	case model.PointsPerRuble:
		points := q.TotalPrice.Mul(p.PointsPerRuble).Floor()
		if points.GreaterThan(maxPoints) {
			return Quote{}, errPointsOverflow
		}
		q.Points = points.IntPart()
	}

	return q, nil
}

// Earnings возвращает денежное вознаграждение бармена за продажу на сумму total.
func Earnings(total, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() || !total.IsPositive() {
		return decimal.Zero
	}
	return total.Mul(rate).RoundFloor(2)
}

func validate(p model.Product, quantity int) error {
	if quantity < 1 {
		return errQuantityTooSmall
	}
	if quantity > MaxQuantity {
		return errQuantityTooLarge
	}
	if p.PortionsPerBottle <= 0 {
		return &model.ValidationError{Field: "portions_per_bottle", Reason: "must be positive"}
	}
	if p.BottlePrice.IsNegative() {
		return &model.ValidationError{Field: "bottle_price", Reason: "must not be negative"}
	}

	switch p.PointsMode {
	case model.PointsPerPortion:
		if p.PointsPerPortion < 0 {
			return &model.ValidationError{Field: "points_per_portion", Reason: "must not be negative"}
		}
	case model.PointsPerRuble:
		if p.PointsPerRuble.IsNegative() {
			return &model.ValidationError{Field: "points_per_ruble", Reason: "must not be negative"}
		}
	default:
		return &model.ValidationError{Field: "points_mode", Reason: "unknown points calculation mode"}
	}

	return nil
}
