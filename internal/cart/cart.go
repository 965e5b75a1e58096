// Package cart реализует корзину призов пользователя и снимок корзины для оформления заказа.
package cart

import (
	"math"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// MaxQuantity ограничивает количество одного приза в корзине.
const MaxQuantity = 1000

var (
	// ErrInvalidQuantity возвращается, если количество позиции меньше единицы.
	ErrInvalidQuantity = &model.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	// ErrQuantityTooLarge возвращается, если количество позиции больше MaxQuantity.
	ErrQuantityTooLarge = &model.ValidationError{Field: "quantity", Reason: "must not exceed 1000"}
	// ErrTotalTooLarge возвращается, если стоимость корзины не помещается в int64.
	ErrTotalTooLarge = &model.ValidationError{Field: "quantity", Reason: "cart total is too large"}
)

// Line описывает позицию корзины. Name, Description, Cost и Available отражают текущее состояние приза.
type Line struct {
	PrizeID     int64
	Name        string
	Description string
	Cost        int64
	Available   bool
	Quantity    int
}

// Cart представляет корзину одного пользователя. Приз встречается в корзине не более одного раза,
// порядок позиций соответствует порядку добавления.
type Cart struct {
	UserID  int64
	Lines   []Line
	Version int64
}

// New создаёт пустую корзину пользователя.
func New(userID int64) *Cart {
	return &Cart{UserID: userID}
}

// AddOrUpdate добавляет приз в корзину или заменяет количество уже добавленного приза.
func (c *Cart) AddOrUpdate(prize model.Prize, quantity int) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	if !prize.Available {
		return model.ErrPrizeUnavailable
	}

	line := Line{
		PrizeID:     prize.ID,
		Name:        prize.Name,
		Description: prize.Description,
		Cost:        prize.Cost,
		Available:   prize.Available,
		Quantity:    quantity,
	}

	if i := c.index(prize.ID); i >= 0 {
		prev := c.Lines[i]
		c.Lines[i] = line
		if _, err := c.checkedTotal(); err != nil {
			c.Lines[i] = prev
			return err
		}
		return nil
	}
	c.Lines = append(c.Lines, line)
	if _, err := c.checkedTotal(); err != nil {
		c.Lines = c.Lines[:len(c.Lines)-1]
		return err
	}
	return nil
}

// SetQuantity меняет количество позиции. Уменьшение ниже единицы отклоняется, а не удаляет позицию.
func (c *Cart) SetQuantity(prizeID int64, quantity int) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	i := c.index(prizeID)
	if i < 0 {
		return model.ErrNotFound
	}
	prev := c.Lines[i].Quantity
	c.Lines[i].Quantity = quantity
	if _, err := c.checkedTotal(); err != nil {
		c.Lines[i].Quantity = prev
		return err
	}
	return nil
}

// Remove удаляет позицию из корзины.
func (c *Cart) Remove(prizeID int64) error {
	i := c.index(prizeID)
	if i < 0 {
		return model.ErrNotFound
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return nil
}

// Total возвращает стоимость корзины в баллах. Для корзины, собранной через AddOrUpdate
// и SetQuantity, переполнение невозможно; Snapshot проверяет его повторно.
func (c *Cart) Total() int64 {
	total, _ := c.checkedTotal()
	return total
}

func (c *Cart) checkedTotal() (int64, error) {
	var total int64
	for _, l := range c.Lines {
		if l.Quantity < 0 || l.Cost < 0 {
			return 0, ErrTotalTooLarge
		}
		if l.Quantity > 0 && l.Cost > math.MaxInt64/int64(l.Quantity) {
			return 0, ErrTotalTooLarge
		}
		sub := l.Cost * int64(l.Quantity)
		if total > math.MaxInt64-sub {
			return 0, ErrTotalTooLarge
		}
		total += sub
	}
	return total, nil
}

func checkQuantity(quantity int) error {
	switch {
	case quantity < 1:
		return ErrInvalidQuantity
	case quantity > MaxQuantity:
		return ErrQuantityTooLarge
	}
	return nil
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Snapshot копирует позиции корзины в позиции заказа.
func (c *Cart) Snapshot() ([]model.OrderItem, int64, error) {
	if c.IsEmpty() {
		return nil, 0, model.ErrEmptyCart
	}

	total, err := c.checkedTotal()
	if err != nil {
		return nil, 0, err
	}

	items := make([]model.OrderItem, 0, len(c.Lines))
	for _, l := range c.Lines {
		if !l.Available {
			return nil, 0, model.ErrPrizeUnavailable
		}
		if err := checkQuantity(l.Quantity); err != nil {
			return nil, 0, err
		}
		items = append(items, model.OrderItem{
			PrizeID:     l.PrizeID,
			Name:        l.Name,
			Description: l.Description,
			Price:       l.Cost,
			Quantity:    l.Quantity,
		})
	}

	return items, total, nil
}

func (c *Cart) index(prizeID int64) int {
	for i, l := range c.Lines {
		if l.PrizeID == prizeID {
			return i
		}
	}
	return -1
}
