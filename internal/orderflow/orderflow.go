// Package orderflow описывает жизненный цикл заказа призов.
package orderflow

import (
	"fmt"
	"time"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:    {model.OrderStatusConfirmed, model.OrderStatusCancelled},
	model.OrderStatusConfirmed:  {model.OrderStatusProcessing, model.OrderStatusCancelled},
	model.OrderStatusProcessing: {model.OrderStatusShipped},
	model.OrderStatusShipped:    {model.OrderStatusDelivered},
}

// ParseStatus проверяет, что строка является известным статусом заказа.
func ParseStatus(s string) (model.OrderStatus, error) {
	st := model.OrderStatus(s)
	switch st {
	case model.OrderStatusPending, model.OrderStatusConfirmed, model.OrderStatusProcessing,
		model.OrderStatusShipped, model.OrderStatusDelivered, model.OrderStatusCancelled:
		return st, nil
	}
	return "", &model.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown order status %q", s)}
}

// CanTransition сообщает, допустим ли переход from -> to.
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, является ли статус конечным.
func IsTerminal(s model.OrderStatus) bool {
	return s == model.OrderStatusDelivered || s == model.OrderStatusCancelled
}

// Start переводит новый заказ в статус pending и открывает историю статусов.
func Start(o *model.Order, now time.Time) {
	o.Status = model.OrderStatusPending
	o.History = []model.StatusHistoryEntry{{Status: model.OrderStatusPending, CreatedAt: now}}
	o.CreatedAt = now
	o.UpdatedAt = now
}

// Plan проверяет переход заказа в статус to и описывает изменения, которые хранилище
// должно применить в одной транзакции. Отмена возвращает списанные баллы.
func Plan(o model.Order, to model.OrderStatus, comment string, estimated *time.Time, now time.Time) (model.StatusChange, error) {
	if !CanTransition(o.Status, to) {
		return model.StatusChange{}, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, o.Status, to)
	}

	change := model.StatusChange{
		OrderID:           o.ID,
		ExpectedVersion:   o.Version,
		Entry:             model.StatusHistoryEntry{Status: to, Comment: comment, CreatedAt: now},
		EstimatedDelivery: estimated,
	}

	switch to {
	case model.OrderStatusDelivered:
		change.ActualDelivery = &now
	case model.OrderStatusCancelled:
		if o.TotalCost > 0 {
			orderID := o.ID
			change.Refund = &model.LedgerEntry{
				UserID:      o.UserID,
				Type:        model.LedgerRefund,
				Amount:      o.TotalCost,
				Description: "refund for cancelled order " + o.Number,
				OrderID:     &orderID,
				CreatedAt:   now,
			}
		}
	}

	return change, nil
}

// Apply применяет описанную смену статуса к заказу в памяти.
func Apply(o *model.Order, change model.StatusChange) {
	o.Status = change.Entry.Status
	o.History = append(o.History, change.Entry)
	if change.EstimatedDelivery != nil {
		o.EstimatedDelivery = change.EstimatedDelivery
	}
	if change.ActualDelivery != nil {
		o.ActualDelivery = change.ActualDelivery
	}
	o.UpdatedAt = change.Entry.CreatedAt
	o.Version++
}

// CheckDeliveryUpdate проверяет, что данные доставки заказа ещё можно менять.
func CheckDeliveryUpdate(o model.Order) error {
	if IsTerminal(o.Status) {
		return fmt.Errorf("%w: delivery info is frozen in status %s", model.ErrInvalidTransition, o.Status)
	}
	return nil
}
