package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/orderflow"
	"github.com/mmeshcher/bartender-loyalty/internal/validation"
)

var errInvalidOrderNumber = &model.ValidationError{Field: "number", Reason: "invalid order number"}

// ListOrders возвращает заказы пользователя.
func (s *Service) ListOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// ListAllOrders возвращает все заказы, при необходимости отфильтрованные по статусу.
func (s *Service) ListAllOrders(ctx context.Context, status string) ([]model.Order, error) {
	var st model.OrderStatus
	if status != "" {
		parsed, err := orderflow.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		st = parsed
	}
	return s.repo.ListOrders(ctx, st)
}

// GetOrder возвращает заказ. Чужие заказы видны только администратору и представителю бренда.
func (s *Service) GetOrder(ctx context.Context, actor model.Principal, number string) (*model.Order, error) {
	o, err := s.loadOrder(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID && actor.Role != model.RoleAdmin && actor.Role != model.RoleBrandRepresentative {
		return nil, model.ErrNotFound
	}
	return o, nil
}

func (s *Service) loadOrder(ctx context.Context, number string) (*model.Order, error) {
	if !validation.IsValidOrderNumber(number) {
		return nil, errInvalidOrderNumber
	}
	return s.repo.GetOrderByNumber(ctx, number)
}

// TransitionOrder переводит заказ в новый статус.
func (s *Service) TransitionOrder(ctx context.Context, number string, to model.OrderStatus, comment string, estimated *time.Time) (*model.Order, error) {
	return s.transition(ctx, number, func(*model.Order) error { return nil }, to, comment, estimated)
}

// CancelOrder отменяет заказ и возвращает списанные баллы. Отменить может владелец или администратор.
func (s *Service) CancelOrder(ctx context.Context, actor model.Principal, number, comment string) (*model.Order, error) {
	return s.transition(ctx, number, func(o *model.Order) error {
		return checkOwnerOrAdmin(actor, o)
	}, model.OrderStatusCancelled, comment, nil)
}

func (s *Service) transition(ctx context.Context, number string, authorize func(*model.Order) error, to model.OrderStatus, comment string, estimated *time.Time) (*model.Order, error) {
	var result *model.Order
	err := retryOnConflict(func() error {
		o, err := s.loadOrder(ctx, number)
		if err != nil {
			return err
		}
		if err := authorize(o); err != nil {
			return err
		}

		change, err := orderflow.Plan(*o, to, strings.TrimSpace(comment), estimated, s.now())
		if err != nil {
			return err
		}
		if err := s.repo.UpdateOrderStatus(ctx, change); err != nil {
			return err
		}

		orderflow.Apply(o, change)
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("number", result.Number),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// UpdateDelivery меняет адрес и комментарий доставки, пока заказ не в конечном статусе.
func (s *Service) UpdateDelivery(ctx context.Context, actor model.Principal, number, address, notes string) (*model.Order, error) {
	var result *model.Order
	err := retryOnConflict(func() error {
		o, err := s.loadOrder(ctx, number)
		if err != nil {
			return err
		}
		if err := checkOwnerOrAdmin(actor, o); err != nil {
			return err
		}
		if err := orderflow.CheckDeliveryUpdate(*o); err != nil {
			return err
		}

		now := s.now()
		upd := model.DeliveryUpdate{
			OrderID:         o.ID,
			ExpectedVersion: o.Version,
			Address:         strings.TrimSpace(address),
			Notes:           strings.TrimSpace(notes),
		}
		if err := s.repo.UpdateDelivery(ctx, upd, now); err != nil {
			return err
		}

		o.DeliveryAddress = upd.Address
		o.Notes = upd.Notes
		o.UpdatedAt = now
		o.Version++
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkOwnerOrAdmin(actor model.Principal, o *model.Order) error {
	if o.UserID == actor.UserID || actor.Role == model.RoleAdmin {
		return nil
	}
	return model.ErrNotFound
}
