package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/bartender-loyalty/internal/cart"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/orderflow"
	"github.com/mmeshcher/bartender-loyalty/internal/validation"
)

// GetCart возвращает корзину пользователя.
func (s *Service) GetCart(ctx context.Context, userID int64) (*cart.Cart, error) {
	return s.repo.GetCart(ctx, userID)
}

// AddToCart добавляет приз в корзину или меняет его количество.
func (s *Service) AddToCart(ctx context.Context, userID, prizeID int64, quantity int) (*cart.Cart, error) {
	return s.mutateCart(ctx, userID, func(c *cart.Cart) error {
		prize, err := s.repo.GetPrize(ctx, prizeID)
		if err != nil {
			return err
		}
		return c.AddOrUpdate(*prize, quantity)
	})
}

// SetCartQuantity меняет количество приза в корзине.
func (s *Service) SetCartQuantity(ctx context.Context, userID, prizeID int64, quantity int) (*cart.Cart, error) {
	return s.mutateCart(ctx, userID, func(c *cart.Cart) error {
		return c.SetQuantity(prizeID, quantity)
	})
}

// RemoveFromCart удаляет приз из корзины.
func (s *Service) RemoveFromCart(ctx context.Context, userID, prizeID int64) (*cart.Cart, error) {
	return s.mutateCart(ctx, userID, func(c *cart.Cart) error {
		return c.Remove(prizeID)
	})
}

func (s *Service) mutateCart(ctx context.Context, userID int64, mutate func(c *cart.Cart) error) (*cart.Cart, error) {
	var result *cart.Cart
	err := retryOnConflict(func() error {
		c, err := s.repo.GetCart(ctx, userID)
		if err != nil {
			return err
		}
		if err := mutate(c); err != nil {
			return err
		}
		if err := s.repo.SaveCart(ctx, c); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CheckoutInput содержит данные доставки, указанные при оформлении.
type CheckoutInput struct {
	DeliveryAddress string
	Notes           string
}

// Checkout оформляет заказ из корзины. Списание баллов, создание заказа и очистка корзины
// выполняются хранилищем атомарно: при ошибке ни одна сущность не меняется.
func (s *Service) Checkout(ctx context.Context, userID int64, in CheckoutInput) (*model.Order, error) {
	var order *model.Order
	err := retryOnConflict(func() error {
		c, err := s.repo.GetCart(ctx, userID)
		if err != nil {
			return err
		}

		items, total, err := c.Snapshot()
		if err != nil {
			return err
		}

		now := s.now()
		number, err := validation.NewOrderNumber(now)
		if err != nil {
			return err
		}

		o := model.Order{
			Number:          number,
			UserID:          userID,
			Items:           items,
			TotalCost:       total,
			DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
			Notes:           strings.TrimSpace(in.Notes),
		}
		orderflow.Start(&o, now)

		order, err = s.repo.Checkout(ctx, c.Version, o)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.Int64("userID", userID),
		zap.String("number", order.Number),
		zap.Int64("total", order.TotalCost),
	)
	return order, nil
}
