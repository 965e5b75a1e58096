package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/pricing"
)

// CreateProduct добавляет продукт. Параметры начисления проверяются калькулятором.
func (s *Service) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, &model.ValidationError{Field: "name", Reason: "name is required"}
	}
	if _, err := pricing.Calculate(p, 1); err != nil {
		return nil, err
	}

	p.Active = true
	p.CreatedAt = s.now()

	id, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// ListProducts возвращает активные продукты.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, true)
}

// GetProduct возвращает продукт по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// QuotePoints рассчитывает стоимость и баллы продажи без её сохранения.
func (s *Service) QuotePoints(ctx context.Context, productID int64, quantity int) (pricing.Quote, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.Calculate(*p, quantity)
}

// CreatePrize добавляет приз.
func (s *Service) CreatePrize(ctx context.Context, p model.Prize) (*model.Prize, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, &model.ValidationError{Field: "name", Reason: "name is required"}
	}
	if p.Cost <= 0 {
		return nil, &model.ValidationError{Field: "cost", Reason: "cost must be positive"}
	}

	p.CreatedAt = s.now()

	id, err := s.repo.CreatePrize(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// ListPrizes возвращает призы. onlyAvailable скрывает снятые с выдачи.
func (s *Service) ListPrizes(ctx context.Context, onlyAvailable bool) ([]model.Prize, error) {
	return s.repo.ListPrizes(ctx, onlyAvailable)
}

// SetPrizeAvailability включает или снимает приз с выдачи.
func (s *Service) SetPrizeAvailability(ctx context.Context, id int64, available bool) error {
	return s.repo.SetPrizeAvailability(ctx, id, available)
}
