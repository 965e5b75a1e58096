package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/pricing"
)

// SaleInput описывает продажу, которую фиксирует бармен.
type SaleInput struct {
	UserID    int64
	ProductID int64
	Quantity  int
	ProofType model.ProofType
	ProofFile string
}

// RecordSale рассчитывает баллы и денежное вознаграждение за продажу и сохраняет её
// вместе с записью начисления.
func (s *Service) RecordSale(ctx context.Context, in SaleInput) (*model.Sale, error) {
	switch in.ProofType {
	case "":
		in.ProofType = model.ProofReceipt
	case model.ProofReceipt, model.ProofPhoto:
	default:
		return nil, &model.ValidationError{Field: "proof_type", Reason: "must be receipt or photo"}
	}

	p, err := s.repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, &model.ValidationError{Field: "product_id", Reason: "product is not active"}
	}

	quote, err := pricing.Calculate(*p, in.Quantity)
	if err != nil {
		return nil, err
	}

	return s.repo.RecordSale(ctx, model.Sale{
		UserID:      in.UserID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    in.Quantity,
		TotalPrice:  quote.TotalPrice,
		Points:      quote.Points,
		Earnings:    pricing.Earnings(quote.TotalPrice, s.opts.EarningsRate),
		ProofType:   in.ProofType,
		ProofFile:   strings.TrimSpace(in.ProofFile),
		CreatedAt:   s.now(),
	})
}

// ListSales возвращает продажи пользователя.
func (s *Service) ListSales(ctx context.Context, userID int64) ([]model.Sale, error) {
	return s.repo.ListSales(ctx, userID)
}

// ListLedger возвращает журнал баллов пользователя.
func (s *Service) ListLedger(ctx context.Context, userID int64) ([]model.LedgerEntry, error) {
	return s.repo.ListLedger(ctx, userID)
}

// GetBalance возвращает баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, userID int64) (model.Balance, error) {
	return s.repo.GetBalance(ctx, userID)
}

// Adjustment описывает ручное начисление или списание баллов администратором.
type Adjustment struct {
	UserID      int64
	Type        model.LedgerEntryType
	Amount      int64
	Description string
}

// AdjustPoints начисляет бонус или списывает штраф и возвращает новый баланс баллов.
// Штраф не может сделать баланс отрицательным.
func (s *Service) AdjustPoints(ctx context.Context, adj Adjustment) (int64, error) {
	if adj.Type != model.LedgerBonus && adj.Type != model.LedgerPenalty {
		return 0, &model.ValidationError{Field: "type", Reason: "must be bonus or penalty"}
	}
	if adj.Amount <= 0 {
		return 0, &model.ValidationError{Field: "amount", Reason: "amount must be positive"}
	}

	balance, err := s.repo.AddLedgerEntry(ctx, model.LedgerEntry{
		UserID:      adj.UserID,
		Type:        adj.Type,
		Amount:      adj.Amount,
		Description: strings.TrimSpace(adj.Description),
		CreatedAt:   s.now(),
	})
	if err != nil {
		if !errors.Is(err, model.ErrInsufficientPoints) && !errors.Is(err, model.ErrNotFound) {
			s.logger.Error("adjust points failed", zap.Int64("userID", adj.UserID), zap.Error(err))
		}
		return 0, err
	}
	return balance, nil
}
