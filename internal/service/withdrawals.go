package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/withdrawal"
)

// CreateWithdrawal создаёт заявку на вывод денежного баланса. Проверка доступного баланса
// и создание заявки выполняются под блокировкой пользователя.
func (s *Service) CreateWithdrawal(ctx context.Context, userID int64, req withdrawal.Request) (*model.WithdrawalRequest, error) {
	now := s.now()
	w, err := s.repo.CreateWithdrawal(ctx, userID, func(available decimal.Decimal) (model.WithdrawalRequest, error) {
		q, err := s.opts.Withdrawal.Prepare(req, available)
		if err != nil {
			return model.WithdrawalRequest{}, err
		}
		return model.WithdrawalRequest{
			ID:              uuid.New(),
			Amount:          q.Amount,
			Commission:      q.Commission,
			AmountToReceive: q.AmountToReceive,
			Phone:           q.Phone,
			BankName:        q.BankName,
			Status:          model.WithdrawalPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal requested",
		zap.Int64("userID", userID),
		zap.String("id", w.ID.String()),
		zap.String("amount", w.Amount.String()),
	)
	return w, nil
}

// ListWithdrawals возвращает заявки пользователя.
func (s *Service) ListWithdrawals(ctx context.Context, userID int64) ([]model.WithdrawalRequest, error) {
	return s.repo.ListWithdrawals(ctx, userID)
}

// SetWithdrawalStatus завершает или отклоняет заявку в статусе pending.
// Отклонённая заявка возвращает сумму на доступный баланс.
func (s *Service) SetWithdrawalStatus(ctx context.Context, id string, status model.WithdrawalStatus) error {
	wid, err := uuid.Parse(id)
	if err != nil {
		return &model.ValidationError{Field: "id", Reason: "invalid withdrawal id"}
	}
	if status != model.WithdrawalCompleted && status != model.WithdrawalRejected {
		return &model.ValidationError{Field: "status", Reason: "must be completed or rejected"}
	}
	return s.repo.SetWithdrawalStatus(ctx, wid, model.WithdrawalPending, status, s.now())
}
