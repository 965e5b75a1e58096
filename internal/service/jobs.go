package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/payout"
)

const jobBatchSize = 100

// RunBackgroundJobs периодически подтверждает зависшие заказы и отправляет заявки на вывод
// в платёжную систему. Возвращается после отмены контекста.
func (s *Service) RunBackgroundJobs(ctx context.Context) {
	ticker := time.NewTicker(s.opts.JobInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.autoConfirmOrders(ctx)
			s.dispatchPayouts(ctx)
		}
	}
}

func (s *Service) autoConfirmOrders(ctx context.Context) {
	if s.opts.OrderAutoConfirmAfter <= 0 {
		return
	}

	before := s.now().Add(-s.opts.OrderAutoConfirmAfter)
	orders, err := s.repo.ListStaleOrders(ctx, model.OrderStatusPending, before, jobBatchSize)
	if err != nil {
		s.logger.Error("list stale orders failed", zap.Error(err))
		return
	}

	for _, o := range orders {
		_, err := s.TransitionOrder(ctx, o.Number, model.OrderStatusConfirmed, "auto-confirmed", nil)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, model.ErrConcurrencyConflict):
			s.logger.Debug("order changed before auto-confirm", zap.String("number", o.Number), zap.Error(err))
		default:
			s.logger.Error("auto-confirm order failed", zap.String("number", o.Number), zap.Error(err))
		}
	}
}

func (s *Service) dispatchPayouts(ctx context.Context) {
	if s.payouts == nil {
		return
	}

	pending, err := s.repo.ListWithdrawalsByStatus(ctx, model.WithdrawalPending, jobBatchSize)
	if err != nil {
		s.logger.Error("list pending withdrawals failed", zap.Error(err))
		return
	}

	for _, w := range pending {
		res, statusCode, retryAfter, err := s.payouts.Submit(ctx, payout.Request{
			ID:       w.ID.String(),
			Amount:   w.AmountToReceive,
			Phone:    w.Phone,
			BankName: w.BankName,
		})
		if err != nil {
			s.logger.Warn("payout submit failed", zap.String("id", w.ID.String()), zap.Error(err))
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if res == nil {
			continue
		}

		var status model.WithdrawalStatus
		switch res.Status {
		case payout.StatusProcessed:
			status = model.WithdrawalCompleted
		case payout.StatusRejected:
			status = model.WithdrawalRejected
		default:
			continue
		}

		if err := s.repo.SetWithdrawalStatus(ctx, w.ID, model.WithdrawalPending, status, s.now()); err != nil {
			s.logger.Error("update withdrawal status failed", zap.String("id", w.ID.String()), zap.Error(err))
			continue
		}
		s.logger.Info("withdrawal settled", zap.String("id", w.ID.String()), zap.String("status", string(status)))
	}
}
