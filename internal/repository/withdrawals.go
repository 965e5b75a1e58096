package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// CreateWithdrawal блокирует пользователя, вычисляет доступный баланс и передаёт его в build,
// который проверяет заявку. Созданная заявка сразу уменьшает доступный баланс.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, userID int64, build func(available decimal.Decimal) (model.WithdrawalRequest, error)) (*model.WithdrawalRequest, error) {
	var w model.WithdrawalRequest
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		available, err := availableEarnings(ctx, tx, userID)
		if err != nil {
			return err
		}

		w, err = build(available)
		if err != nil {
			return err
		}
		if w.ID == uuid.Nil {
			w.ID = uuid.New()
		}
		w.UserID = userID

		_, err = tx.Exec(ctx,
			`INSERT INTO withdrawal_requests (id, user_id, amount, commission, amount_to_receive, phone, bank_name, status, created_at, updated_at)
			 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			w.ID.String(), w.UserID, model.DecimalToKopecks(w.Amount), model.DecimalToKopecks(w.Commission),
			model.DecimalToKopecks(w.AmountToReceive), w.Phone, w.BankName, string(w.Status), w.CreatedAt, w.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

const withdrawalColumns = `id::text, user_id, amount, commission, amount_to_receive, phone, bank_name, status, created_at, updated_at`

func (r *PostgresRepository) queryWithdrawals(ctx context.Context, query string, args ...any) ([]model.WithdrawalRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var res []model.WithdrawalRequest
	for rows.Next() {
		var (
			w                             model.WithdrawalRequest
			id, status                    string
			amount, commission, toReceive int64
		)
		if err := rows.Scan(&id, &w.UserID, &amount, &commission, &toReceive, &w.Phone, &w.BankName, &status,
			&w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}

		w.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse withdrawal id %q: %w", id, err)
		}
		w.Amount = model.KopecksToDecimal(amount)
		w.Commission = model.KopecksToDecimal(commission)
		w.AmountToReceive = model.KopecksToDecimal(toReceive)
		w.Status = model.WithdrawalStatus(status)
		res = append(res, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListWithdrawals возвращает заявки пользователя, новые первыми.
func (r *PostgresRepository) ListWithdrawals(ctx context.Context, userID int64) ([]model.WithdrawalRequest, error) {
	return r.queryWithdrawals(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
}

// ListWithdrawalsByStatus возвращает заявки в статусе status, старые первыми.
func (r *PostgresRepository) ListWithdrawalsByStatus(ctx context.Context, status model.WithdrawalStatus, limit int) ([]model.WithdrawalRequest, error) {
	return r.queryWithdrawals(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE status = $1 ORDER BY created_at LIMIT $2`,
		string(status), limit,
	)
}

// SetWithdrawalStatus переводит заявку из статуса from в статус to.
func (r *PostgresRepository) SetWithdrawalStatus(ctx context.Context, id uuid.UUID, from, to model.WithdrawalStatus, now time.Time) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE withdrawal_requests SET status = $3, updated_at = $4 WHERE id = $1::uuid AND status = $2`,
			id.String(), string(from), string(to), now,
		)
		if err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}

		var exists bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM withdrawal_requests WHERE id = $1::uuid)`, id.String()).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check withdrawal: %w", err)
		}
		if !exists {
			return model.ErrNotFound
		}
		return model.ErrInvalidTransition
	})
}
