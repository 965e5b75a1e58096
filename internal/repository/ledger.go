package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// insertLedgerEntry добавляет запись журнала и обновляет кэш баланса пользователя.
// Строка пользователя должна быть заблокирована вызывающим.
func insertLedgerEntry(ctx context.Context, tx pgx.Tx, e model.LedgerEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (user_id, type, amount, description, sale_id, order_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.UserID, string(e.Type), e.Amount, e.Description, e.SaleID, e.OrderID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE users SET points = points + $2 WHERE id = $1`, e.UserID, e.Signed())
	if err != nil {
		return fmt.Errorf("update points: %w", err)
	}
	return nil
}

// RecordSale сохраняет продажу, запись начисления и обновляет баланс баллов в одной транзакции.
func (r *PostgresRepository) RecordSale(ctx context.Context, sale model.Sale) (*model.Sale, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockUser(ctx, tx, sale.UserID); err != nil {
			return err
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO sales (user_id, product_id, quantity, total_price, points, earnings, proof_type, proof_file, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
			sale.UserID, sale.ProductID, sale.Quantity, model.DecimalToKopecks(sale.TotalPrice), sale.Points,
			model.DecimalToKopecks(sale.Earnings), string(sale.ProofType), sale.ProofFile, sale.CreatedAt,
		).Scan(&sale.ID)
		if err != nil {
			if isForeignKeyViolation(err) {
				return model.ErrNotFound
			}
			return fmt.Errorf("insert sale: %w", err)
		}

		saleID := sale.ID
		return insertLedgerEntry(ctx, tx, model.LedgerEntry{
			UserID:      sale.UserID,
			Type:        model.LedgerEarned,
			Amount:      sale.Points,
			Description: "sale of " + sale.ProductName,
			SaleID:      &saleID,
			CreatedAt:   sale.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// ListSales возвращает продажи пользователя, новые первыми.
func (r *PostgresRepository) ListSales(ctx context.Context, userID int64) ([]model.Sale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.user_id, s.product_id, p.name, s.quantity, s.total_price, s.points, s.earnings,
		        s.proof_type, s.proof_file, s.created_at
		 FROM sales s
		 JOIN products p ON p.id = s.product_id
		 WHERE s.user_id = $1
		 ORDER BY s.created_at DESC, s.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var res []model.Sale
	for rows.Next() {
		var (
			s          model.Sale
			totalPrice int64
			earnings   int64
			proofType  string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProductID, &s.ProductName, &s.Quantity, &totalPrice, &s.Points,
			&earnings, &proofType, &s.ProofFile, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		s.TotalPrice = model.KopecksToDecimal(totalPrice)
		s.Earnings = model.KopecksToDecimal(earnings)
		s.ProofType = model.ProofType(proofType)
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AddLedgerEntry добавляет ручную корректировку баллов и возвращает новый баланс.
// Списание не может увести баланс ниже нуля.
func (r *PostgresRepository) AddLedgerEntry(ctx context.Context, e model.LedgerEntry) (int64, error) {
	var balance int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		points, err := lockUser(ctx, tx, e.UserID)
		if err != nil {
			return err
		}
		if points+e.Signed() < 0 {
			return model.ErrInsufficientPoints
		}
		if err := insertLedgerEntry(ctx, tx, e); err != nil {
			return err
		}
		balance = points + e.Signed()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// ListLedger возвращает журнал баллов пользователя, новые записи первыми.
func (r *PostgresRepository) ListLedger(ctx context.Context, userID int64) ([]model.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, type, amount, description, sale_id, order_id, created_at
		 FROM ledger_entries
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select ledger: %w", err)
	}
	defer rows.Close()

	var res []model.LedgerEntry
	for rows.Next() {
		var (
			e   model.LedgerEntry
			typ string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &e.Amount, &e.Description, &e.SaleID, &e.OrderID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Type = model.LedgerEntryType(typ)
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetBalance возвращает баланс баллов и денежный баланс пользователя.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID int64) (model.Balance, error) {
	var points, earned, withdrawn int64
	err := r.pool.QueryRow(ctx,
		`SELECT u.points,
		        COALESCE((SELECT SUM(earnings) FROM sales WHERE user_id = u.id), 0)::bigint,
		        COALESCE((SELECT SUM(amount) FROM withdrawal_requests WHERE user_id = u.id AND status <> $2), 0)::bigint
		 FROM users u
		 WHERE u.id = $1`,
		userID, string(model.WithdrawalRejected),
	).Scan(&points, &earned, &withdrawn)
	if err != nil {
		return model.Balance{}, fmt.Errorf("get balance: %w", notFound(err))
	}

	return model.Balance{
		Points:    points,
		Earnings:  model.KopecksToDecimal(earned - withdrawn),
		Withdrawn: model.KopecksToDecimal(withdrawn),
	}, nil
}

func availableEarnings(ctx context.Context, tx pgx.Tx, userID int64) (decimal.Decimal, error) {
	var earned, withdrawn int64
	err := tx.QueryRow(ctx,
		`SELECT COALESCE((SELECT SUM(earnings) FROM sales WHERE user_id = $1), 0)::bigint,
		        COALESCE((SELECT SUM(amount) FROM withdrawal_requests WHERE user_id = $1 AND status <> $2), 0)::bigint`,
		userID, string(model.WithdrawalRejected),
	).Scan(&earned, &withdrawn)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum earnings: %w", err)
	}
	return model.KopecksToDecimal(earned - withdrawn), nil
}
