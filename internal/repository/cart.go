package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/bartender-loyalty/internal/cart"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// GetCart возвращает корзину с актуальными данными призов. Отсутствующая корзина пуста и имеет версию 0.
func (r *PostgresRepository) GetCart(ctx context.Context, userID int64) (*cart.Cart, error) {
	c := cart.New(userID)

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT version FROM carts WHERE user_id = u.id), 0) FROM users u WHERE u.id = $1`,
		userID,
	).Scan(&c.Version)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", notFound(err))
	}

	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.description, p.cost, p.available, l.quantity
		 FROM cart_lines l
		 JOIN prizes p ON p.id = l.prize_id
		 WHERE l.user_id = $1
		 ORDER BY l.position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l cart.Line
		if err := rows.Scan(&l.PrizeID, &l.Name, &l.Description, &l.Cost, &l.Available, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		c.Lines = append(c.Lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return c, nil
}

// SaveCart сохраняет позиции корзины, если её версия не менялась с момента чтения.
func (r *PostgresRepository) SaveCart(ctx context.Context, c *cart.Cart) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := bumpCartVersion(ctx, tx, c.UserID, c.Version); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, c.UserID); err != nil {
			return fmt.Errorf("delete cart lines: %w", err)
		}

		for i, l := range c.Lines {
			_, err := tx.Exec(ctx,
				`INSERT INTO cart_lines (user_id, prize_id, quantity, position) VALUES ($1, $2, $3, $4)`,
				c.UserID, l.PrizeID, l.Quantity, i,
			)
			if err != nil {
				if isForeignKeyViolation(err) {
					return model.ErrNotFound
				}
				return fmt.Errorf("insert cart line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.Version++
	return nil
}

// bumpCartVersion увеличивает версию корзины, если она равна expected.
func bumpCartVersion(ctx context.Context, tx pgx.Tx, userID, expected int64) error {
	if expected == 0 {
		tag, err := tx.Exec(ctx,
			`INSERT INTO carts (user_id, version) VALUES ($1, 1) ON CONFLICT (user_id) DO NOTHING`,
			userID,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return model.ErrNotFound
			}
			return fmt.Errorf("insert cart: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrConcurrencyConflict
		}
		return nil
	}

	tag, err := tx.Exec(ctx,
		`UPDATE carts SET version = version + 1 WHERE user_id = $1 AND version = $2`,
		userID, expected,
	)
	if err != nil {
		return fmt.Errorf("update cart version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrConcurrencyConflict
	}
	return nil
}

// Checkout атомарно оформляет заказ: блокирует пользователя, проверяет версию корзины,
// доступность призов и баланс, списывает баллы, сохраняет заказ и очищает корзину.
func (r *PostgresRepository) Checkout(ctx context.Context, cartVersion int64, o model.Order) (*model.Order, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		points, err := lockUser(ctx, tx, o.UserID)
		if err != nil {
			return err
		}

		if err := bumpCartVersion(ctx, tx, o.UserID, cartVersion); err != nil {
			return err
		}

		if err := lockAvailablePrizes(ctx, tx, o.Items); err != nil {
			return err
		}

		if points < o.TotalCost {
			return model.ErrInsufficientPoints
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (number, user_id, total_cost, status, delivery_address, notes, version, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7) RETURNING id`,
			o.Number, o.UserID, o.TotalCost, string(o.Status), o.DeliveryAddress, o.Notes, o.CreatedAt,
		).Scan(&o.ID)
		if err != nil {
			if isUniqueViolation(err, "orders_number_key") {
				return fmt.Errorf("%w: order number %s is taken", model.ErrConcurrencyConflict, o.Number)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i, item := range o.Items {
			_, err := tx.Exec(ctx,
				`INSERT INTO order_items (order_id, position, prize_id, name, description, price, quantity)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				o.ID, i, item.PrizeID, item.Name, item.Description, item.Price, item.Quantity,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		for _, h := range o.History {
			if err := insertHistory(ctx, tx, o.ID, h); err != nil {
				return err
			}
		}

		orderID := o.ID
		err = insertLedgerEntry(ctx, tx, model.LedgerEntry{
			UserID:      o.UserID,
			Type:        model.LedgerSpent,
			Amount:      o.TotalCost,
			Description: "order " + o.Number,
			OrderID:     &orderID,
			CreatedAt:   o.CreatedAt,
		})
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, o.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.Version = 1
	return &o, nil
}

// lockAvailablePrizes блокирует призы заказа на чтение до конца транзакции и проверяет,
// что все они доступны. Параллельное снятие приза с витрины ждёт завершения оформления.
func lockAvailablePrizes(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.PrizeID)
	}

	var available int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM (
		   SELECT id FROM prizes WHERE id = ANY($1) AND available FOR SHARE
		 ) p`,
		ids,
	).Scan(&available)
	if err != nil {
		return fmt.Errorf("lock prizes: %w", err)
	}

	distinct := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		distinct[id] = struct{}{}
	}
	if available != len(distinct) {
		return model.ErrPrizeUnavailable
	}
	return nil
}
