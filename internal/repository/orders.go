package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

const orderColumns = `id, number, user_id, total_cost, status, delivery_address, notes,
	estimated_delivery, actual_delivery, version, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.TotalCost, &status, &o.DeliveryAddress, &o.Notes,
		&o.EstimatedDelivery, &o.ActualDelivery, &o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID int64, h model.StatusHistoryEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, comment, created_at) VALUES ($1, $2, $3, $4)`,
		orderID, string(h.Status), h.Comment, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

// GetOrderByNumber возвращает заказ по номеру вместе с позициями и историей статусов.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE number = $1`, number))
	if err != nil {
		return nil, fmt.Errorf("get order: %w", notFound(err))
	}

	orders := []model.Order{*o}
	if err := r.loadOrderDetails(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

// ListOrders возвращает заказы в статусе status или все заказы, если статус пуст.
func (r *PostgresRepository) ListOrders(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE $1 = '' OR status = $1 ORDER BY created_at DESC, id DESC`,
		string(status),
	)
}

// ListStaleOrders возвращает заказы в статусе status, созданные раньше before.
func (r *PostgresRepository) ListStaleOrders(ctx context.Context, status model.OrderStatus, before time.Time, limit int) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at
		 LIMIT $3`,
		string(status), before, limit,
	)
}

func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := r.loadOrderDetails(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadOrderDetails загружает позиции и историю статусов для всех заказов двумя запросами.
func (r *PostgresRepository) loadOrderDetails(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.pool.Query(ctx,
		`SELECT order_id, prize_id, name, description, price, quantity
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			item    model.OrderItem
		)
		if err := rows.Scan(&orderID, &item.PrizeID, &item.Name, &item.Description, &item.Price, &item.Quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o := &orders[index[orderID]]
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	hrows, err := r.pool.Query(ctx,
		`SELECT order_id, status, comment, created_at
		 FROM order_status_history
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select status history: %w", err)
	}
	defer hrows.Close()

	for hrows.Next() {
		var (
			orderID int64
			status  string
			h       model.StatusHistoryEntry
		)
		if err := hrows.Scan(&orderID, &status, &h.Comment, &h.CreatedAt); err != nil {
			return fmt.Errorf("scan status history: %w", err)
		}
		h.Status = model.OrderStatus(status)
		o := &orders[index[orderID]]
		o.History = append(o.History, h)
	}
	if err := hrows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}

// UpdateOrderStatus применяет смену статуса, если версия заказа совпадает с ожидаемой.
// Запись истории и возврат баллов при отмене сохраняются в той же транзакции.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, change model.StatusChange) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE orders
			 SET status = $3,
			     estimated_delivery = COALESCE($4, estimated_delivery),
			     actual_delivery = COALESCE($5, actual_delivery),
			     updated_at = $6,
			     version = version + 1
			 WHERE id = $1 AND version = $2`,
			change.OrderID, change.ExpectedVersion, string(change.Entry.Status),
			change.EstimatedDelivery, change.ActualDelivery, change.Entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return orderMissingOrStale(ctx, tx, change.OrderID)
		}

		if err := insertHistory(ctx, tx, change.OrderID, change.Entry); err != nil {
			return err
		}

		if change.Refund != nil {
			if _, err := lockUser(ctx, tx, change.Refund.UserID); err != nil {
				return err
			}
			if err := insertLedgerEntry(ctx, tx, *change.Refund); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateDelivery меняет адрес и комментарий заказа, если версия заказа совпадает с ожидаемой.
func (r *PostgresRepository) UpdateDelivery(ctx context.Context, upd model.DeliveryUpdate, now time.Time) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE orders
			 SET delivery_address = $3, notes = $4, updated_at = $5, version = version + 1
			 WHERE id = $1 AND version = $2`,
			upd.OrderID, upd.ExpectedVersion, upd.Address, upd.Notes, now,
		)
		if err != nil {
			return fmt.Errorf("update delivery: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return orderMissingOrStale(ctx, tx, upd.OrderID)
		}
		return nil
	})
}

func orderMissingOrStale(ctx context.Context, tx pgx.Tx, orderID int64) error {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return model.ErrNotFound
	}
	return model.ErrConcurrencyConflict
}
