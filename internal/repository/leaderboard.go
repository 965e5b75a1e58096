package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// LeaderboardRows суммирует баллы активных пользователей, заработанные начиная с since.
// Учитываются начисления за продажи, бонусы и штрафы.
func (r *PostgresRepository) LeaderboardRows(ctx context.Context, since time.Time) ([]model.LeaderboardRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.display_name, u.role, COALESCE(b.name, ''), u.created_at,
		        COALESCE(SUM(CASE WHEN l.type = $3 THEN -l.amount ELSE l.amount END), 0)::bigint
		 FROM users u
		 LEFT JOIN bars b ON b.id = u.bar_id
		 LEFT JOIN ledger_entries l
		        ON l.user_id = u.id AND l.created_at >= $1 AND l.type = ANY($2)
		 WHERE u.active
		 GROUP BY u.id, b.name`,
		since,
		[]string{string(model.LedgerEarned), string(model.LedgerBonus), string(model.LedgerPenalty)},
		string(model.LedgerPenalty),
	)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()

	var res []model.LeaderboardRow
	for rows.Next() {
		var (
			row  model.LeaderboardRow
			role string
		)
		if err := rows.Scan(&row.UserID, &row.DisplayName, &role, &row.BarName, &row.CreatedAt, &row.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		row.Role = model.Role(role)
		res = append(res, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UserStats собирает агрегаты активности пользователя.
func (r *PostgresRepository) UserStats(ctx context.Context, userID int64) (model.UserStats, error) {
	var st model.UserStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(quantity), 0)::bigint,
		        COALESCE(SUM(points), 0)::bigint,
		        COUNT(DISTINCT product_id),
		        (SELECT COUNT(*) FROM orders WHERE user_id = $1 AND status <> 'cancelled')
		 FROM sales
		 WHERE user_id = $1`,
		userID,
	).Scan(&st.SalesCount, &st.PortionsSold, &st.PointsEarned, &st.DistinctProducts, &st.OrdersPlaced)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("select user stats: %w", err)
	}
	return st, nil
}

// ListAchievementUnlocks возвращает сохранённые моменты открытия достижений.
func (r *PostgresRepository) ListAchievementUnlocks(ctx context.Context, userID int64) (map[string]time.Time, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, unlocked_at FROM achievement_unlocks WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("select unlocks: %w", err)
	}
	defer rows.Close()

	res := make(map[string]time.Time)
	for rows.Next() {
		var (
			code string
			at   time.Time
		)
		if err := rows.Scan(&code, &at); err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}
		res[code] = at
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SaveAchievementUnlocks сохраняет новые открытия. Уже сохранённые не перезаписываются.
func (r *PostgresRepository) SaveAchievementUnlocks(ctx context.Context, userID int64, unlocks map[string]time.Time) error {
	if len(unlocks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for code, at := range unlocks {
		batch.Queue(
			`INSERT INTO achievement_unlocks (user_id, code, unlocked_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			userID, code, at,
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save unlocks: %w", err)
	}
	return nil
}
