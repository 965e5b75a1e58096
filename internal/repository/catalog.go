package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// CreateProduct сохраняет продукт. Цена бутылки хранится в копейках.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, brand, category, bottle_price, portions_per_bottle, points_mode,
		                       points_per_portion, points_per_ruble, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10) RETURNING id`,
		p.Name, p.Brand, p.Category, model.DecimalToKopecks(p.BottlePrice), p.PortionsPerBottle, string(p.PointsMode),
		p.PointsPerPortion, p.PointsPerRuble.String(), p.Active, p.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

const productColumns = `id, name, brand, category, bottle_price, portions_per_bottle, points_mode,
	points_per_portion, points_per_ruble::text, active, created_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p           model.Product
		bottlePrice int64
		mode        string
		perRuble    string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &bottlePrice, &p.PortionsPerBottle, &mode,
		&p.PointsPerPortion, &perRuble, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}

	rate, err := decimal.NewFromString(perRuble)
	if err != nil {
		return nil, fmt.Errorf("parse points_per_ruble %q: %w", perRuble, err)
	}

	p.BottlePrice = model.KopecksToDecimal(bottlePrice)
	p.PointsMode = model.PointsMode(mode)
	p.PointsPerRuble = rate
	return &p, nil
}

// GetProduct возвращает продукт по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get product: %w", notFound(err))
	}
	return p, nil
}

// ListProducts возвращает продукты, отсортированные по бренду и названию.
func (r *PostgresRepository) ListProducts(ctx context.Context, onlyActive bool) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE active OR NOT $1
		 ORDER BY brand, name`,
		onlyActive,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreatePrize сохраняет приз.
func (r *PostgresRepository) CreatePrize(ctx context.Context, p model.Prize) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO prizes (name, description, cost, available, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		p.Name, p.Description, p.Cost, p.Available, p.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create prize: %w", err)
	}
	return id, nil
}

// GetPrize возвращает приз по идентификатору.
func (r *PostgresRepository) GetPrize(ctx context.Context, id int64) (*model.Prize, error) {
	var p model.Prize
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, cost, available, created_at FROM prizes WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Cost, &p.Available, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get prize: %w", notFound(err))
	}
	return &p, nil
}

// ListPrizes возвращает призы по возрастанию стоимости.
func (r *PostgresRepository) ListPrizes(ctx context.Context, onlyAvailable bool) ([]model.Prize, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, cost, available, created_at
		 FROM prizes
		 WHERE available OR NOT $1
		 ORDER BY cost, id`,
		onlyAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("select prizes: %w", err)
	}
	defer rows.Close()

	var res []model.Prize
	for rows.Next() {
		var p model.Prize
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Cost, &p.Available, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prize: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SetPrizeAvailability включает или снимает приз с выдачи.
func (r *PostgresRepository) SetPrizeAvailability(ctx context.Context, id int64, available bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE prizes SET available = $2 WHERE id = $1`, id, available)
	if err != nil {
		return fmt.Errorf("update prize: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
