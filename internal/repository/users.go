package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u model.User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, display_name, role, city_id, bar_id, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		u.Login, u.PasswordHash, u.DisplayName, string(u.Role), u.CityID, u.BarID, u.Active, u.CreatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "") {
			return 0, fmt.Errorf("%w: %s", model.ErrUserExists, u.Login)
		}
		if isForeignKeyViolation(err) {
			return 0, &model.ValidationError{Field: "bar_id", Reason: "unknown city or bar"}
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

const userColumns = `id, login, password_hash, display_name, role, city_id, bar_id, points, active, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.DisplayName, &role, &u.CityID, &u.BarID, &u.Points, &u.Active, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(login) = lower($1)`, login))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", notFound(err))
	}
	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", notFound(err))
	}
	return u, nil
}

// GetProfile возвращает профиль пользователя. Город берётся из профиля, а при его отсутствии из бара.
func (r *PostgresRepository) GetProfile(ctx context.Context, id int64) (*model.UserProfile, error) {
	var (
		p        model.UserProfile
		role     string
		cityID   *int64
		cityName *string
		barID    *int64
		barName  *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT u.id, u.login, u.display_name, u.role, u.points, u.created_at,
		        c.id, c.name, b.id, b.name
		 FROM users u
		 LEFT JOIN bars b ON b.id = u.bar_id
		 LEFT JOIN cities c ON c.id = COALESCE(u.city_id, b.city_id)
		 WHERE u.id = $1`,
		id,
	).Scan(&p.ID, &p.Login, &p.DisplayName, &role, &p.Points, &p.CreatedAt, &cityID, &cityName, &barID, &barName)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", notFound(err))
	}

	p.Role = model.Role(role)
	if cityID != nil && cityName != nil {
		p.City = &model.Ref{ID: *cityID, Name: *cityName}
	}
	if barID != nil && barName != nil {
		p.Bar = &model.Ref{ID: *barID, Name: *barName}
	}
	return &p, nil
}

// CreateCity добавляет город.
func (r *PostgresRepository) CreateCity(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO cities (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "") {
			return 0, &model.ValidationError{Field: "name", Reason: "city already exists"}
		}
		return 0, fmt.Errorf("create city: %w", err)
	}
	return id, nil
}

// CreateBar добавляет бар в город.
func (r *PostgresRepository) CreateBar(ctx context.Context, name string, cityID int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO bars (name, city_id) VALUES ($1, $2) RETURNING id`, name, cityID).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, &model.ValidationError{Field: "city_id", Reason: "unknown city"}
		}
		return 0, fmt.Errorf("create bar: %w", err)
	}
	return id, nil
}

// ListBars возвращает бары с городами.
func (r *PostgresRepository) ListBars(ctx context.Context) ([]model.Bar, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT b.id, b.name, c.id, c.name
		 FROM bars b
		 JOIN cities c ON c.id = b.city_id
		 ORDER BY b.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select bars: %w", err)
	}
	defer rows.Close()

	var res []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.ID, &b.Name, &b.City.ID, &b.City.Name); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
