package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// Registration содержит данные нового пользователя.
type Registration struct {
	Login       string
	Password    string
	DisplayName string
	Role        model.Role
	CityID      *int64
	BarID       *int64
}

// RegisterUser регистрирует участника программы. Самостоятельно можно выбрать только роли бармена.
func (s *Service) RegisterUser(ctx context.Context, reg Registration) (*model.User, error) {
	switch reg.Role {
	case "":
		reg.Role = model.RoleBartender
	case model.RoleBartender, model.RoleTestBartender:
	default:
		return nil, fmt.Errorf("%w: role %s cannot be self-assigned", model.ErrForbidden, reg.Role)
	}
	return s.CreateUser(ctx, reg)
}

// CreateUser создаёт пользователя с любой ролью. Используется администратором.
func (s *Service) CreateUser(ctx context.Context, reg Registration) (*model.User, error) {
	reg.Login = strings.TrimSpace(reg.Login)
	if reg.Login == "" {
		return nil, &model.ValidationError{Field: "login", Reason: "login is required"}
	}
	if len(reg.Password) < 6 {
		return nil, &model.ValidationError{Field: "password", Reason: "password must be at least 6 characters"}
	}
	if _, err := model.ParseRole(string(reg.Role)); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	displayName := strings.TrimSpace(reg.DisplayName)
	if displayName == "" {
		displayName = reg.Login
	}

	u := model.User{
		Login:        reg.Login,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         reg.Role,
		CityID:       reg.CityID,
		BarID:        reg.BarID,
		Active:       true,
		CreatedAt:    s.now(),
	}

	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	u.ID = id
	return &u, nil
}

// AuthenticateUser проверяет логин и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	u, err := s.repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}
	if !u.Active {
		return nil, model.ErrInvalidCredentials
	}

	return u, nil
}

// GetProfile возвращает профиль пользователя с балансом баллов и денежным балансом.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	bal, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Points = bal.Points
	p.Earnings = bal.Earnings
	return p, nil
}

// CreateCity добавляет город в справочник.
func (s *Service) CreateCity(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, &model.ValidationError{Field: "name", Reason: "name is required"}
	}
	return s.repo.CreateCity(ctx, name)
}

// CreateBar добавляет бар в справочник.
func (s *Service) CreateBar(ctx context.Context, name string, cityID int64) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, &model.ValidationError{Field: "name", Reason: "name is required"}
	}
	return s.repo.CreateBar(ctx, name, cityID)
}

// ListBars возвращает справочник баров.
func (s *Service) ListBars(ctx context.Context) ([]model.Bar, error) {
	return s.repo.ListBars(ctx)
}
