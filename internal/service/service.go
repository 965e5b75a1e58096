// Package service реализует бизнес-логику программы лояльности для барменов.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/bartender-loyalty/internal/cart"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/payout"
	"github.com/mmeshcher/bartender-loyalty/internal/withdrawal"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u model.User) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetProfile(ctx context.Context, id int64) (*model.UserProfile, error)
	CreateCity(ctx context.Context, name string) (int64, error)
	CreateBar(ctx context.Context, name string, cityID int64) (int64, error)
	ListBars(ctx context.Context) ([]model.Bar, error)

	CreateProduct(ctx context.Context, p model.Product) (int64, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, onlyActive bool) ([]model.Product, error)
	CreatePrize(ctx context.Context, p model.Prize) (int64, error)
	GetPrize(ctx context.Context, id int64) (*model.Prize, error)
	ListPrizes(ctx context.Context, onlyAvailable bool) ([]model.Prize, error)
	SetPrizeAvailability(ctx context.Context, id int64, available bool) error

	RecordSale(ctx context.Context, sale model.Sale) (*model.Sale, error)
	ListSales(ctx context.Context, userID int64) ([]model.Sale, error)
	AddLedgerEntry(ctx context.Context, e model.LedgerEntry) (int64, error)
	ListLedger(ctx context.Context, userID int64) ([]model.LedgerEntry, error)
	GetBalance(ctx context.Context, userID int64) (model.Balance, error)

	GetCart(ctx context.Context, userID int64) (*cart.Cart, error)
	SaveCart(ctx context.Context, c *cart.Cart) error
	Checkout(ctx context.Context, cartVersion int64, o model.Order) (*model.Order, error)

	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrders(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	ListStaleOrders(ctx context.Context, status model.OrderStatus, before time.Time, limit int) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, change model.StatusChange) error
	UpdateDelivery(ctx context.Context, upd model.DeliveryUpdate, now time.Time) error

	CreateWithdrawal(ctx context.Context, userID int64, build func(available decimal.Decimal) (model.WithdrawalRequest, error)) (*model.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, userID int64) ([]model.WithdrawalRequest, error)
	ListWithdrawalsByStatus(ctx context.Context, status model.WithdrawalStatus, limit int) ([]model.WithdrawalRequest, error)
	SetWithdrawalStatus(ctx context.Context, id uuid.UUID, from, to model.WithdrawalStatus, now time.Time) error

	LeaderboardRows(ctx context.Context, since time.Time) ([]model.LeaderboardRow, error)
	UserStats(ctx context.Context, userID int64) (model.UserStats, error)
	ListAchievementUnlocks(ctx context.Context, userID int64) (map[string]time.Time, error)
	SaveAchievementUnlocks(ctx context.Context, userID int64, unlocks map[string]time.Time) error
}

// PayoutClient отправляет заявки на вывод во внешнюю платёжную систему.
type PayoutClient interface {
	Submit(ctx context.Context, p payout.Request) (*payout.Result, int, time.Duration, error)
}

// Options содержит настраиваемые параметры бизнес-логики.
type Options struct {
	// EarningsRate задаёт долю суммы продажи, начисляемую бармену на денежный баланс.
	EarningsRate decimal.Decimal
	Withdrawal   withdrawal.Policy
	// OrderAutoConfirmAfter задаёт, через сколько после создания заказ в статусе pending подтверждается автоматически. 0 отключает.
	OrderAutoConfirmAfter time.Duration
	JobInterval           time.Duration
}

// Service содержит бизнес-логику программы лояльности.
type Service struct {
	repo       Repository
	payouts    PayoutClient
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
	bcryptCost int
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом платёжной системы.
// payouts может быть nil: тогда заявки на вывод обрабатываются администратором вручную.
func NewService(repo Repository, payouts PayoutClient, opts Options, logger *zap.Logger) *Service {
	if opts.JobInterval <= 0 {
		opts.JobInterval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		payouts:    payouts,
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// retryOnConflict повторяет операцию один раз, если она проиграла гонку за версию сущности.
func retryOnConflict(fn func() error) error {
	err := fn()
	if errors.Is(err, model.ErrConcurrencyConflict) {
		err = fn()
	}
	return err
}
