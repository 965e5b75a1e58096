// Package model содержит доменные сущности программы лояльности для барменов.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User представляет зарегистрированного участника программы лояльности.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	DisplayName  string
	Role         Role
	CityID       *int64
	BarID        *int64
	Points       int64
	Active       bool
	CreatedAt    time.Time
}

// Principal описывает аутентифицированного участника запроса.
type Principal struct {
	UserID int64
	Role   Role
}

// Ref представляет разрешённую ссылку на справочник (город, бар).
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Bar описывает бар и город, в котором он находится.
type Bar struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	City Ref    `json:"city"`
}

// UserProfile представляет пользователя вместе с городом и баром.
// Ссылки разрешаются один раз на уровне хранилища.
type UserProfile struct {
	ID          int64           `json:"id"`
	Login       string          `json:"login"`
	DisplayName string          `json:"display_name"`
	Role        Role            `json:"role"`
	City        *Ref            `json:"city,omitempty"`
	Bar         *Ref            `json:"bar,omitempty"`
	Points      int64           `json:"points"`
	Earnings    decimal.Decimal `json:"earnings"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PointsMode задаёт способ начисления баллов за продукт.
type PointsMode string

const (
	PointsPerPortion PointsMode = "per_portion"
	PointsPerRuble   PointsMode = "per_ruble"
)

// Valid сообщает, известен ли режим начисления.
func (m PointsMode) Valid() bool {
	return m == PointsPerPortion || m == PointsPerRuble
}

// Product описывает позицию бренда, продажи которой приносят баллы.
type Product struct {
	ID                int64
	Name              string
	Brand             string
	Category          string
	BottlePrice       decimal.Decimal
	PortionsPerBottle int
	PointsMode        PointsMode
	PointsPerPortion  int64
	PointsPerRuble    decimal.Decimal
	Active            bool
	CreatedAt         time.Time
}

// ProofType определяет вид подтверждения продажи.
type ProofType string

const (
	ProofReceipt ProofType = "receipt"
	ProofPhoto   ProofType = "photo"
)

// Sale описывает зафиксированную продажу порций продукта барменом.
type Sale struct {
	ID          int64
	UserID      int64
	ProductID   int64
	ProductName string
	Quantity    int
	TotalPrice  decimal.Decimal
	Points      int64
	Earnings    decimal.Decimal
	ProofType   ProofType
	ProofFile   string
	CreatedAt   time.Time
}

// LedgerEntryType определяет тип записи журнала баллов.
type LedgerEntryType string

const (
	LedgerEarned  LedgerEntryType = "earned"
	LedgerSpent   LedgerEntryType = "spent"
	LedgerBonus   LedgerEntryType = "bonus"
	LedgerPenalty LedgerEntryType = "penalty"
	LedgerRefund  LedgerEntryType = "refund"
)

// Sign возвращает знак, с которым сумма записи входит в баланс.
func (t LedgerEntryType) Sign() int64 {
	switch t {
	case LedgerSpent, LedgerPenalty:
		return -1
	default:
		return 1
	}
}

// Valid сообщает, известен ли тип записи.
func (t LedgerEntryType) Valid() bool {
	switch t {
	case LedgerEarned, LedgerSpent, LedgerBonus, LedgerPenalty, LedgerRefund:
		return true
	}
	return false
}

// LedgerEntry представляет неизменяемую запись журнала баллов. Amount всегда положителен,
// знак определяется типом.
type LedgerEntry struct {
	ID          int64
	UserID      int64
	Type        LedgerEntryType
	Amount      int64
	Description string
	SaleID      *int64
	OrderID     *int64
	CreatedAt   time.Time
}

// Signed возвращает сумму записи со знаком.
func (e LedgerEntry) Signed() int64 {
	return e.Type.Sign() * e.Amount
}

// Balance содержит баланс баллов и денежный баланс пользователя.
type Balance struct {
	Points    int64           `json:"points"`
	Earnings  decimal.Decimal `json:"earnings"`
	Withdrawn decimal.Decimal `json:"withdrawn"`
}

// Prize описывает приз, который можно получить за баллы.
type Prize struct {
	ID          int64
	Name        string
	Description string
	Cost        int64
	Available   bool
	CreatedAt   time.Time
}

// OrderStatus описывает этап жизненного цикла заказа призов.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderItem хранит копию позиции корзины на момент оформления заказа.
type OrderItem struct {
	PrizeID     int64
	Name        string
	Description string
	Price       int64
	Quantity    int
}

// Subtotal возвращает стоимость позиции в баллах.
func (i OrderItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// StatusHistoryEntry представляет запись журнала смены статусов заказа.
type StatusHistoryEntry struct {
	Status    OrderStatus
	Comment   string
	CreatedAt time.Time
}

// Order представляет оформленный пользователем снимок корзины.
type Order struct {
	ID                int64
	Number            string
	UserID            int64
	Items             []OrderItem
	TotalCost         int64
	Status            OrderStatus
	History           []StatusHistoryEntry
	DeliveryAddress   string
	Notes             string
	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StatusChange описывает смену статуса заказа, применяемую хранилищем атомарно.
// ExpectedVersion защищает от потерянных обновлений.
type StatusChange struct {
	OrderID           int64
	ExpectedVersion   int64
	Entry             StatusHistoryEntry
	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time
	Refund            *LedgerEntry
}

// DeliveryUpdate описывает изменение данных доставки заказа.
type DeliveryUpdate struct {
	OrderID         int64
	ExpectedVersion int64
	Address         string
	Notes           string
}

// WithdrawalStatus определяет статус заявки на вывод средств.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

// WithdrawalRequest описывает заявку на вывод денежного баланса на телефон.
type WithdrawalRequest struct {
	ID              uuid.UUID
	UserID          int64
	Amount          decimal.Decimal
	Commission      decimal.Decimal
	AmountToReceive decimal.Decimal
	Phone           string
	BankName        string
	Status          WithdrawalStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LeaderboardRow содержит сумму баллов пользователя за период в том виде, как её отдаёт хранилище.
type LeaderboardRow struct {
	UserID      int64
	DisplayName string
	Role        Role
	BarName     string
	CreatedAt   time.Time
	Points      int64
}

// LeaderboardEntry представляет строку рейтинга.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	BarName     string `json:"bar_name,omitempty"`
	Points      int64  `json:"points"`
}

// UserStats содержит агрегаты активности пользователя для расчёта достижений.
type UserStats struct {
	SalesCount       int64 `json:"sales_count"`
	PortionsSold     int64 `json:"portions_sold"`
	PointsEarned     int64 `json:"points_earned"`
	OrdersPlaced     int64 `json:"orders_placed"`
	DistinctProducts int64 `json:"distinct_products"`
}
