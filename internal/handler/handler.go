// Package handler содержит HTTP-обработчики API программы лояльности.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/bartender-loyalty/internal/cart"
	"github.com/mmeshcher/bartender-loyalty/internal/leaderboard"
	"github.com/mmeshcher/bartender-loyalty/internal/middleware"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/pricing"
	"github.com/mmeshcher/bartender-loyalty/internal/service"
	"github.com/mmeshcher/bartender-loyalty/internal/withdrawal"
)

const maxBodySize = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, reg service.Registration) (*model.User, error)
	CreateUser(ctx context.Context, reg service.Registration) (*model.User, error)
	AuthenticateUser(ctx context.Context, login, password string) (*model.User, error)
	GetProfile(ctx context.Context, userID int64) (*model.UserProfile, error)
	CreateCity(ctx context.Context, name string) (int64, error)
	CreateBar(ctx context.Context, name string, cityID int64) (int64, error)
	ListBars(ctx context.Context) ([]model.Bar, error)

	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	QuotePoints(ctx context.Context, productID int64, quantity int) (pricing.Quote, error)
	CreatePrize(ctx context.Context, p model.Prize) (*model.Prize, error)
	ListPrizes(ctx context.Context, onlyAvailable bool) ([]model.Prize, error)
	SetPrizeAvailability(ctx context.Context, id int64, available bool) error

	RecordSale(ctx context.Context, in service.SaleInput) (*model.Sale, error)
	ListSales(ctx context.Context, userID int64) ([]model.Sale, error)
	ListLedger(ctx context.Context, userID int64) ([]model.LedgerEntry, error)
	GetBalance(ctx context.Context, userID int64) (model.Balance, error)
	AdjustPoints(ctx context.Context, adj service.Adjustment) (int64, error)

	GetCart(ctx context.Context, userID int64) (*cart.Cart, error)
	AddToCart(ctx context.Context, userID, prizeID int64, quantity int) (*cart.Cart, error)
	SetCartQuantity(ctx context.Context, userID, prizeID int64, quantity int) (*cart.Cart, error)
	RemoveFromCart(ctx context.Context, userID, prizeID int64) (*cart.Cart, error)
	Checkout(ctx context.Context, userID int64, in service.CheckoutInput) (*model.Order, error)

	ListOrders(ctx context.Context, userID int64) ([]model.Order, error)
	ListAllOrders(ctx context.Context, status string) ([]model.Order, error)
	GetOrder(ctx context.Context, actor model.Principal, number string) (*model.Order, error)
	TransitionOrder(ctx context.Context, number string, to model.OrderStatus, comment string, estimated *time.Time) (*model.Order, error)
	CancelOrder(ctx context.Context, actor model.Principal, number, comment string) (*model.Order, error)
	UpdateDelivery(ctx context.Context, actor model.Principal, number, address, notes string) (*model.Order, error)

	CreateWithdrawal(ctx context.Context, userID int64, req withdrawal.Request) (*model.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, userID int64) ([]model.WithdrawalRequest, error)
	SetWithdrawalStatus(ctx context.Context, id string, status model.WithdrawalStatus) error

	Leaderboard(ctx context.Context, period string, limit int) ([]model.LeaderboardEntry, error)
	Achievements(ctx context.Context, userID int64) (leaderboard.Report, error)
}

// Handler реализует HTTP-обработчики API программы лояльности.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	corsOrigins    []string
	validate       *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, corsOrigins []string) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		corsOrigins:    corsOrigins,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor сопоставляет доменную ошибку HTTP-статусу.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrInsufficientPoints), errors.Is(err, model.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrConcurrencyConflict),
		errors.Is(err, model.ErrUserExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail отвечает клиенту по доменной ошибке. Неожиданные ошибки логируются, их текст клиенту не передаётся.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		fields := []zap.Field{zap.Error(err), zap.String("path", r.URL.Path)}
		if p, ok := middleware.GetPrincipalFromContext(r.Context()); ok {
			fields = append(fields, zap.Int64("userID", p.UserID))
		}
		h.logger.Error(op+" error", fields...)
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}

// decode читает JSON-тело запроса и проверяет его по тегам validate.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+": is required")
		case "min", "gte", "gt":
			parts = append(parts, field+": must be at least "+fe.Param())
		case "max", "lte":
			parts = append(parts, field+": must be at most "+fe.Param())
		default:
			parts = append(parts, field+": failed "+fe.Tag()+" check")
		}
	}
	return strings.Join(parts, "; ")
}

func principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	return p, ok
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, name+": must be a positive integer")
		return 0, false
	}
	return id, true
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &model.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return v, nil
}
