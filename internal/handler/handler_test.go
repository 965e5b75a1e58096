package handler

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/bartender-loyalty/internal/middleware"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/repository/memory"
	"github.com/mmeshcher/bartender-loyalty/internal/service"
	"github.com/mmeshcher/bartender-loyalty/internal/withdrawal"
)

type testAPI struct {
	t      *testing.T
	svc    *service.Service
	auth   *middleware.AuthMiddleware
	router *chi.Mux
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	svc := service.NewService(memory.New(), nil, service.Options{
		EarningsRate: decimal.RequireFromString("0.05"),
		Withdrawal: withdrawal.Policy{
			Min:            decimal.NewFromInt(100),
			Max:            decimal.NewFromInt(50000),
			CommissionRate: decimal.RequireFromString("0.05"),
		},
	}, zap.NewNop())

	auth := middleware.NewAuthMiddleware("test-secret", time.Hour)
	h := NewHandler(svc, zap.NewNop(), auth, []string{"*"})

	return &testAPI{t: t, svc: svc, auth: auth, router: h.SetupRouter()}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) tokenFor(u *model.User) string {
	a.t.Helper()
	token, err := a.auth.IssueToken(model.Principal{UserID: u.ID, Role: u.Role})
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) register(login string) string {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/api/user/register", "", map[string]string{
		"login":    login,
		"password": "secret1",
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp tokenResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(a.t, resp.Token)
	return resp.Token
}

func (a *testAPI) admin() string {
	a.t.Helper()
	u, err := a.svc.CreateUser(context.Background(), service.Registration{Login: "root", Password: "secret1", Role: model.RoleAdmin})
	require.NoError(a.t, err)
	return a.tokenFor(u)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)

	token := api.register("alice")

	rec := api.do(http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody[model.UserProfile](t, rec)
	assert.Equal(t, "alice", profile.Login)
	assert.Equal(t, model.RoleBartender, profile.Role)

	rec = api.do(http.MethodPost, "/api/user/register", "", map[string]string{"login": "alice", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/api/user/login", "", map[string]string{"login": "alice", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/user/login", "", map[string]string{"login": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Authorization"))
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestRegister_Validation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{name: "missing password", body: map[string]any{"login": "bob"}, want: http.StatusBadRequest},
		{name: "short password", body: map[string]any{"login": "bob", "password": "123"}, want: http.StatusBadRequest},
		{name: "unknown role", body: map[string]any{"login": "bob", "password": "secret1", "role": "pirate"}, want: http.StatusBadRequest},
		{name: "admin role", body: map[string]any{"login": "bob", "password": "secret1", "role": "admin"}, want: http.StatusForbidden},
		{name: "role object", body: map[string]any{"login": "bob", "password": "secret1", "role": map[string]string{"name": "test_bartender"}}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/user/register", "", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestProtectedRoutes(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("alice")

	rec := api.do(http.MethodGet, "/api/user/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/admin/prizes", token, map[string]any{"name": "Mug", "cost": 10})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/api/unknown", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestSaleToCheckoutFlow(t *testing.T) {
	api := newTestAPI(t)
	admin := api.admin()
	token := api.register("alice")

	rec := api.do(http.MethodPost, "/api/admin/products", admin, map[string]any{
		"name":                "London Dry",
		"bottle_price":        "1000",
		"portions_per_bottle": 20,
		"points_mode":         "per_portion",
		"points_per_portion":  5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeBody[productResponse](t, rec)
	assert.Equal(t, "50.00", product.PricePerPortion.String())

	rec = api.do(http.MethodGet, "/api/products/"+strconv.FormatInt(product.ID, 10)+"/quote?quantity=3", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	quote := decodeBody[quoteResponse](t, rec)
	assert.Equal(t, int64(15), quote.Points)
	assert.Equal(t, "150.00", quote.TotalPrice.String())

	rec = api.do(http.MethodPost, "/api/user/sales", token, map[string]any{"product_id": product.ID, "quantity": 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decodeBody[saleResponse](t, rec)
	assert.Equal(t, int64(50), sale.Points)
	assert.Equal(t, "receipt", sale.ProofType)

	rec = api.do(http.MethodPost, "/api/admin/prizes", admin, map[string]any{"name": "Shaker", "cost": 20})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	prize := decodeBody[prizeResponse](t, rec)

	rec = api.do(http.MethodPost, "/api/user/cart/items", token, map[string]any{"prize_id": prize.ID, "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeBody[cartResponse](t, rec)
	assert.Equal(t, int64(60), c.Total)

	rec = api.do(http.MethodPost, "/api/user/cart/checkout", token, map[string]any{"delivery_address": "Nevsky 1"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = api.do(http.MethodPut, "/api/user/cart/items/"+strconv.FormatInt(prize.ID, 10), token, map[string]any{"quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, "/api/user/cart/checkout", token, map[string]any{"delivery_address": "Nevsky 1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody[orderResponse](t, rec)
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, int64(40), order.TotalCost)
	assert.Len(t, order.Number, 13)

	rec = api.do(http.MethodGet, "/api/user/balance", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(10), decodeBody[balanceResponse](t, rec).Points)

	rec = api.do(http.MethodGet, "/api/user/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[cartResponse](t, rec).Items)

	rec = api.do(http.MethodPost, "/api/user/cart/checkout", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/admin/orders/"+order.Number+"/status", admin, map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/api/user/orders/"+order.Number+"/cancel", token, map[string]any{"comment": "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decodeBody[orderResponse](t, rec).Status)

	rec = api.do(http.MethodGet, "/api/user/balance", token, nil)
	assert.Equal(t, int64(50), decodeBody[balanceResponse](t, rec).Points)

	rec = api.do(http.MethodGet, "/api/user/ledger", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledger := decodeBody[[]ledgerEntryResponse](t, rec)
	require.Len(t, ledger, 3)
	var sum int64
	for _, e := range ledger {
		sum += e.Signed
	}
	assert.Equal(t, int64(50), sum)
}

func TestQuantityLimits(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("alice")

	u, err := api.svc.AuthenticateUser(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	prize, err := api.svc.CreatePrize(context.Background(), model.Prize{Name: "Pin", Cost: 2, Available: true})
	require.NoError(t, err)
	product, err := api.svc.CreateProduct(context.Background(), model.Product{
		Name:              "Tonic",
		BottlePrice:       decimal.NewFromInt(100),
		PortionsPerBottle: 10,
		PointsMode:        model.PointsPerPortion,
		PointsPerPortion:  2,
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   map[string]any
	}{
		{name: "sale", method: http.MethodPost, path: "/api/user/sales", body: map[string]any{"product_id": product.ID, "quantity": int64(9223372036854775308)}},
		{name: "sale above limit", method: http.MethodPost, path: "/api/user/sales", body: map[string]any{"product_id": product.ID, "quantity": 10001}},
		{name: "cart add", method: http.MethodPost, path: "/api/user/cart/items", body: map[string]any{"prize_id": prize.ID, "quantity": int64(9223372036854775308)}},
		{name: "cart add above limit", method: http.MethodPost, path: "/api/user/cart/items", body: map[string]any{"prize_id": prize.ID, "quantity": 1001}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(tt.method, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := api.do(http.MethodGet, "/api/user/balance", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decodeBody[balanceResponse](t, rec).Points)

	c, err := api.svc.GetCart(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestGetOrder_InvalidNumberAndForeignOrder(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")
	bob := api.register("bob")

	rec := api.do(http.MethodGet, "/api/user/orders/2410181234566", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	u, err := api.svc.AuthenticateUser(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	prize, err := api.svc.CreatePrize(context.Background(), model.Prize{Name: "Pin", Cost: 5, Available: true})
	require.NoError(t, err)
	_, err = api.svc.AdjustPoints(context.Background(), service.Adjustment{UserID: u.ID, Type: model.LedgerBonus, Amount: 5})
	require.NoError(t, err)
	_, err = api.svc.AddToCart(context.Background(), u.ID, prize.ID, 1)
	require.NoError(t, err)
	order, err := api.svc.Checkout(context.Background(), u.ID, service.CheckoutInput{})
	require.NoError(t, err)

	rec = api.do(http.MethodGet, "/api/user/orders/"+order.Number, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/user/orders/"+order.Number, alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPatch, "/api/user/orders/"+order.Number+"/delivery", alice, map[string]any{"delivery_address": "Arbat 5"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Arbat 5", decodeBody[orderResponse](t, rec).DeliveryAddress)
}

func TestAdjustPoints_PenaltyBelowZero(t *testing.T) {
	api := newTestAPI(t)
	admin := api.admin()
	api.register("alice")

	u, err := api.svc.AuthenticateUser(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	rec := api.do(http.MethodPost, "/api/admin/points", admin, map[string]any{"user_id": u.ID, "type": "bonus", "amount": 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(30), decodeBody[adjustmentResponse](t, rec).Points)

	rec = api.do(http.MethodPost, "/api/admin/points", admin, map[string]any{"user_id": u.ID, "type": "penalty", "amount": 31})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = api.do(http.MethodPost, "/api/admin/points", admin, map[string]any{"user_id": u.ID, "type": "refund", "amount": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateWithdrawal(t *testing.T) {
	api := newTestAPI(t)
	admin := api.admin()
	token := api.register("alice")

	rec := api.do(http.MethodPost, "/api/admin/products", admin, map[string]any{
		"name":                "Rum",
		"bottle_price":        1000,
		"portions_per_bottle": 20,
		"points_mode":         "per_ruble",
		"points_per_ruble":    "0.5",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeBody[productResponse](t, rec)

	rec = api.do(http.MethodPost, "/api/user/sales", token, map[string]any{"product_id": product.ID, "quantity": 400})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{name: "missing amount", body: map[string]any{"phone": "+79123456789"}, want: http.StatusBadRequest},
		{name: "not a number", body: map[string]any{"amount": "abc", "phone": "+79123456789"}, want: http.StatusBadRequest},
		{name: "below minimum", body: map[string]any{"amount": 50, "phone": "+79123456789"}, want: http.StatusBadRequest},
		{name: "more than available", body: map[string]any{"amount": 1500, "phone": "+79123456789"}, want: http.StatusPaymentRequired},
		{name: "bad phone", body: map[string]any{"amount": 500, "phone": "12345"}, want: http.StatusBadRequest},
		{name: "ok as string", body: map[string]any{"amount": "500", "phone": "8 (912) 345-67-89"}, want: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/user/withdrawals", token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec = api.do(http.MethodGet, "/api/user/withdrawals", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]withdrawalResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "25.00", list[0].Commission.String())
	assert.Equal(t, "475.00", list[0].AmountToReceive.String())
	assert.Equal(t, "79123456789", list[0].Phone)

	rec = api.do(http.MethodPost, "/api/admin/withdrawals/"+list[0].ID+"/status", admin, map[string]any{"status": "rejected"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/api/user/balance", token, nil)
	assert.Equal(t, "1000.00", decodeBody[balanceResponse](t, rec).Earnings.String())
}

func TestLeaderboardAndAchievements(t *testing.T) {
	api := newTestAPI(t)
	admin := api.admin()
	alice := api.register("alice")
	api.register("bob")

	rec := api.do(http.MethodPost, "/api/admin/products", admin, map[string]any{
		"name":                "Vodka",
		"bottle_price":        "500",
		"portions_per_bottle": 10,
		"points_mode":         "per_portion",
		"points_per_portion":  2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeBody[productResponse](t, rec)

	rec = api.do(http.MethodPost, "/api/user/sales", alice, map[string]any{"product_id": product.ID, "quantity": 5})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(http.MethodGet, "/api/leaderboard?period=weekly&limit=5", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decodeBody[leaderboardResponse](t, rec)
	assert.Equal(t, "weekly", board.Period)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, "alice", board.Entries[0].DisplayName)
	assert.Equal(t, int64(10), board.Entries[0].Points)

	rec = api.do(http.MethodGet, "/api/leaderboard?period=yearly", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/user/achievements", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Summary struct {
			Total    int `json:"total"`
			Unlocked int `json:"unlocked"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Positive(t, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Unlocked)
}

func TestGzipResponse(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("alice")

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"login":"alice"`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: model.ErrEmptyCart, want: http.StatusBadRequest},
		{err: &model.ValidationError{Field: "x", Reason: "y"}, want: http.StatusBadRequest},
		{err: model.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{err: model.ErrInsufficientFunds, want: http.StatusPaymentRequired},
		{err: model.ErrForbidden, want: http.StatusForbidden},
		{err: model.ErrNotFound, want: http.StatusNotFound},
		{err: model.ErrConcurrencyConflict, want: http.StatusConflict},
		{err: io.EOF, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
