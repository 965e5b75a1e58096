package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bartender-loyalty/internal/cart"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
	"github.com/mmeshcher/bartender-loyalty/internal/pricing"
)

// money отдаёт сумму JSON-числом с двумя знаками после запятой.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// flexAmount принимает сумму как JSON-число или строку и сохраняет исходный текст.
type flexAmount string

func (a *flexAmount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &model.ValidationError{Field: "amount", Reason: "must be a number"}
		}
		*a = flexAmount(s)
		return nil
	}
	*a = flexAmount(raw)
	return nil
}

type credentialsRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Login       string     `json:"login" validate:"required,max=64"`
	Password    string     `json:"password" validate:"required,min=6,max=72"`
	DisplayName string     `json:"display_name" validate:"max=128"`
	Role        model.Role `json:"role"`
	CityID      *int64     `json:"city_id" validate:"omitempty,gt=0"`
	BarID       *int64     `json:"bar_id" validate:"omitempty,gt=0"`
}

type tokenResponse struct {
	Token string             `json:"token"`
	User  *model.UserProfile `json:"user,omitempty"`
}

type balanceResponse struct {
	Points    int64       `json:"points"`
	Earnings  json.Number `json:"earnings_available"`
	Withdrawn json.Number `json:"withdrawn"`
}

type ledgerEntryResponse struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Amount      int64  `json:"amount"`
	Signed      int64  `json:"signed_amount"`
	Description string `json:"description,omitempty"`
	SaleID      *int64 `json:"sale_id,omitempty"`
	OrderID     *int64 `json:"order_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func newLedgerResponse(entries []model.LedgerEntry) []ledgerEntryResponse {
	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, ledgerEntryResponse{
			ID:          e.ID,
			Type:        string(e.Type),
			Amount:      e.Amount,
			Signed:      e.Signed(),
			Description: e.Description,
			SaleID:      e.SaleID,
			OrderID:     e.OrderID,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp
}

type productRequest struct {
	Name              string           `json:"name" validate:"required,max=255"`
	Brand             string           `json:"brand" validate:"max=255"`
	Category          string           `json:"category" validate:"max=255"`
	BottlePrice       decimal.Decimal  `json:"bottle_price"`
	PortionsPerBottle int              `json:"portions_per_bottle" validate:"gt=0"`
	PointsMode        model.PointsMode `json:"points_mode" validate:"required"`
	PointsPerPortion  int64            `json:"points_per_portion" validate:"gte=0"`
	PointsPerRuble    decimal.Decimal  `json:"points_per_ruble"`
}

type productResponse struct {
	ID                int64       `json:"id"`
	Name              string      `json:"name"`
	Brand             string      `json:"brand,omitempty"`
	Category          string      `json:"category,omitempty"`
	BottlePrice       json.Number `json:"bottle_price"`
	PortionsPerBottle int         `json:"portions_per_bottle"`
	PricePerPortion   json.Number `json:"price_per_portion"`
	PointsMode        string      `json:"points_mode"`
	PointsPerPortion  int64       `json:"points_per_portion,omitempty"`
	PointsPerRuble    string      `json:"points_per_ruble,omitempty"`
	Active            bool        `json:"active"`
}

func newProductResponse(p model.Product) productResponse {
	resp := productResponse{
		ID:                p.ID,
		Name:              p.Name,
		Brand:             p.Brand,
		Category:          p.Category,
		BottlePrice:       money(p.BottlePrice),
		PortionsPerBottle: p.PortionsPerBottle,
		PointsMode:        string(p.PointsMode),
		Active:            p.Active,
	}
	if p.PortionsPerBottle > 0 {
		resp.PricePerPortion = money(p.BottlePrice.Div(decimal.NewFromInt(int64(p.PortionsPerBottle))))
	} else {
		resp.PricePerPortion = money(decimal.Zero)
	}
	switch p.PointsMode {
	case model.PointsPerPortion:
		resp.PointsPerPortion = p.PointsPerPortion
	case model.PointsPerRuble:
		resp.PointsPerRuble = p.PointsPerRuble.String()
	}
	return resp
}

type quoteResponse struct {
	ProductID       int64       `json:"product_id"`
	Quantity        int         `json:"quantity"`
	PricePerPortion json.Number `json:"price_per_portion"`
	TotalPrice      json.Number `json:"total_price"`
	Points          int64       `json:"points"`
}

func newQuoteResponse(productID int64, quantity int, q pricing.Quote) quoteResponse {
	return quoteResponse{
		ProductID:       productID,
		Quantity:        quantity,
		PricePerPortion: money(q.PricePerPortion),
		TotalPrice:      money(q.TotalPrice),
		Points:          q.Points,
	}
}

type saleRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0,lte=10000"`
	ProofType model.ProofType `json:"proof_type" validate:"omitempty,oneof=receipt photo"`
	ProofFile string          `json:"proof_file" validate:"max=1024"`
}

type saleResponse struct {
	ID          int64       `json:"id"`
	ProductID   int64       `json:"product_id"`
	ProductName string      `json:"product_name,omitempty"`
	Quantity    int         `json:"quantity"`
	TotalPrice  json.Number `json:"total_price"`
	Points      int64       `json:"points"`
	Earnings    json.Number `json:"earnings"`
	ProofType   string      `json:"proof_type"`
	ProofFile   string      `json:"proof_file,omitempty"`
	CreatedAt   string      `json:"created_at"`
}

func newSaleResponse(s model.Sale) saleResponse {
	return saleResponse{
		ID:          s.ID,
		ProductID:   s.ProductID,
		ProductName: s.ProductName,
		Quantity:    s.Quantity,
		TotalPrice:  money(s.TotalPrice),
		Points:      s.Points,
		Earnings:    money(s.Earnings),
		ProofType:   string(s.ProofType),
		ProofFile:   s.ProofFile,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
}

type prizeRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Cost        int64  `json:"cost" validate:"required,gt=0"`
	Available   *bool  `json:"available"`
}

type prizeAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type prizeResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Cost        int64  `json:"cost"`
	Available   bool   `json:"available"`
}

func newPrizeResponse(p model.Prize) prizeResponse {
	return prizeResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Cost:        p.Cost,
		Available:   p.Available,
	}
}

type cartItemRequest struct {
	PrizeID  int64 `json:"prize_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"lte=1000"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"lte=1000"`
}

type cartLineResponse struct {
	PrizeID     int64  `json:"prize_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Cost        int64  `json:"cost"`
	Quantity    int    `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
	Available   bool   `json:"available"`
}

type cartResponse struct {
	Items   []cartLineResponse `json:"items"`
	Total   int64              `json:"total"`
	Version int64              `json:"version"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	resp := cartResponse{
		Items:   make([]cartLineResponse, 0, len(c.Lines)),
		Total:   c.Total(),
		Version: c.Version,
	}
	for _, l := range c.Lines {
		resp.Items = append(resp.Items, cartLineResponse{
			PrizeID:     l.PrizeID,
			Name:        l.Name,
			Description: l.Description,
			Cost:        l.Cost,
			Quantity:    l.Quantity,
			Subtotal:    l.Cost * int64(l.Quantity),
			Available:   l.Available,
		})
	}
	return resp
}

type checkoutRequest struct {
	DeliveryAddress string `json:"delivery_address" validate:"max=1024"`
	Notes           string `json:"notes" validate:"max=2000"`
}

type orderItemResponse struct {
	PrizeID     int64  `json:"prize_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
}

type historyResponse struct {
	Status    string `json:"status"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at"`
}

type orderResponse struct {
	Number            string              `json:"number"`
	Status            string              `json:"status"`
	TotalCost         int64               `json:"total_cost"`
	Items             []orderItemResponse `json:"items"`
	History           []historyResponse   `json:"history"`
	DeliveryAddress   string              `json:"delivery_address,omitempty"`
	Notes             string              `json:"notes,omitempty"`
	EstimatedDelivery *string             `json:"estimated_delivery,omitempty"`
	ActualDelivery    *string             `json:"actual_delivery,omitempty"`
	CreatedAt         string              `json:"created_at"`
	UpdatedAt         string              `json:"updated_at"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func newOrderResponse(o model.Order) orderResponse {
	resp := orderResponse{
		Number:            o.Number,
		Status:            string(o.Status),
		TotalCost:         o.TotalCost,
		Items:             make([]orderItemResponse, 0, len(o.Items)),
		History:           make([]historyResponse, 0, len(o.History)),
		DeliveryAddress:   o.DeliveryAddress,
		Notes:             o.Notes,
		EstimatedDelivery: formatTime(o.EstimatedDelivery),
		ActualDelivery:    formatTime(o.ActualDelivery),
		CreatedAt:         o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         o.UpdatedAt.Format(time.RFC3339),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			PrizeID:     it.PrizeID,
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal(),
		})
	}
	for _, e := range o.History {
		resp.History = append(resp.History, historyResponse{
			Status:    string(e.Status),
			Comment:   e.Comment,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp
}

func newOrdersResponse(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	return resp
}

type deliveryRequest struct {
	DeliveryAddress string `json:"delivery_address" validate:"max=1024"`
	Notes           string `json:"notes" validate:"max=2000"`
}

type cancelRequest struct {
	Comment string `json:"comment" validate:"max=1024"`
}

type statusRequest struct {
	Status            string     `json:"status" validate:"required"`
	Comment           string     `json:"comment" validate:"max=1024"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

type withdrawalRequest struct {
	Amount   flexAmount `json:"amount"`
	Phone    string     `json:"phone"`
	BankName string     `json:"bank_name" validate:"max=255"`
}

type withdrawalResponse struct {
	ID              string      `json:"id"`
	Amount          json.Number `json:"amount"`
	Commission      json.Number `json:"commission"`
	AmountToReceive json.Number `json:"amount_to_receive"`
	Phone           string      `json:"phone"`
	BankName        string      `json:"bank_name,omitempty"`
	Status          string      `json:"status"`
	CreatedAt       string      `json:"created_at"`
	UpdatedAt       string      `json:"updated_at"`
}

func newWithdrawalResponse(w model.WithdrawalRequest) withdrawalResponse {
	return withdrawalResponse{
		ID:              w.ID.String(),
		Amount:          money(w.Amount),
		Commission:      money(w.Commission),
		AmountToReceive: money(w.AmountToReceive),
		Phone:           w.Phone,
		BankName:        w.BankName,
		Status:          string(w.Status),
		CreatedAt:       w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       w.UpdatedAt.Format(time.RFC3339),
	}
}

type withdrawalStatusRequest struct {
	Status model.WithdrawalStatus `json:"status" validate:"required,oneof=completed rejected"`
}

type adjustmentRequest struct {
	UserID      int64                 `json:"user_id" validate:"required,gt=0"`
	Type        model.LedgerEntryType `json:"type" validate:"required,oneof=bonus penalty"`
	Amount      int64                 `json:"amount" validate:"required,gt=0"`
	Description string                `json:"description" validate:"max=1024"`
}

type cityRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type barRequest struct {
	Name   string `json:"name" validate:"required,max=255"`
	CityID int64  `json:"city_id" validate:"required,gt=0"`
}

type idResponse struct {
	ID int64 `json:"id"`
}
