package handler

import (
	"net/http"

	"github.com/mmeshcher/bartender-loyalty/internal/middleware"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// ListProducts возвращает активные продукты.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.fail(w, r, "list products", err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, newProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// QuotePoints показывает сумму продажи и баллы для указанного количества порций.
func (h *Handler) QuotePoints(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	quantity, err := intQuery(r, "quantity", 1)
	if err != nil {
		h.fail(w, r, "quote points", err)
		return
	}

	q, err := h.service.QuotePoints(r.Context(), id, quantity)
	if err != nil {
		h.fail(w, r, "quote points", err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(id, quantity, q))
}

// CreateProduct добавляет продукт.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.CreateProduct(r.Context(), model.Product{
		Name:              req.Name,
		Brand:             req.Brand,
		Category:          req.Category,
		BottlePrice:       req.BottlePrice,
		PortionsPerBottle: req.PortionsPerBottle,
		PointsMode:        req.PointsMode,
		PointsPerPortion:  req.PointsPerPortion,
		PointsPerRuble:    req.PointsPerRuble,
	})
	if err != nil {
		h.fail(w, r, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, newProductResponse(*p))
}

// ListPrizes возвращает призы. Администратор видит и снятые с выдачи.
func (h *Handler) ListPrizes(w http.ResponseWriter, r *http.Request) {
	onlyAvailable := true
	if p, ok := middleware.GetPrincipalFromContext(r.Context()); ok && p.Role == model.RoleAdmin {
		onlyAvailable = r.URL.Query().Get("all") != "true"
	}

	prizes, err := h.service.ListPrizes(r.Context(), onlyAvailable)
	if err != nil {
		h.fail(w, r, "list prizes", err)
		return
	}

	resp := make([]prizeResponse, 0, len(prizes))
	for _, p := range prizes {
		resp = append(resp, newPrizeResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreatePrize добавляет приз.
func (h *Handler) CreatePrize(w http.ResponseWriter, r *http.Request) {
	var req prizeRequest
	if !h.decode(w, r, &req) {
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	p, err := h.service.CreatePrize(r.Context(), model.Prize{
		Name:        req.Name,
		Description: req.Description,
		Cost:        req.Cost,
		Available:   available,
	})
	if err != nil {
		h.fail(w, r, "create prize", err)
		return
	}
	writeJSON(w, http.StatusCreated, newPrizeResponse(*p))
}

// SetPrizeAvailability включает или снимает приз с выдачи.
func (h *Handler) SetPrizeAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req prizeAvailabilityRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.SetPrizeAvailability(r.Context(), id, *req.Available); err != nil {
		h.fail(w, r, "set prize availability", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
