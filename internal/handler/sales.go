package handler

import (
	"net/http"

	"github.com/mmeshcher/bartender-loyalty/internal/service"
)

// RecordSale фиксирует продажу текущего пользователя и начисляет баллы.
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req saleRequest
	if !h.decode(w, r, &req) {
		return
	}

	sale, err := h.service.RecordSale(r.Context(), service.SaleInput{
		UserID:    p.UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		ProofType: req.ProofType,
		ProofFile: req.ProofFile,
	})
	if err != nil {
		h.fail(w, r, "record sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, newSaleResponse(*sale))
}

// ListSales возвращает продажи текущего пользователя.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	sales, err := h.service.ListSales(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "list sales", err)
		return
	}

	resp := make([]saleResponse, 0, len(sales))
	for _, s := range sales {
		resp = append(resp, newSaleResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBalance возвращает баллы и денежный баланс текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	b, err := h.service.GetBalance(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Points:    b.Points,
		Earnings:  money(b.Earnings),
		Withdrawn: money(b.Withdrawn),
	})
}

// ListLedger возвращает журнал баллов текущего пользователя.
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListLedger(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "list ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, newLedgerResponse(entries))
}

type adjustmentResponse struct {
	UserID int64 `json:"user_id"`
	Points int64 `json:"points"`
}

// AdjustPoints начисляет бонус или списывает штраф. Доступно администратору.
func (h *Handler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	points, err := h.service.AdjustPoints(r.Context(), service.Adjustment{
		UserID:      req.UserID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, r, "adjust points", err)
		return
	}
	writeJSON(w, http.StatusOK, adjustmentResponse{UserID: req.UserID, Points: points})
}
