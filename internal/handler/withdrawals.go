package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/bartender-loyalty/internal/withdrawal"
)

// CreateWithdrawal создаёт заявку на вывод денежного баланса.
func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req withdrawalRequest
	if !h.decode(w, r, &req) {
		return
	}

	wr, err := h.service.CreateWithdrawal(r.Context(), p.UserID, withdrawal.Request{
		Amount:   string(req.Amount),
		Phone:    req.Phone,
		BankName: req.BankName,
	})
	if err != nil {
		h.fail(w, r, "create withdrawal", err)
		return
	}
	writeJSON(w, http.StatusCreated, newWithdrawalResponse(*wr))
}

// ListWithdrawals возвращает заявки на вывод текущего пользователя.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListWithdrawals(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "list withdrawals", err)
		return
	}

	resp := make([]withdrawalResponse, 0, len(list))
	for _, wr := range list {
		resp = append(resp, newWithdrawalResponse(wr))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetWithdrawalStatus завершает или отклоняет заявку. Доступно администратору.
func (h *Handler) SetWithdrawalStatus(w http.ResponseWriter, r *http.Request) {
	var req withdrawalStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.SetWithdrawalStatus(r.Context(), chi.URLParam(r, "id"), req.Status); err != nil {
		h.fail(w, r, "set withdrawal status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
