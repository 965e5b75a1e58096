package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/bartender-loyalty/internal/orderflow"
)

// ListOrders возвращает заказы текущего пользователя.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, newOrdersResponse(orders))
}

// GetOrder возвращает заказ по номеру.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), p, chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, r, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*o))
}

// CancelOrder отменяет заказ и возвращает баллы.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}

	o, err := h.service.CancelOrder(r.Context(), p, chi.URLParam(r, "number"), req.Comment)
	if err != nil {
		h.fail(w, r, "cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*o))
}

// UpdateDelivery меняет адрес и комментарий доставки.
func (h *Handler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req deliveryRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.service.UpdateDelivery(r.Context(), p, chi.URLParam(r, "number"), req.DeliveryAddress, req.Notes)
	if err != nil {
		h.fail(w, r, "update delivery", err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*o))
}

// ListAllOrders возвращает заказы всех пользователей с фильтром по статусу.
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListAllOrders(r.Context(), strings.TrimSpace(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, "list all orders", err)
		return
	}
	writeJSON(w, http.StatusOK, newOrdersResponse(orders))
}

// TransitionOrder переводит заказ в новый статус.
func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	to, err := orderflow.ParseStatus(req.Status)
	if err != nil {
		h.fail(w, r, "transition order", err)
		return
	}

	o, err := h.service.TransitionOrder(r.Context(), chi.URLParam(r, "number"), to, req.Comment, req.EstimatedDelivery)
	if err != nil {
		h.fail(w, r, "transition order", err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*o))
}
