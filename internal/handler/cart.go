package handler

import (
	"net/http"

	"github.com/mmeshcher/bartender-loyalty/internal/service"
)

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetCart(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "get cart", err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(c))
}

// AddToCart добавляет приз в корзину или заменяет количество уже добавленного.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req cartItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	c, err := h.service.AddToCart(r.Context(), p.UserID, req.PrizeID, req.Quantity)
	if err != nil {
		h.fail(w, r, "add to cart", err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(c))
}

// SetCartQuantity меняет количество приза в корзине.
func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	prizeID, ok := int64Param(w, r, "prizeID")
	if !ok {
		return
	}
	var req cartQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.service.SetCartQuantity(r.Context(), p.UserID, prizeID, req.Quantity)
	if err != nil {
		h.fail(w, r, "set cart quantity", err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(c))
}

// RemoveFromCart удаляет приз из корзины.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	prizeID, ok := int64Param(w, r, "prizeID")
	if !ok {
		return
	}

	c, err := h.service.RemoveFromCart(r.Context(), p.UserID, prizeID)
	if err != nil {
		h.fail(w, r, "remove from cart", err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(c))
}

// Checkout оформляет заказ из корзины и списывает баллы.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}

	o, err := h.service.Checkout(r.Context(), p.UserID, service.CheckoutInput{
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		h.fail(w, r, "checkout", err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderResponse(*o))
}
