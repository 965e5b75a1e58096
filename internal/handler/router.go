package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/bartender-loyalty/internal/middleware"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware программы лояльности.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.CORS(h.corsOrigins))
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.GzipMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)
		r.Get("/bars", h.ListBars)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/products", h.ListProducts)
			r.Get("/products/{id}/quote", h.QuotePoints)
			r.Get("/prizes", h.ListPrizes)
			r.Get("/leaderboard", h.Leaderboard)

			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", h.GetProfile)
				r.Get("/balance", h.GetBalance)
				r.Get("/ledger", h.ListLedger)

				r.Post("/sales", h.RecordSale)
				r.Get("/sales", h.ListSales)

				r.Get("/cart", h.GetCart)
				r.Post("/cart/items", h.AddToCart)
				r.Put("/cart/items/{prizeID}", h.SetCartQuantity)
				r.Delete("/cart/items/{prizeID}", h.RemoveFromCart)
				r.Post("/cart/checkout", h.Checkout)

				r.Get("/orders", h.ListOrders)
				r.Get("/orders/{number}", h.GetOrder)
				r.Patch("/orders/{number}/delivery", h.UpdateDelivery)
				r.Post("/orders/{number}/cancel", h.CancelOrder)

				r.Post("/withdrawals", h.CreateWithdrawal)
				r.Get("/withdrawals", h.ListWithdrawals)

				r.Get("/achievements", h.Achievements)
			})

			r.Route("/admin", func(r chi.Router) {
				r.With(custommiddleware.RequireRole(model.RoleAdmin, model.RoleBrandRepresentative)).
					Post("/products", h.CreateProduct)
				r.With(custommiddleware.RequireRole(model.RoleAdmin, model.RoleBrandRepresentative)).
					Post("/orders/{number}/status", h.TransitionOrder)

				r.Group(func(r chi.Router) {
					r.Use(custommiddleware.RequireRole(model.RoleAdmin))

					r.Post("/users", h.CreateUser)
					r.Post("/cities", h.CreateCity)
					r.Post("/bars", h.CreateBar)
					r.Post("/prizes", h.CreatePrize)
					r.Patch("/prizes/{id}", h.SetPrizeAvailability)
					r.Post("/points", h.AdjustPoints)
					r.Get("/orders", h.ListAllOrders)
					r.Post("/withdrawals/{id}/status", h.SetWithdrawalStatus)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
