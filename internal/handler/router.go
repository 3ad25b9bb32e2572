package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/smmpanel-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware SMM-панели.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Get("/services", h.GetServices)

		// Callback'и провайдеров: webhook приходит POST'ом,
		// redirect-провайдеры возвращают пользователя GET'ом.
		r.Route("/payments/{provider}", func(r chi.Router) {
			r.Post("/confirm", h.ConfirmPayment)
			r.Get("/confirm", h.ConfirmPayment)
			r.Post("/fail", h.FailPayment)
			r.Get("/fail", h.FailPayment)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/{orderID}", h.GetOrder)
			r.Post("/orders/{orderID}/cancel", h.CancelOrder)
			r.Get("/orders/{orderID}/history", h.GetOrderHistory)
			r.Post("/orders/{orderID}/payment", h.PrepareOrderPayment)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.authMiddleware.RequireAdmin)

			r.Post("/admin/services", h.CreateService)
			r.Put("/admin/services/{serviceID}", h.UpdateService)
			r.Get("/admin/orders", h.ListAllOrders)
			r.Patch("/admin/orders/{orderID}/status", h.AdvanceOrder)
			r.Patch("/admin/users/{userID}/role", h.SetUserRole)
			r.Delete("/admin/users/{userID}", h.DeactivateUser)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
