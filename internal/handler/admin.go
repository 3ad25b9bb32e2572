package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/smmpanel-system/internal/model"
)

type serviceRequest struct {
	Platform    string `json:"platform"`
	Category    string `json:"category"`
	Name        string `json:"name"`
	RatePerK    int64  `json:"rate_per_k"`
	MinQuantity int64  `json:"min_quantity"`
	MaxQuantity int64  `json:"max_quantity"`
	Active      bool   `json:"active"`
}

// CreateService добавляет позицию каталога. Только для администраторов.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateService(r.Context(), principal, &model.Service{
		Platform:    req.Platform,
		Category:    req.Category,
		Name:        req.Name,
		RatePerK:    req.RatePerK,
		MinQuantity: req.MinQuantity,
		MaxQuantity: req.MaxQuantity,
		Active:      req.Active,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// UpdateService обновляет позицию каталога. Только для администраторов.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	serviceID, err := strconv.ParseInt(chi.URLParam(r, "serviceID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err = h.service.UpdateService(r.Context(), principal, &model.Service{
		ID:          serviceID,
		Platform:    req.Platform,
		Category:    req.Category,
		Name:        req.Name,
		RatePerK:    req.RatePerK,
		MinQuantity: req.MinQuantity,
		MaxQuantity: req.MaxQuantity,
		Active:      req.Active,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ListAllOrders возвращает все заказы. Только для администраторов.
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListAllOrders(r.Context(), principal)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

type advanceOrderRequest struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// AdvanceOrder выполняет переход статуса заказа. Только для администраторов.
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	orderID, err := orderIDFromURL(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req advanceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o, err := h.service.AdvanceOrder(r.Context(), principal, orderID, model.OrderStatus(req.Status), req.Progress)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetUserRole изменяет роль пользователя. Только для администраторов.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetUserRole(r.Context(), principal, userID, model.Role(req.Role)); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeactivateUser отключает пользователя без удаления записей. Только для администраторов.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeactivateUser(r.Context(), principal, userID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
