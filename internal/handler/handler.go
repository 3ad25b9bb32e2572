// Package handler содержит HTTP-обработчики API SMM-панели.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/smmpanel-system/internal/apperr"
	"github.com/mmeshcher/smmpanel-system/internal/middleware"
	"github.com/mmeshcher/smmpanel-system/internal/model"
	"github.com/mmeshcher/smmpanel-system/internal/payment"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, username, email, password string) (int64, error)
	AuthenticateUser(ctx context.Context, username, password string) (*model.User, error)
	ListServices(ctx context.Context) ([]model.Service, error)
	CreateOrder(ctx context.Context, principal model.Principal, serviceID, quantity int64, targetURL string) (*model.Order, error)
	GetOrder(ctx context.Context, principal model.Principal, orderID int64) (*model.Order, error)
	ListOrders(ctx context.Context, principal model.Principal) ([]model.Order, error)
	CancelOrder(ctx context.Context, principal model.Principal, orderID int64) (*model.Order, error)
	GetOrderHistory(ctx context.Context, principal model.Principal, orderID int64) ([]model.ServiceLog, error)
	AdvanceOrder(ctx context.Context, principal model.Principal, orderID int64, newStatus model.OrderStatus, newProgress int) (*model.Order, error)
	ListAllOrders(ctx context.Context, principal model.Principal) ([]model.Order, error)
	CreateService(ctx context.Context, principal model.Principal, svc *model.Service) (int64, error)
	UpdateService(ctx context.Context, principal model.Principal, svc *model.Service) error
	SetUserRole(ctx context.Context, principal model.Principal, userID int64, role model.Role) error
	DeactivateUser(ctx context.Context, principal model.Principal, userID int64) error
}

// Payments определяет контракт платёжного моста, используемый обработчиками.
type Payments interface {
	PrepareIntent(o *model.Order) *payment.Intent
	Confirm(ctx context.Context, providerName string, payload []byte) (*model.Order, error)
	Fail(ctx context.Context, providerName string, payload []byte) (string, error)
}

// Handler реализует HTTP-обработчики API SMM-панели.
type Handler struct {
	service        Service
	payments       Payments
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, p Payments, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		payments:       p,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeError сопоставляет ошибку с HTTP-кодом из классификации apperr.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("internal error", zap.Error(err))
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func principalOrFail(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return principal, ok
}

func orderIDFromURL(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		return 0, errors.Join(apperr.ErrValidation, errors.New("bad order id"))
	}
	return id, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	token := h.authMiddleware.IssueToken(userID, model.RoleUser)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и выпускает токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.writeError(w, err)
		return
	}

	token := h.authMiddleware.IssueToken(u.ID, u.Role)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type serviceResponse struct {
	ID          int64  `json:"id"`
	Platform    string `json:"platform"`
	Category    string `json:"category"`
	Name        string `json:"name"`
	RatePerK    int64  `json:"rate_per_k"`
	MinQuantity int64  `json:"min_quantity"`
	MaxQuantity int64  `json:"max_quantity"`
}

// GetServices возвращает каталог активных услуг.
func (h *Handler) GetServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServices(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]serviceResponse, 0, len(services))
	for _, s := range services {
		resp = append(resp, serviceResponse{
			ID:          s.ID,
			Platform:    s.Platform,
			Category:    s.Category,
			Name:        s.Name,
			RatePerK:    s.RatePerK,
			MinQuantity: s.MinQuantity,
			MaxQuantity: s.MaxQuantity,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type createOrderRequest struct {
	ServiceID int64  `json:"service_id"`
	Quantity  int64  `json:"quantity"`
	TargetURL string `json:"target_url"`
}

type orderResponse struct {
	ID            int64  `json:"id"`
	ServiceID     int64  `json:"service_id"`
	TargetURL     string `json:"target_url"`
	Quantity      int64  `json:"quantity"`
	OriginalPrice int64  `json:"original_price"`
	Discount      int64  `json:"discount"`
	TotalPrice    int64  `json:"total_price"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	CreatedAt     string `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		ServiceID:     o.ServiceID,
		TargetURL:     o.TargetURL,
		Quantity:      o.Quantity,
		OriginalPrice: o.OriginalPrice,
		Discount:      o.Discount,
		TotalPrice:    o.TotalPrice,
		Status:        string(o.Status),
		Progress:      o.Progress,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
}

// CreateOrder создаёт заказ текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o, err := h.service.CreateOrder(r.Context(), principal, req.ServiceID, req.Quantity, req.TargetURL)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), principal)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает один заказ текущего пользователя.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	orderID, err := orderIDFromURL(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	o, err := h.service.GetOrder(r.Context(), principal, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// CancelOrder отменяет заказ текущего пользователя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	orderID, err := orderIDFromURL(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	o, err := h.service.CancelOrder(r.Context(), principal, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type historyEntryResponse struct {
	Action         string `json:"action"`
	Details        string `json:"details"`
	ProgressBefore int    `json:"progress_before"`
	ProgressAfter  int    `json:"progress_after"`
	CreatedAt      string `json:"created_at"`
}

// GetOrderHistory возвращает журнал заказа.
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	orderID, err := orderIDFromURL(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	logs, err := h.service.GetOrderHistory(r.Context(), principal, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]historyEntryResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, historyEntryResponse{
			Action:         l.Action,
			Details:        l.Details,
			ProgressBefore: l.ProgressBefore,
			ProgressAfter:  l.ProgressAfter,
			CreatedAt:      l.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// PrepareOrderPayment возвращает намерение платежа по заказу текущего пользователя.
func (h *Handler) PrepareOrderPayment(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}

	orderID, err := orderIDFromURL(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	o, err := h.service.GetOrder(r.Context(), principal, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if o.Status != model.OrderStatusPending {
		http.Error(w, "order is not awaiting payment", http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, h.payments.PrepareIntent(o))
}

// callbackPayload собирает тело callback'а: redirect-провайдеры передают
// параметры в строке запроса, webhook-провайдеры — в теле POST.
func callbackPayload(r *http.Request) []byte {
	body, err := io.ReadAll(r.Body)
	if err == nil && len(body) > 0 {
		return body
	}
	return []byte(r.URL.RawQuery)
}

const paymentNotVerifiedMessage = "payment could not be verified, contact support"

// ConfirmPayment обрабатывает успешный callback платёжного провайдера.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	o, err := h.payments.Confirm(r.Context(), provider, callbackPayload(r))
	if err != nil {
		// Точная причина остаётся во внутреннем логе, пользователю
		// сообщается обобщённый результат.
		if errors.Is(err, apperr.ErrPaymentParse) || errors.Is(err, apperr.ErrAmountMismatch) {
			h.logger.Error("payment confirmation rejected",
				zap.String("provider", provider), zap.Error(err))
			http.Error(w, paymentNotVerifiedMessage, http.StatusUnprocessableEntity)
			return
		}
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type failureResponse struct {
	Message string `json:"message"`
}

// FailPayment обрабатывает callback о неуспешном платеже.
func (h *Handler) FailPayment(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	message, err := h.payments.Fail(r.Context(), provider, callbackPayload(r))
	if err != nil {
		if errors.Is(err, apperr.ErrPaymentParse) {
			h.logger.Error("payment failure callback rejected",
				zap.String("provider", provider), zap.Error(err))
			http.Error(w, paymentNotVerifiedMessage, http.StatusUnprocessableEntity)
			return
		}
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, failureResponse{Message: message})
}
