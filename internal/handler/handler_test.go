package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/smmpanel-system/internal/apperr"
	"github.com/mmeshcher/smmpanel-system/internal/middleware"
	"github.com/mmeshcher/smmpanel-system/internal/model"
	"github.com/mmeshcher/smmpanel-system/internal/payment"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUser *model.User
	authErr  error

	servicesResp []model.Service
	servicesErr  error

	createOrderResp *model.Order
	createOrderErr  error

	orderResp *model.Order
	orderErr  error

	ordersResp []model.Order
	ordersErr  error

	cancelResp *model.Order
	cancelErr  error

	historyResp []model.ServiceLog
	historyErr  error

	advanceResp *model.Order
	advanceErr  error
}

func (s *stubService) RegisterUser(ctx context.Context, username, email, password string) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, username, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) ListServices(ctx context.Context) ([]model.Service, error) {
	return s.servicesResp, s.servicesErr
}

func (s *stubService) CreateOrder(ctx context.Context, principal model.Principal, serviceID, quantity int64, targetURL string) (*model.Order, error) {
	return s.createOrderResp, s.createOrderErr
}

func (s *stubService) GetOrder(ctx context.Context, principal model.Principal, orderID int64) (*model.Order, error) {
	return s.orderResp, s.orderErr
}

func (s *stubService) ListOrders(ctx context.Context, principal model.Principal) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) CancelOrder(ctx context.Context, principal model.Principal, orderID int64) (*model.Order, error) {
	return s.cancelResp, s.cancelErr
}

func (s *stubService) GetOrderHistory(ctx context.Context, principal model.Principal, orderID int64) ([]model.ServiceLog, error) {
	return s.historyResp, s.historyErr
}

func (s *stubService) AdvanceOrder(ctx context.Context, principal model.Principal, orderID int64, newStatus model.OrderStatus, newProgress int) (*model.Order, error) {
	return s.advanceResp, s.advanceErr
}

func (s *stubService) ListAllOrders(ctx context.Context, principal model.Principal) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) CreateService(ctx context.Context, principal model.Principal, svc *model.Service) (int64, error) {
	return 1, nil
}

func (s *stubService) UpdateService(ctx context.Context, principal model.Principal, svc *model.Service) error {
	return nil
}

func (s *stubService) SetUserRole(ctx context.Context, principal model.Principal, userID int64, role model.Role) error {
	return nil
}

func (s *stubService) DeactivateUser(ctx context.Context, principal model.Principal, userID int64) error {
	return nil
}

type stubPayments struct {
	intent *payment.Intent

	confirmResp *model.Order
	confirmErr  error

	failMessage string
	failErr     error
}

func (s *stubPayments) PrepareIntent(o *model.Order) *payment.Intent {
	return s.intent
}

func (s *stubPayments) Confirm(ctx context.Context, providerName string, payload []byte) (*model.Order, error) {
	return s.confirmResp, s.confirmErr
}

func (s *stubPayments) Fail(ctx context.Context, providerName string, payload []byte) (string, error) {
	return s.failMessage, s.failErr
}

func newTestHandler(t *testing.T, svc Service, payments Payments) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, payments, logger, auth)
}

func authorizedRequest(h *Handler, method, target string, body []byte, role model.Role) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+h.authMiddleware.IssueToken(1, role))
	return req
}

func TestRegister_ReturnsToken(t *testing.T) {
	svc := &stubService{registerUserID: 42}
	h := newTestHandler(t, svc, &stubPayments{})

	body, _ := json.Marshal(registerRequest{
		Username: "user",
		Email:    "user@example.com",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := h.authMiddleware.ParseToken(resp.Token); !ok {
		t.Fatalf("issued token must parse: %q", resp.Token)
	}
}

func TestRegister_ConflictOnDuplicate(t *testing.T) {
	svc := &stubService{registerErr: fmt.Errorf("%w: user exists", apperr.ErrConflict)}
	h := newTestHandler(t, svc, &stubPayments{})

	body, _ := json.Marshal(registerRequest{Username: "user", Email: "e@e", Password: "p"})
	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestLogin_UnauthorizedOnBadCredentials(t *testing.T) {
	svc := &stubService{authErr: fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)}
	h := newTestHandler(t, svc, &stubPayments{})

	body, _ := json.Marshal(loginRequest{Username: "user", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateOrder_ValidationError(t *testing.T) {
	svc := &stubService{createOrderErr: fmt.Errorf("%w: quantity outside range", apperr.ErrValidation)}
	h := newTestHandler(t, svc, &stubPayments{})
	router := h.SetupRouter()

	body, _ := json.Marshal(createOrderRequest{ServiceID: 1, Quantity: 5, TargetURL: "https://instagram.com/u"})
	req := authorizedRequest(h, http.MethodPost, "/api/orders", body, model.RoleUser)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestGetOrders_NoContent(t *testing.T) {
	svc := &stubService{ordersResp: []model.Order{}}
	h := newTestHandler(t, svc, &stubPayments{})
	router := h.SetupRouter()

	req := authorizedRequest(h, http.MethodGet, "/api/orders", nil, model.RoleUser)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func TestGetOrders_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubPayments{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestPrepareOrderPayment_ReturnsIntent(t *testing.T) {
	svc := &stubService{
		orderResp: &model.Order{ID: 7, UserID: 1, TotalPrice: 100000, Status: model.OrderStatusPending},
	}
	payments := &stubPayments{
		intent: &payment.Intent{OrderID: 7, Amount: 110000, Currency: "KRW"},
	}
	h := newTestHandler(t, svc, payments)
	router := h.SetupRouter()

	req := authorizedRequest(h, http.MethodPost, "/api/orders/7/payment", nil, model.RoleUser)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var intent payment.Intent
	if err := json.NewDecoder(res.Body).Decode(&intent); err != nil {
		t.Fatalf("decode intent: %v", err)
	}
	if intent.Amount != 110000 {
		t.Fatalf("amount = %d, want 110000", intent.Amount)
	}
}

func TestPrepareOrderPayment_ConflictWhenNotPending(t *testing.T) {
	svc := &stubService{
		orderResp: &model.Order{ID: 7, UserID: 1, Status: model.OrderStatusProcessing},
	}
	h := newTestHandler(t, svc, &stubPayments{})
	router := h.SetupRouter()

	req := authorizedRequest(h, http.MethodPost, "/api/orders/7/payment", nil, model.RoleUser)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestConfirmPayment_GenericMessageOnParseError(t *testing.T) {
	payments := &stubPayments{
		confirmErr: fmt.Errorf("%w: missing paymentKey", apperr.ErrPaymentParse),
	}
	h := newTestHandler(t, &stubService{}, payments)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/payments/tosspay/confirm", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}

	body := rec.Body.String()
	if !strings.Contains(body, paymentNotVerifiedMessage) {
		t.Fatalf("body must carry the generic message, got %q", body)
	}
	if strings.Contains(body, "paymentKey") {
		t.Fatalf("precise parse error must not leak to the user: %q", body)
	}
}

func TestConfirmPayment_Success(t *testing.T) {
	payments := &stubPayments{
		confirmResp: &model.Order{ID: 15, Status: model.OrderStatusProcessing},
	}
	h := newTestHandler(t, &stubService{}, payments)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/payments/tosspay/confirm",
		strings.NewReader(`{"paymentKey":"tk","orderId":"15","totalAmount":110000}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp orderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(model.OrderStatusProcessing) {
		t.Fatalf("status = %q, want processing", resp.Status)
	}
}

func TestFailPayment_ReturnsUserMessage(t *testing.T) {
	payments := &stubPayments{failMessage: "payment window was closed"}
	h := newTestHandler(t, &stubService{}, payments)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/payments/kakaopay/fail?partner_order_id=4&code=QUIT_PAYMENT", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp failureResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "payment window was closed" {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestAdminRoutes_ForbiddenForRegularUser(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubPayments{})
	router := h.SetupRouter()

	req := authorizedRequest(h, http.MethodGet, "/api/admin/orders", nil, model.RoleUser)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestAdvanceOrder_ConflictOnInvalidTransition(t *testing.T) {
	svc := &stubService{
		advanceErr: fmt.Errorf("%w: pending -> completed", apperr.ErrInvalidTransition),
	}
	h := newTestHandler(t, svc, &stubPayments{})
	router := h.SetupRouter()

	body, _ := json.Marshal(advanceOrderRequest{Status: "completed", Progress: 100})
	req := authorizedRequest(h, http.MethodPatch, "/api/admin/orders/5/status", body, model.RoleAdmin)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestGetOrderHistory_JSONResponse(t *testing.T) {
	svc := &stubService{
		orderResp: &model.Order{ID: 5, UserID: 1, Status: model.OrderStatusProcessing},
		historyResp: []model.ServiceLog{
			{OrderID: 5, Action: "order_created", ProgressBefore: 0, ProgressAfter: 0},
			{OrderID: 5, Action: "payment_confirmed", ProgressBefore: 0, ProgressAfter: 0},
		},
	}
	h := newTestHandler(t, svc, &stubPayments{})
	router := h.SetupRouter()

	req := authorizedRequest(h, http.MethodGet, "/api/orders/5/history", nil, model.RoleUser)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []historyEntryResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("entries = %d, want 2", len(resp))
	}
	if resp[0].Action != "order_created" || resp[1].Action != "payment_confirmed" {
		t.Fatalf("unexpected entries: %+v", resp)
	}
}
