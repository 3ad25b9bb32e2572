// Package service реализует бизнес-логику SMM-панели.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/mmeshcher/smmpanel-system/internal/apperr"
	"github.com/mmeshcher/smmpanel-system/internal/model"
	"github.com/mmeshcher/smmpanel-system/internal/supplier"
	"github.com/mmeshcher/smmpanel-system/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, username, email string, passwordHash []byte) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id int64) error
	SetUserRole(ctx context.Context, id int64, role model.Role) error
	DeactivateUser(ctx context.Context, id int64) error
	ListServices(ctx context.Context) ([]model.Service, error)
	GetService(ctx context.Context, id int64) (*model.Service, error)
	CreateService(ctx context.Context, s *model.Service) (int64, error)
	UpdateService(ctx context.Context, s *model.Service) error
	CreateOrder(ctx context.Context, o *model.Order) (int64, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	ListOrdersForFulfillment(ctx context.Context, limit int) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, newStatus model.OrderStatus, newProgress int, action, details string) (*model.Order, error)
	UpdateOrderProgress(ctx context.Context, orderID int64, progress int, details string) (*model.Order, error)
	SetPaymentKey(ctx context.Context, orderID int64, p *model.Payment) (*model.Order, bool, error)
	GetPayment(ctx context.Context, paymentKey string) (*model.Payment, error)
	AppendLog(ctx context.Context, orderID int64, action, details string, progressBefore, progressAfter int) error
	GetLogsByOrder(ctx context.Context, orderID int64) ([]model.ServiceLog, error)
}

// Service содержит бизнес-логику SMM-панели.
type Service struct {
	repo           Repository
	supplierClient *supplier.Client

	// Сериализация записей по одному заказу внутри процесса. Между процессами
	// ту же роль играет блокировка строки FOR UPDATE в репозитории. Запись
	// удаляется, когда последний держатель отпускает блокировку.
	mu         sync.Mutex
	orderLocks map[int64]*orderLock
}

type orderLock struct {
	sync.Mutex
	refs int
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом поставщика.
func NewService(repo Repository, supplierClient *supplier.Client) *Service {
	return &Service{
		repo:           repo,
		supplierClient: supplierClient,
		orderLocks:     make(map[int64]*orderLock),
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) lockOrder(orderID int64) func() {
	s.mu.Lock()
	l, ok := s.orderLocks[orderID]
	if !ok {
		l = &orderLock{}
		s.orderLocks[orderID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.orderLocks, orderID)
		}
		s.mu.Unlock()
	}
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, username, email, password string) (int64, error) {
	if username == "" || email == "" || password == "" {
		return 0, fmt.Errorf("%w: username, email and password are required", apperr.ErrValidation)
	}

	hashed := hashPassword(username, password)
	return s.repo.CreateUser(ctx, username, email, hashed)
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его.
func (s *Service) AuthenticateUser(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if !u.Active {
		return nil, fmt.Errorf("%w: account deactivated", apperr.ErrForbidden)
	}

	hashed := hashPassword(username, password)
	if subtle.ConstantTimeCompare(hashed, u.PasswordHash) != 1 {
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)
	}

	if err := s.repo.UpdateLastLogin(ctx, u.ID); err != nil {
		return nil, err
	}

	return u, nil
}

func hashPassword(username, password string) []byte {
	sum := sha256.Sum256([]byte(username + ":" + password))
	return sum[:]
}

// ListServices возвращает активные позиции каталога.
func (s *Service) ListServices(ctx context.Context) ([]model.Service, error) {
	return s.repo.ListServices(ctx)
}

// CreateService добавляет позицию каталога. Доступно только администратору.
func (s *Service) CreateService(ctx context.Context, principal model.Principal, svc *model.Service) (int64, error) {
	if !principal.IsAdmin() {
		return 0, fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
	}
	if svc.MinQuantity <= 0 || svc.MaxQuantity < svc.MinQuantity {
		return 0, fmt.Errorf("%w: invalid quantity range", apperr.ErrValidation)
	}
	if svc.RatePerK <= 0 {
		return 0, fmt.Errorf("%w: rate must be positive", apperr.ErrValidation)
	}
	return s.repo.CreateService(ctx, svc)
}

// UpdateService обновляет позицию каталога. Доступно только администратору.
func (s *Service) UpdateService(ctx context.Context, principal model.Principal, svc *model.Service) error {
	if !principal.IsAdmin() {
		return fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
	}
	if svc.MinQuantity <= 0 || svc.MaxQuantity < svc.MinQuantity {
		return fmt.Errorf("%w: invalid quantity range", apperr.ErrValidation)
	}
	return s.repo.UpdateService(ctx, svc)
}

// SetUserRole изменяет роль пользователя. Доступно только администратору.
func (s *Service) SetUserRole(ctx context.Context, principal model.Principal, userID int64, role model.Role) error {
	if !principal.IsAdmin() {
		return fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, role)
	}
	return s.repo.SetUserRole(ctx, userID, role)
}

// DeactivateUser выполняет мягкое отключение пользователя. Доступно только администратору.
func (s *Service) DeactivateUser(ctx context.Context, principal model.Principal, userID int64) error {
	if !principal.IsAdmin() {
		return fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
	}
	return s.repo.DeactivateUser(ctx, userID)
}

// CreateOrder создаёт заказ в статусе pending после проверки количества и ссылки.
// Итоговая цена учитывает скидку уровня членства пользователя.
func (s *Service) CreateOrder(ctx context.Context, principal model.Principal, serviceID, quantity int64, targetURL string) (*model.Order, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	if !svc.Active {
		return nil, fmt.Errorf("%w: service %d is not available", apperr.ErrValidation, serviceID)
	}

	if !validation.IsValidQuantity(svc, quantity) {
		return nil, fmt.Errorf("%w: quantity %d outside [%d, %d]",
			apperr.ErrValidation, quantity, svc.MinQuantity, svc.MaxQuantity)
	}

	if !validation.IsValidTargetURL(svc.Platform, targetURL) {
		return nil, fmt.Errorf("%w: target url does not match platform %s", apperr.ErrValidation, svc.Platform)
	}

	u, err := s.repo.GetUserByID(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	original := svc.RatePerK * quantity / 1000
	discount := original * model.DiscountPercent(u.Membership) / 100

	o := &model.Order{
		UserID:        principal.UserID,
		ServiceID:     serviceID,
		TargetURL:     targetURL,
		Quantity:      quantity,
		OriginalPrice: original,
		Discount:      discount,
		TotalPrice:    original - discount,
		Status:        model.OrderStatusPending,
	}

	id, err := s.repo.CreateOrder(ctx, o)
	if err != nil {
		return nil, err
	}

	o.ID = id
	return o, nil
}

// GetOrder возвращает заказ, если он принадлежит субъекту или субъект — администратор.
func (s *Service) GetOrder(ctx context.Context, principal model.Principal, orderID int64) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.UserID != principal.UserID && !principal.IsAdmin() {
		return nil, fmt.Errorf("%w: order %d belongs to another user", apperr.ErrForbidden, orderID)
	}

	return o, nil
}

// ListOrders возвращает заказы субъекта; администратор видит все заказы.
func (s *Service) ListOrders(ctx context.Context, principal model.Principal) ([]model.Order, error) {
	if principal.IsAdmin() {
		return s.repo.ListOrders(ctx)
	}
	return s.repo.GetOrdersByUser(ctx, principal.UserID)
}

// CancelOrder отменяет заказ субъекта. Заказ в конечном статусе отменить нельзя.
func (s *Service) CancelOrder(ctx context.Context, principal model.Principal, orderID int64) (*model.Order, error) {
	if _, err := s.GetOrder(ctx, principal, orderID); err != nil {
		return nil, err
	}

	unlock := s.lockOrder(orderID)
	defer unlock()

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return s.repo.UpdateOrderStatus(ctx, orderID, model.OrderStatusCancelled, o.Progress,
		"order_cancelled", "order cancelled by user")
}

// ConfirmPayment фиксирует платёж и переводит заказ в processing, не отпуская
// блокировку заказа между этими шагами: отмена, пришедшая во время
// подтверждения, дождётся его завершения и будет применена уже к заказу в
// processing. Повтор с тем же ключом возвращает заказ без изменений; другой
// ключ при уже оплаченном заказе отклоняется с конфликтом.
func (s *Service) ConfirmPayment(ctx context.Context, orderID int64, p *model.Payment) (*model.Order, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	o, already, err := s.repo.SetPaymentKey(ctx, orderID, p)
	if err != nil {
		return nil, err
	}
	if already {
		return o, nil
	}

	return s.repo.UpdateOrderStatus(ctx, orderID, model.OrderStatusProcessing, 0,
		"processing_started", fmt.Sprintf("payment %s confirmed, fulfillment started", p.PaymentKey))
}

// Advance выполняет переход заказа в новый статус под блокировкой заказа.
func (s *Service) Advance(ctx context.Context, orderID int64, newStatus model.OrderStatus, newProgress int, action, details string) (*model.Order, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	return s.repo.UpdateOrderStatus(ctx, orderID, newStatus, newProgress, action, details)
}

// UpdateProgress обновляет прогресс заказа в работе под блокировкой заказа.
func (s *Service) UpdateProgress(ctx context.Context, orderID int64, progress int, details string) (*model.Order, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	return s.repo.UpdateOrderProgress(ctx, orderID, progress, details)
}

// LookupOrder возвращает заказ без проверки владельца. Используется внутренними
// потребителями: платёжным мостом и фоновым обработчиком.
func (s *Service) LookupOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// RecordLog добавляет запись журнала заказа вне переходов статуса.
func (s *Service) RecordLog(ctx context.Context, orderID int64, action, details string, progressBefore, progressAfter int) error {
	return s.repo.AppendLog(ctx, orderID, action, details, progressBefore, progressAfter)
}

// AdvanceOrder выполняет административный переход заказа.
func (s *Service) AdvanceOrder(ctx context.Context, principal model.Principal, orderID int64, newStatus model.OrderStatus, newProgress int) (*model.Order, error) {
	if !principal.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
	}

	return s.Advance(ctx, orderID, newStatus, newProgress,
		"status_changed", fmt.Sprintf("status set to %s by admin %d", newStatus, principal.UserID))
}

// ListAllOrders возвращает все заказы. Доступно только администратору.
func (s *Service) ListAllOrders(ctx context.Context, principal model.Principal) ([]model.Order, error) {
	if !principal.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
	}
	return s.repo.ListOrders(ctx)
}

// GetOrderHistory возвращает журнал заказа в порядке возрастания времени.
func (s *Service) GetOrderHistory(ctx context.Context, principal model.Principal, orderID int64) ([]model.ServiceLog, error) {
	if _, err := s.GetOrder(ctx, principal, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetLogsByOrder(ctx, orderID)
}

// StartFulfillmentUpdates запускает фоновый процесс синхронизации прогресса
// заказов с вышестоящим поставщиком.
func (s *Service) StartFulfillmentUpdates(ctx context.Context) {
	if s.supplierClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processFulfillmentBatch(ctx)
			}
		}
	}()
}

func (s *Service) processFulfillmentBatch(ctx context.Context) {
	orders, err := s.repo.ListOrdersForFulfillment(ctx, 100)
	if err != nil {
		return
	}

	for _, o := range orders {
		state, statusCode, retryAfter, err := s.supplierClient.GetOrderState(ctx, o.ID)
		if err != nil {
			continue
		}

		if statusCode == 429 {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if state == nil {
			continue
		}

		switch state.Status {
		case supplier.StateInProgress, supplier.StatePartial:
			_, _ = s.UpdateProgress(ctx, o.ID, state.Progress, "progress reported by supplier")
		case supplier.StateCompleted:
			_, _ = s.Advance(ctx, o.ID, model.OrderStatusCompleted, 100,
				"order_completed", "fulfillment completed by supplier")
		case supplier.StateCanceled:
			_, _ = s.Advance(ctx, o.ID, model.OrderStatusCancelled, o.Progress,
				"order_cancelled", "fulfillment cancelled by supplier")
		}
	}
}
