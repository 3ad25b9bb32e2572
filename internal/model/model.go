// Package model содержит доменные сущности SMM-панели.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// MembershipLevel описывает уровень членства пользователя.
type MembershipLevel string

const (
	MembershipBasic  MembershipLevel = "basic"
	MembershipSilver MembershipLevel = "silver"
	MembershipGold   MembershipLevel = "gold"
	MembershipVIP    MembershipLevel = "vip"
)

// DiscountPercent возвращает процент скидки для уровня членства.
func DiscountPercent(level MembershipLevel) int64 {
	switch level {
	case MembershipSilver:
		return 3
	case MembershipGold:
		return 5
	case MembershipVIP:
		return 10
	default:
		return 0
	}
}

// User представляет зарегистрированного пользователя панели.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	Role         Role
	Points       int64
	Membership   MembershipLevel
	Active       bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Principal описывает проверенного субъекта запроса.
type Principal struct {
	UserID int64
	Role   Role
}

// IsAdmin сообщает, имеет ли субъект административные права.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Service описывает позицию каталога услуг.
type Service struct {
	ID          int64
	Platform    string
	Category    string
	Name        string
	RatePerK    int64 // цена за 1000 единиц в минимальных единицах валюты
	MinQuantity int64
	MaxQuantity int64
	Active      bool
	CreatedAt   time.Time
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
)

// IsTerminal сообщает, является ли статус конечным.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// CanTransition проверяет допустимость перехода заказа между статусами.
// Разрешённые рёбра: pending→processing, processing→completed,
// pending→failed и переход в cancelled из любого неконечного статуса.
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case OrderStatusProcessing:
		return from == OrderStatusPending
	case OrderStatusCompleted:
		return from == OrderStatusProcessing
	case OrderStatusCancelled:
		return true
	case OrderStatusFailed:
		return from == OrderStatusPending
	}
	return false
}

// Order описывает заказ пользователя на продвижение.
type Order struct {
	ID            int64
	UserID        int64
	ServiceID     int64
	TargetURL     string
	Quantity      int64
	OriginalPrice int64
	Discount      int64
	TotalPrice    int64
	Status        OrderStatus
	Progress      int
	PaymentKey    *string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Payment описывает подтверждённый платёж по заказу. Запись неизменяема.
type Payment struct {
	PaymentKey string
	OrderID    int64
	Method     string
	Amount     int64
	ApprovedAt time.Time
}

// ServiceLog описывает запись журнала изменений заказа.
type ServiceLog struct {
	ID             int64
	OrderID        int64
	Action         string
	Details        string
	ProgressBefore int
	ProgressAfter  int
	CreatedAt      time.Time
}
