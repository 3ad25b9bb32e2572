// Package payment отделяет заказы от деталей конкретного платёжного провайдера.
package payment

import (
	"time"

	"github.com/mmeshcher/smmpanel-system/internal/model"
)

// Intent описывает провайдеро-независимое намерение платежа до подтверждения.
type Intent struct {
	OrderID    int64  `json:"order_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	SuccessURL string `json:"success_url"`
	FailURL    string `json:"fail_url"`
}

// Confirmation описывает разобранный успешный callback в общем виде.
type Confirmation struct {
	OrderID    int64
	PaymentKey string
	Amount     int64
	Method     string
	ApprovedAt time.Time
}

// Failure описывает разобранный callback о неуспешном платеже.
type Failure struct {
	OrderID int64
	Code    string
}

// VATAmount возвращает НДС 10%, округлённый вниз до минимальной единицы валюты.
func VATAmount(total int64) int64 {
	return total / 10
}

// IntentAmount возвращает сумму к оплате: цена заказа плюс НДС.
func IntentAmount(o *model.Order) int64 {
	return o.TotalPrice + VATAmount(o.TotalPrice)
}
