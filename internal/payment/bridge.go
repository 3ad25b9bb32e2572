package payment

import (
	"context"
	"fmt"

	"github.com/mmeshcher/smmpanel-system/internal/apperr"
	"github.com/mmeshcher/smmpanel-system/internal/model"
)

// amountTolerance — допустимое расхождение подтверждённой суммы в минимальных
// единицах валюты.
const amountTolerance = 1

// Orders описывает операции над заказами, которые нужны платёжному мосту.
type Orders interface {
	LookupOrder(ctx context.Context, orderID int64) (*model.Order, error)
	ConfirmPayment(ctx context.Context, orderID int64, p *model.Payment) (*model.Order, error)
	Advance(ctx context.Context, orderID int64, newStatus model.OrderStatus, newProgress int, action, details string) (*model.Order, error)
	RecordLog(ctx context.Context, orderID int64, action, details string, progressBefore, progressAfter int) error
}

// Bridge сводит callback'и провайдеров к переходам статусов заказа.
type Bridge struct {
	orders     Orders
	provider   Provider
	currency   string
	successURL string
	failURL    string
}

// NewBridge создаёт платёжный мост поверх операций над заказами.
func NewBridge(orders Orders, provider Provider, currency, successURL, failURL string) *Bridge {
	return &Bridge{
		orders:     orders,
		provider:   provider,
		currency:   currency,
		successURL: successURL,
		failURL:    failURL,
	}
}

// PrepareIntent строит намерение платежа по заказу: цена плюс НДС.
func (b *Bridge) PrepareIntent(o *model.Order) *Intent {
	return &Intent{
		OrderID:    o.ID,
		Amount:     IntentAmount(o),
		Currency:   b.currency,
		SuccessURL: b.successURL,
		FailURL:    b.failURL,
	}
}

// Confirm обрабатывает успешный callback провайдера: разбирает поля, сверяет
// сумму, проверяет платёж у провайдера и одной операцией фиксирует ключ
// платежа с переводом заказа в processing. Повторная доставка с тем же ключом
// возвращает уже сохранённый заказ и не порождает новых записей журнала.
func (b *Bridge) Confirm(ctx context.Context, providerName string, payload []byte) (*model.Order, error) {
	parser, err := ParserFor(providerName)
	if err != nil {
		return nil, err
	}

	conf, err := parser.ParseConfirmation(payload)
	if err != nil {
		return nil, err
	}

	o, err := b.orders.LookupOrder(ctx, conf.OrderID)
	if err != nil {
		return nil, err
	}

	expected := IntentAmount(o)
	if diff := conf.Amount - expected; diff > amountTolerance || diff < -amountTolerance {
		return nil, fmt.Errorf("%w: confirmed %d, expected %d", apperr.ErrAmountMismatch, conf.Amount, expected)
	}

	verification, err := b.provider.VerifyPayment(ctx, conf.PaymentKey)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	if verification.Amount != 0 {
		if diff := verification.Amount - expected; diff > amountTolerance || diff < -amountTolerance {
			return nil, fmt.Errorf("%w: provider reports %d, expected %d", apperr.ErrAmountMismatch, verification.Amount, expected)
		}
	}

	return b.orders.ConfirmPayment(ctx, conf.OrderID, &model.Payment{
		PaymentKey: conf.PaymentKey,
		OrderID:    conf.OrderID,
		Method:     conf.Method,
		Amount:     conf.Amount,
		ApprovedAt: conf.ApprovedAt,
	})
}

// Fail обрабатывает callback о неуспешном платеже. Возвращает сообщение для
// пользователя по таблице кодов провайдера. Заказ в pending переводится в
// failed; заказ в конечном статусе не меняется, но запись журнала появляется
// в любом случае.
func (b *Bridge) Fail(ctx context.Context, providerName string, payload []byte) (string, error) {
	parser, err := ParserFor(providerName)
	if err != nil {
		return "", err
	}

	failure, err := parser.ParseFailure(payload)
	if err != nil {
		return "", err
	}

	message := FailureMessage(failure.Code)

	o, err := b.orders.LookupOrder(ctx, failure.OrderID)
	if err != nil {
		return "", err
	}

	details := fmt.Sprintf("provider %s reported %q: %s", providerName, failure.Code, message)

	if o.Status == model.OrderStatusPending {
		if _, err := b.orders.Advance(ctx, failure.OrderID, model.OrderStatusFailed, o.Progress,
			"payment_failed", details); err != nil {
			return "", err
		}
		return message, nil
	}

	if err := b.orders.RecordLog(ctx, failure.OrderID, "payment_failed", details, o.Progress, o.Progress); err != nil {
		return "", err
	}

	return message, nil
}
