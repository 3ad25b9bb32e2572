package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mmeshcher/smmpanel-system/internal/apperr"
	"github.com/mmeshcher/smmpanel-system/internal/model"
)

// memOrders воспроизводит семантику сервиса по одному заказу: атомарное
// подтверждение платежа с переходом в processing и таблицу переходов.
type memOrders struct {
	order *model.Order

	confirmedLogs int
	failedLogs    int
	extraLogs     int
}

func (m *memOrders) LookupOrder(_ context.Context, orderID int64) (*model.Order, error) {
	if m.order == nil || m.order.ID != orderID {
		return nil, fmt.Errorf("%w: order %d", apperr.ErrNotFound, orderID)
	}
	o := *m.order
	return &o, nil
}

func (m *memOrders) ConfirmPayment(_ context.Context, orderID int64, p *model.Payment) (*model.Order, error) {
	if m.order == nil || m.order.ID != orderID {
		return nil, fmt.Errorf("%w: order %d", apperr.ErrNotFound, orderID)
	}

	if m.order.PaymentKey != nil {
		if *m.order.PaymentKey == p.PaymentKey {
			o := *m.order
			return &o, nil
		}
		return nil, fmt.Errorf("%w: already paid with another key", apperr.ErrConflict)
	}

	if m.order.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order is %s", apperr.ErrTerminalState, m.order.Status)
	}
	if m.order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: payment in status %s", apperr.ErrInvalidTransition, m.order.Status)
	}

	key := p.PaymentKey
	m.order.PaymentKey = &key
	m.order.Status = model.OrderStatusProcessing
	m.confirmedLogs++

	o := *m.order
	return &o, nil
}

func (m *memOrders) Advance(_ context.Context, orderID int64, newStatus model.OrderStatus, newProgress int, action, details string) (*model.Order, error) {
	if m.order == nil || m.order.ID != orderID {
		return nil, fmt.Errorf("%w: order %d", apperr.ErrNotFound, orderID)
	}

	if m.order.Status == newStatus {
		o := *m.order
		return &o, nil
	}
	if m.order.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: order is %s", apperr.ErrTerminalState, m.order.Status)
	}
	if !model.CanTransition(m.order.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, m.order.Status, newStatus)
	}

	m.order.Status = newStatus
	m.order.Progress = newProgress
	if action == "payment_failed" {
		m.failedLogs++
	}

	o := *m.order
	return &o, nil
}

func (m *memOrders) RecordLog(_ context.Context, orderID int64, action, details string, progressBefore, progressAfter int) error {
	if m.order == nil || m.order.ID != orderID {
		return fmt.Errorf("%w: order %d", apperr.ErrNotFound, orderID)
	}
	if action == "payment_failed" {
		m.failedLogs++
	} else {
		m.extraLogs++
	}
	return nil
}

func pendingOrder(id, total int64) *model.Order {
	return &model.Order{
		ID:         id,
		UserID:     1,
		TotalPrice: total,
		Status:     model.OrderStatusPending,
	}
}

func newTestBridge(orders Orders) *Bridge {
	return NewBridge(orders, FakeProvider{}, "KRW", "/payments/success", "/payments/fail")
}

func TestPrepareIntent_AddsVAT(t *testing.T) {
	b := newTestBridge(&memOrders{})

	intent := b.PrepareIntent(pendingOrder(1, 100000))

	if intent.Amount != 110000 {
		t.Fatalf("amount = %d, want 110000", intent.Amount)
	}
	if intent.Currency != "KRW" {
		t.Fatalf("currency = %q, want KRW", intent.Currency)
	}
	if intent.OrderID != 1 {
		t.Fatalf("orderID = %d, want 1", intent.OrderID)
	}
}

func tossPayload(orderID int64, amount int64, key string) []byte {
	return []byte(fmt.Sprintf(`{"paymentKey": %q, "orderId": "%d", "totalAmount": %d, "method": "card"}`, key, orderID, amount))
}

func TestConfirm_RoundTrip(t *testing.T) {
	orders := &memOrders{order: pendingOrder(15, 100000)}
	b := newTestBridge(orders)

	o, err := b.Confirm(context.Background(), "tosspay", tossPayload(15, 110000, "tk_1"))
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}

	if o.Status != model.OrderStatusProcessing {
		t.Fatalf("status = %s, want processing", o.Status)
	}
	if o.PaymentKey == nil || *o.PaymentKey != "tk_1" {
		t.Fatalf("paymentKey = %v, want tk_1", o.PaymentKey)
	}
	if orders.confirmedLogs != 1 {
		t.Fatalf("payment_confirmed entries = %d, want 1", orders.confirmedLogs)
	}
}

func TestConfirm_AmountMismatch(t *testing.T) {
	orders := &memOrders{order: pendingOrder(15, 100000)}
	b := newTestBridge(orders)

	_, err := b.Confirm(context.Background(), "tosspay", tossPayload(15, 105000, "tk_1"))
	if !errors.Is(err, apperr.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	if orders.order.PaymentKey != nil {
		t.Fatalf("payment key must not be set on mismatch")
	}
}

func TestConfirm_ToleratesOneUnit(t *testing.T) {
	orders := &memOrders{order: pendingOrder(15, 100000)}
	b := newTestBridge(orders)

	if _, err := b.Confirm(context.Background(), "tosspay", tossPayload(15, 110001, "tk_1")); err != nil {
		t.Fatalf("one-unit difference must be tolerated, got %v", err)
	}
}

func TestConfirm_Idempotent(t *testing.T) {
	orders := &memOrders{order: pendingOrder(15, 100000)}
	b := newTestBridge(orders)

	payload := tossPayload(15, 110000, "tk_1")

	first, err := b.Confirm(context.Background(), "tosspay", payload)
	if err != nil {
		t.Fatalf("first Confirm error: %v", err)
	}

	second, err := b.Confirm(context.Background(), "tosspay", payload)
	if err != nil {
		t.Fatalf("second Confirm error: %v", err)
	}

	if first.Status != second.Status {
		t.Fatalf("statuses differ: %s vs %s", first.Status, second.Status)
	}
	if orders.confirmedLogs != 1 {
		t.Fatalf("payment_confirmed entries = %d, want exactly 1", orders.confirmedLogs)
	}
}

func TestConfirm_DifferentKeyRejected(t *testing.T) {
	orders := &memOrders{order: pendingOrder(15, 100000)}
	b := newTestBridge(orders)

	if _, err := b.Confirm(context.Background(), "tosspay", tossPayload(15, 110000, "tk_1")); err != nil {
		t.Fatalf("first Confirm error: %v", err)
	}

	_, err := b.Confirm(context.Background(), "tosspay", tossPayload(15, 110000, "tk_2"))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict for another key, got %v", err)
	}
}

func TestConfirm_UnknownOrder(t *testing.T) {
	b := newTestBridge(&memOrders{})

	_, err := b.Confirm(context.Background(), "tosspay", tossPayload(99, 110, "tk_1"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFail_PendingOrderGoesFailed(t *testing.T) {
	orders := &memOrders{order: pendingOrder(3, 50000)}
	b := newTestBridge(orders)

	msg, err := b.Fail(context.Background(), "tosspay", []byte(`{"code": "PAY_PROCESS_CANCELED", "orderId": "3"}`))
	if err != nil {
		t.Fatalf("Fail error: %v", err)
	}

	if msg != "payment was cancelled before completion" {
		t.Fatalf("message = %q", msg)
	}
	if orders.order.Status != model.OrderStatusFailed {
		t.Fatalf("status = %s, want failed", orders.order.Status)
	}
	if orders.failedLogs != 1 {
		t.Fatalf("payment_failed entries = %d, want 1", orders.failedLogs)
	}
}

func TestFail_TerminalOrderKeepsStatus(t *testing.T) {
	order := pendingOrder(3, 50000)
	order.Status = model.OrderStatusCompleted
	orders := &memOrders{order: order}
	b := newTestBridge(orders)

	msg, err := b.Fail(context.Background(), "tosspay", []byte(`{"code": "WHO_KNOWS", "orderId": "3"}`))
	if err != nil {
		t.Fatalf("Fail error: %v", err)
	}

	if msg != genericFailureMessage {
		t.Fatalf("unmapped code must produce generic message, got %q", msg)
	}
	if orders.order.Status != model.OrderStatusCompleted {
		t.Fatalf("terminal status must not change, got %s", orders.order.Status)
	}
	if orders.failedLogs != 1 {
		t.Fatalf("payment_failed entries = %d, want 1", orders.failedLogs)
	}
}
