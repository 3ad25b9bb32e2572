package payment

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/mmeshcher/smmpanel-system/internal/apperr"
)

// Parser разбирает callback конкретного провайдера в общий вид.
// У каждого провайдера собственные имена полей, поэтому на каждый провайдер
// приходится отдельная реализация.
type Parser interface {
	Name() string
	ParseConfirmation(payload []byte) (*Confirmation, error)
	ParseFailure(payload []byte) (*Failure, error)
}

// parsers содержит все поддерживаемые провайдеры.
var parsers = map[string]Parser{
	"tosspay":  tossParser{},
	"kakaopay": kakaoParser{},
}

// ParserFor возвращает парсер для указанного провайдера.
func ParserFor(provider string) (Parser, error) {
	p, ok := parsers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", apperr.ErrPaymentParse, provider)
	}
	return p, nil
}

// tossParser разбирает JSON-вебхуки в формате Toss Payments.
type tossParser struct{}

func (tossParser) Name() string { return "tosspay" }

type tossConfirmPayload struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	TotalAmount *int64 `json:"totalAmount"`
	Method      string `json:"method"`
	ApprovedAt  string `json:"approvedAt"`
}

func (tossParser) ParseConfirmation(payload []byte) (*Confirmation, error) {
	var p tossConfirmPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPaymentParse, err)
	}

	if p.PaymentKey == "" {
		return nil, fmt.Errorf("%w: missing paymentKey", apperr.ErrPaymentParse)
	}
	if p.OrderID == "" {
		return nil, fmt.Errorf("%w: missing orderId", apperr.ErrPaymentParse)
	}
	if p.TotalAmount == nil {
		return nil, fmt.Errorf("%w: missing totalAmount", apperr.ErrPaymentParse)
	}

	orderID, err := strconv.ParseInt(p.OrderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad orderId %q", apperr.ErrPaymentParse, p.OrderID)
	}

	approvedAt := time.Now()
	if p.ApprovedAt != "" {
		t, err := time.Parse(time.RFC3339, p.ApprovedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: bad approvedAt %q", apperr.ErrPaymentParse, p.ApprovedAt)
		}
		approvedAt = t
	}

	method := p.Method
	if method == "" {
		method = "tosspay"
	}

	return &Confirmation{
		OrderID:    orderID,
		PaymentKey: p.PaymentKey,
		Amount:     *p.TotalAmount,
		Method:     method,
		ApprovedAt: approvedAt,
	}, nil
}

type tossFailurePayload struct {
	Code    string `json:"code"`
	OrderID string `json:"orderId"`
}

func (tossParser) ParseFailure(payload []byte) (*Failure, error) {
	var p tossFailurePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPaymentParse, err)
	}

	if p.OrderID == "" {
		return nil, fmt.Errorf("%w: missing orderId", apperr.ErrPaymentParse)
	}

	orderID, err := strconv.ParseInt(p.OrderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad orderId %q", apperr.ErrPaymentParse, p.OrderID)
	}

	return &Failure{OrderID: orderID, Code: p.Code}, nil
}

// kakaoParser разбирает redirect-параметры в формате KakaoPay.
type kakaoParser struct{}

func (kakaoParser) Name() string { return "kakaopay" }

func (kakaoParser) ParseConfirmation(payload []byte) (*Confirmation, error) {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPaymentParse, err)
	}

	token := values.Get("pg_token")
	if token == "" {
		return nil, fmt.Errorf("%w: missing pg_token", apperr.ErrPaymentParse)
	}

	orderStr := values.Get("partner_order_id")
	if orderStr == "" {
		return nil, fmt.Errorf("%w: missing partner_order_id", apperr.ErrPaymentParse)
	}

	orderID, err := strconv.ParseInt(orderStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad partner_order_id %q", apperr.ErrPaymentParse, orderStr)
	}

	amountStr := values.Get("amount")
	if amountStr == "" {
		return nil, fmt.Errorf("%w: missing amount", apperr.ErrPaymentParse)
	}

	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", apperr.ErrPaymentParse, amountStr)
	}

	approvedAt := time.Now()
	if v := values.Get("approved_at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("%w: bad approved_at %q", apperr.ErrPaymentParse, v)
		}
		approvedAt = t
	}

	method := values.Get("payment_method_type")
	if method == "" {
		method = "kakaopay"
	}

	return &Confirmation{
		OrderID:    orderID,
		PaymentKey: token,
		Amount:     amount,
		Method:     method,
		ApprovedAt: approvedAt,
	}, nil
}

func (kakaoParser) ParseFailure(payload []byte) (*Failure, error) {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrPaymentParse, err)
	}

	orderStr := values.Get("partner_order_id")
	if orderStr == "" {
		return nil, fmt.Errorf("%w: missing partner_order_id", apperr.ErrPaymentParse)
	}

	orderID, err := strconv.ParseInt(orderStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad partner_order_id %q", apperr.ErrPaymentParse, orderStr)
	}

	return &Failure{OrderID: orderID, Code: values.Get("code")}, nil
}

// failureMessages сопоставляет коды ошибок провайдеров с сообщениями для пользователя.
var failureMessages = map[string]string{
	"PAY_PROCESS_CANCELED": "payment was cancelled before completion",
	"PAY_PROCESS_ABORTED":  "payment was aborted by the provider",
	"REJECT_CARD_COMPANY":  "payment was rejected by the card issuer",
	"EXCEED_MAX_AMOUNT":    "payment amount exceeds the allowed limit",
	"INVALID_CARD":         "card details could not be validated",
	"QUIT_PAYMENT":         "payment window was closed",
}

const genericFailureMessage = "payment could not be completed, please try again or contact support"

// FailureMessage возвращает сообщение для пользователя по коду ошибки провайдера.
func FailureMessage(code string) string {
	if msg, ok := failureMessages[code]; ok {
		return msg
	}
	return genericFailureMessage
}
