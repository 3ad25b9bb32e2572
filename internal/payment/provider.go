package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Verification описывает ответ провайдера на запрос проверки платежа.
type Verification struct {
	PaymentKey string `json:"paymentKey"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
}

// Provider проверяет платёж на стороне провайдера по ключу платежа.
// Реализация выбирается конфигурацией, без фолбэков во время работы.
type Provider interface {
	VerifyPayment(ctx context.Context, paymentKey string) (*Verification, error)
}

// HTTPProvider обращается к API платёжного провайдера. Временные сетевые сбои
// повторяются с экспоненциальной задержкой, не более трёх попыток; общий
// бюджет одного запроса — 10 секунд.
type HTTPProvider struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewHTTPProvider создаёт клиент платёжного провайдера по указанному адресу.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// VerifyPayment запрашивает у провайдера состояние платежа по ключу.
func (p *HTTPProvider) VerifyPayment(ctx context.Context, paymentKey string) (*Verification, error) {
	base := p.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := fmt.Sprintf("%s/v1/payments/%s", base, paymentKey)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("payment %s not found at provider", paymentKey)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Verification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

// FakeProvider одобряет любой ключ платежа. Используется в локальной среде
// и тестах, когда адрес провайдера не задан.
type FakeProvider struct{}

// VerifyPayment подтверждает платёж, не выполняя сетевых вызовов.
func (FakeProvider) VerifyPayment(_ context.Context, paymentKey string) (*Verification, error) {
	return &Verification{PaymentKey: paymentKey, Status: "DONE"}, nil
}
