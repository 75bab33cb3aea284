// Package paystack предоставляет клиент платёжного шлюза Paystack.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/mmeshcher/driveright-academy/internal/metrics"
)

// DefaultBaseURL адрес публичного API Paystack.
const DefaultBaseURL = "https://api.paystack.co"

// Статусы транзакции, которые возвращает verify.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// ErrNotConfigured возвращается, если секретный ключ шлюза не задан.
var ErrNotConfigured = errors.New("payment gateway is not configured")

// APIError описывает неуспешный ответ шлюза.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: status %d: %s", e.StatusCode, e.Message)
}

// Temporary сообщает, имеет ли смысл повторить запрос.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client инкапсулирует HTTP-взаимодействие с Paystack.
type Client struct {
	baseURL    string
	secretKey  func() string
	httpClient *http.Client

	attempts uint
	delay    time.Duration
	maxDelay time.Duration
}

// NewClient создаёт клиент шлюза. Секретный ключ читается при каждом запросе,
// поэтому изменение настроек применяется без перезапуска.
func NewClient(baseURL string, secretKey func() string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		attempts: 3,
		delay:    300 * time.Millisecond,
		maxDelay: 3 * time.Second,
	}
}

// SetRetryPolicy меняет параметры повторных попыток при временных ошибках.
func (c *Client) SetRetryPolicy(attempts uint, delay, maxDelay time.Duration) {
	if attempts == 0 {
		attempts = 1
	}
	c.attempts = attempts
	c.delay = delay
	c.maxDelay = maxDelay
}

// Enabled сообщает, задан ли секретный ключ.
func (c *Client) Enabled() bool {
	return c != nil && c.key() != ""
}

func (c *Client) key() string {
	if c.secretKey == nil {
		return ""
	}
	return c.secretKey()
}

// InitializeRequest описывает параметры новой транзакции.
type InitializeRequest struct {
	Email       string         `json:"email"`
	AmountMinor int64          `json:"amount"`
	Currency    string         `json:"currency,omitempty"`
	Reference   string         `json:"reference,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Authorization описывает ответ на инициализацию транзакции.
type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Transaction описывает результат проверки транзакции.
type Transaction struct {
	ID        int64          `json:"id"`
	Status    string         `json:"status"`
	Reference string         `json:"reference"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	Channel   string         `json:"channel"`
	PaidAt    *time.Time     `json:"paid_at"`
	Metadata  map[string]any `json:"metadata"`
}

// Bank описывает банк из справочника Paystack.
type Bank struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeTransaction создаёт транзакцию и возвращает ссылку на страницу оплаты.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*Authorization, error) {
	var auth Authorization
	// повтор после обрыва связи мог бы создать транзакцию с тем же референсом дважды
	if err := c.call(ctx, "initialize", http.MethodPost, "/transaction/initialize", req, &auth, isRejected); err != nil {
		return nil, err
	}
	return &auth, nil
}

// VerifyTransaction запрашивает текущий статус транзакции по её референсу.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	var tx Transaction
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.call(ctx, "verify", http.MethodGet, path, nil, &tx, isRetryable); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListBanks возвращает список банков страны.
func (c *Client) ListBanks(ctx context.Context, country string) ([]Bank, error) {
	path := "/bank"
	if country != "" {
		path += "?country=" + url.QueryEscape(country)
	}
	var banks []Bank
	if err := c.call(ctx, "list_banks", http.MethodGet, path, nil, &banks, isRetryable); err != nil {
		return nil, err
	}
	return banks, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, body, out any, retryIf retry.RetryIfFunc) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}

	started := time.Now()
	err := retry.Do(
		func() error {
			return c.do(ctx, method, path, body, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(c.maxDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryIf),
	)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.GatewayRequestDuration.WithLabelValues(op, outcome).Observe(time.Since(started).Seconds())

	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var decodeErr *decodeError
	return !errors.As(err, &decodeErr)
}

// isRejected разрешает повтор только если шлюз явно отклонил запрос, не обработав его.
func isRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &decodeError{err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &decodeError{err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.key())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return &decodeError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &decodeError{err: err}
		}
	}

	return nil
}
