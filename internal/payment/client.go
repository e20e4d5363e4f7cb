package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 10 * time.Second

var _ Gateway = (*Client)(nil)

// ClientConfig configures the HTTP gateway client.
type ClientConfig struct {
	BaseURL string
	Secret  string
	// Timeout bounds every gateway call. Zero means the default of 10s.
	Timeout time.Duration
}

// Client implements Gateway against the provider's HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secret     string
}

// NewClient creates a gateway client with a bounded per-call timeout.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		secret:     cfg.Secret,
	}
}

// GetPaymentResult fetches the captured amount for the given payment id.
func (c *Client) GetPaymentResult(ctx context.Context, paymentID string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, url.PathEscape(paymentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPaymentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newGatewayError(resp)
	}

	var body struct {
		PaymentID      string          `json:"payment_id"`
		CapturedAmount decimal.Decimal `json:"captured_amount"`
		Method         string          `json:"method"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode payment result")
	}

	return &Result{
		PaymentID:      body.PaymentID,
		CapturedAmount: body.CapturedAmount,
		Method:         body.Method,
	}, nil
}

// RefundPayment asks the gateway to return the captured funds.
func (c *Client) RefundPayment(ctx context.Context, r RefundRequest) error {
	endpoint := fmt.Sprintf("%s/v1/payments/%s/refund", c.baseURL, url.PathEscape(r.PaymentID))

	payload, err := json.Marshal(map[string]string{"reason": r.Reason})
	if err != nil {
		return errors.Wrap(err, "marshal refund request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrPaymentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newGatewayError(resp)
	}
	return nil
}

// mapTransportError folds client-side timeouts into ErrTimeout so callers
// can treat them like any other gateway failure.
func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	return errors.Wrap(err, "gateway request")
}

func newGatewayError(resp *http.Response) error {
	msg := resp.Status
	// The gateway reports errors as {"message": "..."}; fall back to the
	// HTTP status line when the body is not in that shape.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var body struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Message != "" {
			msg = body.Message
		}
	}
	return &GatewayError{Status: resp.StatusCode, Message: msg}
}
