package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPaymentResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay-1", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payment_id":      "pay-1",
			"captured_amount": "10000",
			"method":          "card",
		})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Secret: "sk-test"})

	res, err := c.GetPaymentResult(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", res.PaymentID)
	assert.Equal(t, "card", res.Method)
	assert.True(t, decimal.RequireFromString("10000").Equal(res.CapturedAmount))
}

func TestGetPaymentResult_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})

	_, err := c.GetPaymentResult(context.Background(), "missing")
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestGetPaymentResult_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "upstream unavailable"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})

	_, err := c.GetPaymentResult(context.Background(), "pay-1")

	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusBadGateway, gerr.Status)
	assert.Equal(t, "upstream unavailable", gerr.Message)
}

func TestGetPaymentResult_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 10 * time.Millisecond})

	_, err := c.GetPaymentResult(context.Background(), "pay-1")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRefundPayment(t *testing.T) {
	var gotReason string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments/pay-1/refund", r.URL.Path)

		var body struct {
			Reason string `json:"reason"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotReason = body.Reason
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})

	err := c.RefundPayment(context.Background(), RefundRequest{
		PaymentID: "pay-1",
		Reason:    "purchase failed",
	})
	require.NoError(t, err)
	assert.Equal(t, "purchase failed", gotReason)
}

func TestRefundPayment_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})

	err := c.RefundPayment(context.Background(), RefundRequest{PaymentID: "missing"})
	require.ErrorIs(t, err, ErrPaymentNotFound)
}
