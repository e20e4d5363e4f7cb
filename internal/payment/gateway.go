// Package payment defines the external payment gateway collaborator: funds
// are captured by the gateway before a purchase reaches this service, so the
// core only verifies captured amounts and issues refunds.
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrPaymentNotFound is returned when the gateway does not know the
	// payment id.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrTimeout is returned when a gateway call exceeds its deadline. It is
	// treated as any other gateway failure by callers.
	ErrTimeout = errors.New("payment gateway timeout")
)

// GatewayError is a non-2xx gateway response that is not a missing payment.
type GatewayError struct {
	Status  int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway error (status %d): %s", e.Status, e.Message)
}

// Result is the gateway's record of a captured payment.
type Result struct {
	PaymentID      string
	CapturedAmount decimal.Decimal
	Method         string
}

// RefundRequest asks the gateway to return captured funds.
type RefundRequest struct {
	PaymentID string
	Reason    string
}

// Gateway is the minimal surface of the external payment provider the
// commerce core depends on.
type Gateway interface {
	// GetPaymentResult returns the captured amount for a payment id, or
	// ErrPaymentNotFound.
	GetPaymentResult(ctx context.Context, paymentID string) (*Result, error)
	// RefundPayment returns captured funds to the payer.
	RefundPayment(ctx context.Context, req RefundRequest) error
}
