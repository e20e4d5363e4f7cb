package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/edukit/commerce/internal/domain/product"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrAmountMismatch is returned when the gateway's captured amount or the
	// computed payable amount differs from the requested amount.
	ErrAmountMismatch = errors.New("payment amount mismatch")
	// ErrRefundExceedsOrder is returned when a refund would push the
	// cumulative refunded amount past the order amount.
	ErrRefundExceedsOrder = errors.New("refund exceeds order amount")
	// ErrRefundNotRecorded is returned when the gateway refund succeeded but
	// the refund row could not be written. The funds are returned yet
	// unaccounted; this is fatal and resolved manually, never retried.
	ErrRefundNotRecorded = errors.New("gateway refund succeeded but refund row was not recorded")
)

// Order is the financial record of a purchase.
type Order struct {
	ID            string
	UserID        string
	ProductKind   product.Kind
	Title         string
	Description   string
	PaymentMethod string
	// PaymentID is the gateway's payment identifier; empty for free orders.
	PaymentID string
	Amount    decimal.Decimal
	PaidAt    *time.Time
}

// SubOrder pins the exact snapshot that was purchased, so later snapshots
// never retroactively affect what the buyer paid for.
type SubOrder struct {
	ID                string
	OrderID           string
	ProductSnapshotID string
}

// Enrollment grants the buyer access to the purchased course or ebook.
type Enrollment struct {
	ID       string
	UserID   string
	CourseID string
	EbookID  string
}

// TicketPayment links a consumed coupon ticket to the order it discounted.
type TicketPayment struct {
	ID       string
	TicketID string
	OrderID  string
}

// Refund is one entry in the order's refund ledger.
type Refund struct {
	ID         string
	OrderID    string
	Amount     decimal.Decimal
	Reason     string
	RefundedAt time.Time
}

// Purchase groups the rows created together for one successful purchase.
type Purchase struct {
	Order      *Order
	SubOrder   *SubOrder
	Enrollment *Enrollment
	// TicketPayment is nil when no coupon ticket was consumed.
	TicketPayment *TicketPayment
}

// Repository defines persistence operations for orders.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	// CreatePurchase inserts the order, sub-order, enrollment, and optional
	// ticket payment in one transaction; a failure rolls back all of them.
	CreatePurchase(ctx context.Context, p *Purchase) error
}

// RefundRepository defines the refund ledger's persistence operations.
type RefundRepository interface {
	// SumByOrder returns the total refunded amount recorded for the order.
	SumByOrder(ctx context.Context, orderID string) (decimal.Decimal, error)

	// Create records the refund inside one transaction that locks the order
	// row and re-validates the cumulative cap, so concurrent refunds for the
	// same order serialize. The capture callback (the gateway refund) runs
	// after the cap check while the lock is held; its error aborts the
	// transaction. A write failure after capture succeeded is returned
	// wrapping ErrRefundNotRecorded.
	Create(ctx context.Context, r *Refund, capture func(ctx context.Context) error) error
}
