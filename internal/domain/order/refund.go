package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/edukit/commerce/internal/notify"
	"github.com/edukit/commerce/internal/payment"
)

// ErrInvalidRefundAmount is returned for non-positive refund amounts.
var ErrInvalidRefundAmount = errors.New("refund amount must be positive")

// Ledger records partial and full refunds against orders. The cumulative
// refunded amount per order never exceeds the order amount; the repository
// re-validates the cap under a row lock so concurrent refunds serialize.
type Ledger struct {
	orders   Repository
	refunds  RefundRepository
	gateway  payment.Gateway
	notifier notify.Notifier
	now      func() time.Time
}

// NewLedger creates a refund Ledger. notifier may be nil.
func NewLedger(
	orders Repository,
	refunds RefundRepository,
	gateway payment.Gateway,
	notifier notify.Notifier,
) *Ledger {
	return &Ledger{
		orders:   orders,
		refunds:  refunds,
		gateway:  gateway,
		notifier: notifier,
		now:      time.Now,
	}
}

// Refund returns part of an order's amount to the buyer. The gateway refund
// and the ledger row are one logical step: the gateway call runs inside the
// repository transaction after the cap check, and a write failure after a
// successful gateway refund surfaces as ErrRefundNotRecorded.
func (l *Ledger) Refund(ctx context.Context, orderID string, amount decimal.Decimal, reason string) (*Refund, error) {
	ctx, span := tracer.Start(ctx, "Refund")
	defer span.End()

	if !amount.IsPositive() {
		return nil, ErrInvalidRefundAmount
	}

	o, err := l.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve order")
	}

	// Quick unlocked pre-check; the repository repeats it under the row lock.
	existing, err := l.refunds.SumByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "sum refunds")
	}
	if existing.Add(amount).GreaterThan(o.Amount) {
		return nil, errors.Wrapf(ErrRefundExceedsOrder,
			"refunded %s of %s, requested %s", existing, o.Amount, amount)
	}

	r := &Refund{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		Amount:     amount,
		Reason:     reason,
		RefundedAt: l.now(),
	}

	err = l.refunds.Create(ctx, r, func(ctx context.Context) error {
		if o.PaymentID == "" {
			// Nothing was captured for the order; only the ledger row matters.
			return nil
		}
		return l.gateway.RefundPayment(ctx, payment.RefundRequest{
			PaymentID: o.PaymentID,
			Reason:    reason,
		})
	})
	if err != nil {
		return nil, err
	}

	l.notifyRefunded(ctx, o, r)
	return r, nil
}

func (l *Ledger) notifyRefunded(ctx context.Context, o *Order, r *Refund) {
	if l.notifier == nil {
		return
	}
	ev := notify.OrderEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Title:      o.Title,
		Amount:     r.Amount,
		OccurredAt: r.RefundedAt,
	}
	if err := l.notifier.OrderRefunded(ctx, ev); err != nil {
		zctx.From(ctx).Warn("order refund notification failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
