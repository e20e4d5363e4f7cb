// Package notify delivers order lifecycle events to interested channels.
// Delivery mechanics are opaque to the commerce core: notifications are
// fire-and-forget and never fail a purchase or a refund.
package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderEvent describes an order transition for notification channels.
type OrderEvent struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Notifier publishes order lifecycle events.
type Notifier interface {
	OrderCompleted(ctx context.Context, ev OrderEvent) error
	OrderRefunded(ctx context.Context, ev OrderEvent) error
}

var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes order events to the log. It is the default channel when
// no message broker is configured.
type LogNotifier struct {
	lg *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(lg *zap.Logger) *LogNotifier {
	return &LogNotifier{lg: lg}
}

func (n *LogNotifier) OrderCompleted(_ context.Context, ev OrderEvent) error {
	n.lg.Info("order completed",
		zap.String("order_id", ev.OrderID),
		zap.String("user_id", ev.UserID),
		zap.String("amount", ev.Amount.String()),
	)
	return nil
}

func (n *LogNotifier) OrderRefunded(_ context.Context, ev OrderEvent) error {
	n.lg.Info("order refunded",
		zap.String("order_id", ev.OrderID),
		zap.String("user_id", ev.UserID),
		zap.String("amount", ev.Amount.String()),
	)
	return nil
}
