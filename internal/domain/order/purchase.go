package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/edukit/commerce/internal/domain/coupon"
	"github.com/edukit/commerce/internal/domain/product"
	"github.com/edukit/commerce/internal/domain/user"
	"github.com/edukit/commerce/internal/notify"
	"github.com/edukit/commerce/internal/payment"
	"github.com/edukit/commerce/pkg/saga"
)

// refundReasonSystem is the fixed reason attached to compensating refunds.
const refundReasonSystem = "system error during purchase"

var tracer = otel.Tracer("commerce/order")

// PurchaseInput is a validated purchase request. PaymentID is empty when no
// funds were captured (free orders); when set, the gateway captured the funds
// before this call and every failure below is compensated with a refund.
type PurchaseInput struct {
	UserID        string
	ProductID     string
	PaymentID     string
	PaymentMethod string
	// Amount is what the buyer was charged. It must match both the gateway's
	// captured amount and the price computed from the current snapshot (and
	// coupon ticket, when one is consumed).
	Amount decimal.Decimal
	// CouponTicketID optionally consumes a previously issued ticket.
	CouponTicketID string
}

// PurchaseService coordinates the payment gateway with local transactional
// writes. Gateway calls happen outside the DB transaction; the transaction
// itself only covers the order/sub-order/enrollment inserts.
type PurchaseService struct {
	products product.Repository
	users    user.Repository
	coupons  coupon.Repository
	orders   Repository
	gateway  payment.Gateway
	notifier notify.Notifier
	now      func() time.Time
}

// NewPurchaseService creates a PurchaseService with its collaborators.
// notifier may be nil.
func NewPurchaseService(
	products product.Repository,
	users user.Repository,
	coupons coupon.Repository,
	orders Repository,
	gateway payment.Gateway,
	notifier notify.Notifier,
) *PurchaseService {
	return &PurchaseService{
		products: products,
		users:    users,
		coupons:  coupons,
		orders:   orders,
		gateway:  gateway,
		notifier: notifier,
		now:      time.Now,
	}
}

// Purchase runs the order purchase saga: verify the captured payment, resolve
// the current snapshot and price, write all purchase rows atomically. When
// PaymentID is set, the capture is registered as an already-completed saga
// step whose compensation refunds the gateway, so any downstream failure
// returns the money before the original error is re-raised.
func (s *PurchaseService) Purchase(ctx context.Context, in PurchaseInput) (*Purchase, error) {
	ctx, span := tracer.Start(ctx, "Purchase")
	defer span.End()

	var result *Purchase

	sg := saga.New()
	if in.PaymentID != "" {
		sg.Completed(saga.Step{
			Name: "capture",
			Compensate: func(ctx context.Context) error {
				return s.gateway.RefundPayment(ctx, payment.RefundRequest{
					PaymentID: in.PaymentID,
					Reason:    refundReasonSystem,
				})
			},
		})
	}
	sg.Then(saga.Step{
		Name: "verify-payment",
		Run: func(ctx context.Context) error {
			return s.verifyPayment(ctx, in)
		},
	})
	sg.Then(saga.Step{
		Name: "persist",
		Run: func(ctx context.Context) error {
			p, err := s.persist(ctx, in)
			if err != nil {
				return err
			}
			result = p
			return nil
		},
	})

	if err := sg.Execute(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.notifyCompleted(ctx, result)
	return result, nil
}

// verifyPayment checks that the gateway's captured amount equals the
// requested amount. Free orders (no payment id) must request a zero amount.
func (s *PurchaseService) verifyPayment(ctx context.Context, in PurchaseInput) error {
	if in.PaymentID == "" {
		if !in.Amount.IsZero() {
			return errors.Wrap(ErrAmountMismatch, "no payment captured for a non-zero amount")
		}
		return nil
	}

	res, err := s.gateway.GetPaymentResult(ctx, in.PaymentID)
	if err != nil {
		return errors.Wrap(err, "get payment result")
	}
	if !res.CapturedAmount.Equal(in.Amount) {
		return errors.Wrapf(ErrAmountMismatch,
			"captured %s, requested %s", res.CapturedAmount, in.Amount)
	}
	return nil
}

// persist resolves the purchase target, validates pricing, and writes the
// order, sub-order, enrollment, and optional ticket payment in one DB
// transaction.
func (s *PurchaseService) persist(ctx context.Context, in PurchaseInput) (*Purchase, error) {
	usr, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve user")
	}

	prod, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve product")
	}

	snap, err := s.products.CurrentSnapshot(ctx, prod.ID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve snapshot")
	}

	now := s.now()

	payable, err := product.EffectivePrice(snap.Pricing, snap.Discount, now)
	if err != nil {
		return nil, errors.Wrap(err, "compute effective price")
	}

	var ticket *coupon.Ticket
	if in.CouponTicketID != "" {
		ticket, payable, err = s.applyTicket(ctx, in, prod, payable, now)
		if err != nil {
			return nil, err
		}
	}

	if !payable.Equal(in.Amount) {
		return nil, errors.Wrapf(ErrAmountMismatch,
			"payable %s, requested %s", payable, in.Amount)
	}

	orderID := uuid.New().String()
	p := &Purchase{
		Order: &Order{
			ID:            orderID,
			UserID:        usr.ID,
			ProductKind:   prod.Kind,
			Title:         snap.Title,
			Description:   snap.Description,
			PaymentMethod: in.PaymentMethod,
			PaymentID:     in.PaymentID,
			Amount:        in.Amount,
			PaidAt:        &now,
		},
		SubOrder: &SubOrder{
			ID:                uuid.New().String(),
			OrderID:           orderID,
			ProductSnapshotID: snap.ID,
		},
		Enrollment: &Enrollment{
			ID:       uuid.New().String(),
			UserID:   usr.ID,
			CourseID: prod.CourseID,
			EbookID:  prod.EbookID,
		},
	}
	if ticket != nil {
		p.TicketPayment = &TicketPayment{
			ID:       uuid.New().String(),
			TicketID: ticket.ID,
			OrderID:  orderID,
		}
	}

	if err := s.orders.CreatePurchase(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create purchase")
	}
	return p, nil
}

// applyTicket validates the coupon ticket against the purchase target and
// returns the payable amount after the coupon discount.
func (s *PurchaseService) applyTicket(
	ctx context.Context,
	in PurchaseInput,
	prod *product.Product,
	payable decimal.Decimal,
	now time.Time,
) (*coupon.Ticket, decimal.Decimal, error) {
	ticket, err := s.coupons.GetTicket(ctx, in.CouponTicketID)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "resolve ticket")
	}
	if ticket.UserID != in.UserID {
		return nil, decimal.Zero, errors.Wrap(coupon.ErrTicketNotFound, "ticket belongs to another user")
	}
	if ticket.Expired(now) {
		return nil, decimal.Zero, coupon.ErrTicketExpired
	}

	c, err := s.coupons.GetByID(ctx, ticket.CouponID)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "resolve coupon")
	}
	criteria, err := s.coupons.CriteriaByCoupon(ctx, c.ID)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "resolve criteria")
	}

	target := coupon.Target{
		CourseID:   prod.CourseID,
		EbookID:    prod.EbookID,
		CategoryID: prod.CategoryID,
		TeacherID:  prod.TeacherID,
	}
	if !coupon.Eligible(criteria, target) {
		return nil, decimal.Zero, coupon.ErrNotEligible
	}

	discounted, err := coupon.ApplyDiscount(c, payable)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return ticket, discounted, nil
}

// notifyCompleted publishes the completion event. Notification failures are
// logged and never propagated; the purchase already committed.
func (s *PurchaseService) notifyCompleted(ctx context.Context, p *Purchase) {
	if s.notifier == nil {
		return
	}
	ev := notify.OrderEvent{
		OrderID:    p.Order.ID,
		UserID:     p.Order.UserID,
		Title:      p.Order.Title,
		Amount:     p.Order.Amount,
		OccurredAt: s.now(),
	}
	if err := s.notifier.OrderCompleted(ctx, ev); err != nil {
		zctx.From(ctx).Warn("order completion notification failed",
			zap.String("order_id", p.Order.ID),
			zap.Error(err),
		)
	}
}
