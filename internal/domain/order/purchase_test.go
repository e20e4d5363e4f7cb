package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/edukit/commerce/internal/domain/coupon"
	"github.com/edukit/commerce/internal/domain/order"
	"github.com/edukit/commerce/internal/domain/product"
	"github.com/edukit/commerce/internal/domain/user"
	"github.com/edukit/commerce/internal/payment"
	"github.com/edukit/commerce/pkg/saga"
)

func d(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	dec, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return dec
}

type productRepoMock struct {
	product  *product.Product
	snapshot *product.Snapshot
	err      error
}

func (m *productRepoMock) GetByID(context.Context, string) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.product, nil
}

func (m *productRepoMock) CreateSnapshot(context.Context, string, product.SnapshotInput) (*product.Snapshot, error) {
	panic("not used")
}

func (m *productRepoMock) CurrentSnapshot(context.Context, string) (*product.Snapshot, error) {
	if m.snapshot == nil {
		return nil, product.ErrSnapshotNotFound
	}
	return m.snapshot, nil
}

type userRepoMock struct {
	user *user.User
}

func (m *userRepoMock) GetByID(context.Context, string) (*user.User, error) {
	if m.user == nil {
		return nil, user.ErrNotFound
	}
	return m.user, nil
}

type couponRepoMock struct {
	coupon   *coupon.Coupon
	criteria []coupon.Criterion
	ticket   *coupon.Ticket
}

func (m *couponRepoMock) GetByID(context.Context, string) (*coupon.Coupon, error) {
	if m.coupon == nil {
		return nil, coupon.ErrNotFound
	}
	return m.coupon, nil
}

func (m *couponRepoMock) CriteriaByCoupon(context.Context, string) ([]coupon.Criterion, error) {
	return m.criteria, nil
}

func (m *couponRepoMock) FindDisposableByCode(context.Context, string) (*coupon.Disposable, error) {
	panic("not used")
}

func (m *couponRepoMock) GetTicket(context.Context, string) (*coupon.Ticket, error) {
	if m.ticket == nil {
		return nil, coupon.ErrTicketNotFound
	}
	return m.ticket, nil
}

func (m *couponRepoMock) IssueTicket(context.Context, *coupon.Coupon, *coupon.Ticket) error {
	panic("not used")
}

type orderRepoMock struct {
	createErr error
	created   []*order.Purchase
}

func (m *orderRepoMock) GetByID(context.Context, string) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func (m *orderRepoMock) CreatePurchase(_ context.Context, p *order.Purchase) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, p)
	return nil
}

type gatewayMock struct {
	result    *payment.Result
	resultErr error
	refundErr error
	refunds   []payment.RefundRequest
}

func (m *gatewayMock) GetPaymentResult(context.Context, string) (*payment.Result, error) {
	if m.resultErr != nil {
		return nil, m.resultErr
	}
	return m.result, nil
}

func (m *gatewayMock) RefundPayment(_ context.Context, req payment.RefundRequest) error {
	m.refunds = append(m.refunds, req)
	return m.refundErr
}

type purchaseFixture struct {
	products *productRepoMock
	users    *userRepoMock
	coupons  *couponRepoMock
	orders   *orderRepoMock
	gateway  *gatewayMock
	svc      *order.PurchaseService
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	f := &purchaseFixture{
		products: &productRepoMock{
			product: &product.Product{
				ID:         "prod-1",
				Kind:       product.KindCourse,
				CourseID:   "course-1",
				TeacherID:  "teacher-1",
				CategoryID: "cat-1",
			},
			snapshot: &product.Snapshot{
				ID:        "snap-1",
				ProductID: "prod-1",
				Title:     "Go from scratch",
				Pricing:   product.Pricing{Amount: d(t, "100.00")},
			},
		},
		users:   &userRepoMock{user: &user.User{ID: "user-1"}},
		coupons: &couponRepoMock{},
		orders:  &orderRepoMock{},
		gateway: &gatewayMock{
			result: &payment.Result{
				PaymentID:      "pay-1",
				CapturedAmount: d(t, "100.00"),
				Method:         "card",
			},
		},
	}
	f.svc = order.NewPurchaseService(f.products, f.users, f.coupons, f.orders, f.gateway, nil)
	return f
}

func TestPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("paid success", func(t *testing.T) {
		f := newPurchaseFixture(t)

		p, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:        "user-1",
			ProductID:     "prod-1",
			PaymentID:     "pay-1",
			PaymentMethod: "card",
			Amount:        d(t, "100.00"),
		})
		require.NoError(t, err)

		require.Equal(t, "user-1", p.Order.UserID)
		require.Equal(t, "pay-1", p.Order.PaymentID)
		require.Equal(t, product.KindCourse, p.Order.ProductKind)
		require.True(t, p.Order.Amount.Equal(d(t, "100.00")))
		require.NotNil(t, p.Order.PaidAt)
		require.Equal(t, p.Order.ID, p.SubOrder.OrderID)
		require.Equal(t, "snap-1", p.SubOrder.ProductSnapshotID)
		require.Equal(t, "course-1", p.Enrollment.CourseID)
		require.Nil(t, p.TicketPayment)

		require.Len(t, f.orders.created, 1)
		require.Empty(t, f.gateway.refunds, "no compensation on success")
	})

	t.Run("free order success", func(t *testing.T) {
		f := newPurchaseFixture(t)
		f.products.snapshot.Pricing.Amount = decimal.Zero

		p, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:    "user-1",
			ProductID: "prod-1",
			Amount:    decimal.Zero,
		})
		require.NoError(t, err)
		require.Empty(t, p.Order.PaymentID)
		require.Empty(t, f.gateway.refunds)
	})

	t.Run("free order with non-zero amount", func(t *testing.T) {
		f := newPurchaseFixture(t)

		_, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:    "user-1",
			ProductID: "prod-1",
			Amount:    d(t, "100.00"),
		})
		require.ErrorIs(t, err, order.ErrAmountMismatch)
		require.Empty(t, f.gateway.refunds, "nothing captured, nothing to refund")
		require.Empty(t, f.orders.created)
	})

	t.Run("captured amount mismatch refunds", func(t *testing.T) {
		f := newPurchaseFixture(t)
		f.gateway.result.CapturedAmount = d(t, "80.00")

		_, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:    "user-1",
			ProductID: "prod-1",
			PaymentID: "pay-1",
			Amount:    d(t, "100.00"),
		})
		require.ErrorIs(t, err, order.ErrAmountMismatch)

		require.Len(t, f.gateway.refunds, 1)
		require.Equal(t, "pay-1", f.gateway.refunds[0].PaymentID)
		require.Empty(t, f.orders.created)
	})

	t.Run("persist failure refunds exactly once", func(t *testing.T) {
		f := newPurchaseFixture(t)
		f.orders.createErr = context.DeadlineExceeded

		_, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:    "user-1",
			ProductID: "prod-1",
			PaymentID: "pay-1",
			Amount:    d(t, "100.00"),
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Len(t, f.gateway.refunds, 1)
	})

	t.Run("persist failure without capture does not refund", func(t *testing.T) {
		f := newPurchaseFixture(t)
		f.products.snapshot.Pricing.Amount = decimal.Zero
		f.orders.createErr = context.DeadlineExceeded

		_, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:    "user-1",
			ProductID: "prod-1",
			Amount:    decimal.Zero,
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Empty(t, f.gateway.refunds)
	})

	t.Run("refund failure escalates", func(t *testing.T) {
		f := newPurchaseFixture(t)
		f.orders.createErr = context.DeadlineExceeded
		f.gateway.refundErr = payment.ErrTimeout

		_, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:    "user-1",
			ProductID: "prod-1",
			PaymentID: "pay-1",
			Amount:    d(t, "100.00"),
		})

		var cerr *saga.CompensationError
		require.ErrorAs(t, err, &cerr)
		require.Equal(t, "capture", cerr.Step)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("price from snapshot discount", func(t *testing.T) {
		f := newPurchaseFixture(t)
		f.products.snapshot.Discount = &product.Discount{
			Type:    product.DiscountPercent,
			Value:   d(t, "50"),
			Enabled: true,
		}
		f.gateway.result.CapturedAmount = d(t, "50.00")

		p, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:    "user-1",
			ProductID: "prod-1",
			PaymentID: "pay-1",
			Amount:    d(t, "50.00"),
		})
		require.NoError(t, err)
		require.True(t, p.Order.Amount.Equal(d(t, "50.00")))
	})

	t.Run("payable mismatch refunds", func(t *testing.T) {
		f := newPurchaseFixture(t)
		f.gateway.result.CapturedAmount = d(t, "90.00")

		// Gateway agrees with the request, but the snapshot prices at 100.
		_, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:    "user-1",
			ProductID: "prod-1",
			PaymentID: "pay-1",
			Amount:    d(t, "90.00"),
		})
		require.ErrorIs(t, err, order.ErrAmountMismatch)
		require.Len(t, f.gateway.refunds, 1)
	})
}

func TestPurchaseWithTicket(t *testing.T) {
	ctx := context.Background()

	ticketFixture := func(t *testing.T) *purchaseFixture {
		f := newPurchaseFixture(t)
		f.coupons.coupon = &coupon.Coupon{
			ID:           "coupon-1",
			DiscountType: coupon.DiscountFixedAmount,
			Value:        d(t, "30.00"),
		}
		f.coupons.criteria = []coupon.Criterion{
			{Kind: coupon.CriterionCourse, Direction: coupon.DirectionInclude, TargetID: "course-1"},
		}
		f.coupons.ticket = &coupon.Ticket{
			ID:       "ticket-1",
			CouponID: "coupon-1",
			UserID:   "user-1",
		}
		f.gateway.result.CapturedAmount = d(t, "70.00")
		return f
	}

	t.Run("discount applied and ticket consumed", func(t *testing.T) {
		f := ticketFixture(t)

		p, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:         "user-1",
			ProductID:      "prod-1",
			PaymentID:      "pay-1",
			Amount:         d(t, "70.00"),
			CouponTicketID: "ticket-1",
		})
		require.NoError(t, err)
		require.NotNil(t, p.TicketPayment)
		require.Equal(t, "ticket-1", p.TicketPayment.TicketID)
		require.Equal(t, p.Order.ID, p.TicketPayment.OrderID)
	})

	t.Run("foreign ticket rejected", func(t *testing.T) {
		f := ticketFixture(t)
		f.coupons.ticket.UserID = "someone-else"

		_, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:         "user-1",
			ProductID:      "prod-1",
			PaymentID:      "pay-1",
			Amount:         d(t, "70.00"),
			CouponTicketID: "ticket-1",
		})
		require.ErrorIs(t, err, coupon.ErrTicketNotFound)
		require.Len(t, f.gateway.refunds, 1)
	})

	t.Run("expired ticket rejected", func(t *testing.T) {
		f := ticketFixture(t)
		past := time.Now().Add(-time.Hour)
		f.coupons.ticket.ExpiredAt = &past

		_, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:         "user-1",
			ProductID:      "prod-1",
			PaymentID:      "pay-1",
			Amount:         d(t, "70.00"),
			CouponTicketID: "ticket-1",
		})
		require.ErrorIs(t, err, coupon.ErrTicketExpired)
	})

	t.Run("ineligible product rejected", func(t *testing.T) {
		f := ticketFixture(t)
		f.coupons.criteria = []coupon.Criterion{
			{Kind: coupon.CriterionCourse, Direction: coupon.DirectionInclude, TargetID: "course-other"},
		}

		_, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:         "user-1",
			ProductID:      "prod-1",
			PaymentID:      "pay-1",
			Amount:         d(t, "70.00"),
			CouponTicketID: "ticket-1",
		})
		require.ErrorIs(t, err, coupon.ErrNotEligible)
	})

	t.Run("excluded teacher wins over included course", func(t *testing.T) {
		f := ticketFixture(t)
		f.coupons.criteria = []coupon.Criterion{
			{Kind: coupon.CriterionCourse, Direction: coupon.DirectionInclude, TargetID: "course-1"},
			{Kind: coupon.CriterionTeacher, Direction: coupon.DirectionExclude, TargetID: "teacher-1"},
		}

		_, err := f.svc.Purchase(ctx, order.PurchaseInput{
			UserID:         "user-1",
			ProductID:      "prod-1",
			PaymentID:      "pay-1",
			Amount:         d(t, "70.00"),
			CouponTicketID: "ticket-1",
		})
		require.ErrorIs(t, err, coupon.ErrNotEligible)
	})
}
