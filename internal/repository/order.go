package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/edukit/commerce/internal/domain/order"
	"github.com/edukit/commerce/internal/domain/product"
)

const (
	getOrderByIDSQL = `SELECT id, user_id, product_kind, title, description,
			payment_method, payment_id, amount, paid_at
		FROM orders WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (id, user_id, product_kind, title, description,
			payment_method, payment_id, amount, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	insertCourseOrderSQL = `INSERT INTO course_orders (id, order_id, product_snapshot_id)
		VALUES ($1, $2, $3)`

	insertEbookOrderSQL = `INSERT INTO ebook_orders (id, order_id, product_snapshot_id)
		VALUES ($1, $2, $3)`

	insertEnrollmentSQL = `INSERT INTO enrollments (id, user_id, course_id, ebook_id)
		VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid)`

	insertTicketPaymentSQL = `INSERT INTO coupon_ticket_payments (id, coupon_ticket_id, order_id)
		VALUES ($1, $2, $3)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// CreatePurchase inserts the order, its kind-specific sub-order, the
// enrollment, and the optional ticket payment in one transaction.
func (r *OrderRepository) CreatePurchase(ctx context.Context, p *order.Purchase) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		o := p.Order
		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, string(o.ProductKind), o.Title, o.Description,
			o.PaymentMethod, o.PaymentID, o.Amount, o.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}

		subOrderSQL := insertCourseOrderSQL
		if o.ProductKind == product.KindEbook {
			subOrderSQL = insertEbookOrderSQL
		}
		_, err = tx.Exec(ctx, subOrderSQL,
			p.SubOrder.ID, p.SubOrder.OrderID, p.SubOrder.ProductSnapshotID,
		)
		if err != nil {
			return fmt.Errorf("inserting sub-order: %w", err)
		}

		_, err = tx.Exec(ctx, insertEnrollmentSQL,
			p.Enrollment.ID, p.Enrollment.UserID, p.Enrollment.CourseID, p.Enrollment.EbookID,
		)
		if err != nil {
			return fmt.Errorf("inserting enrollment: %w", err)
		}

		if tp := p.TicketPayment; tp != nil {
			_, err = tx.Exec(ctx, insertTicketPaymentSQL, tp.ID, tp.TicketID, tp.OrderID)
			if err != nil {
				return fmt.Errorf("inserting ticket payment: %w", err)
			}
		}
		return nil
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		kind   string
		amount decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.UserID, &kind, &o.Title, &o.Description,
		&o.PaymentMethod, &o.PaymentID, &amount, &o.PaidAt,
	)
	o.ProductKind = product.Kind(kind)
	o.Amount = amount
	return o, err
}
