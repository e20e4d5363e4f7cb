package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/edukit/commerce/internal/domain/order"
)

const (
	sumRefundsSQL = `SELECT COALESCE(SUM(refunded_amount), 0)
		FROM order_refunds WHERE order_id = $1`

	lockOrderSQL = `SELECT amount FROM orders WHERE id = $1 FOR UPDATE`

	insertRefundSQL = `INSERT INTO order_refunds (id, order_id, refunded_amount, reason, refunded_at)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ order.RefundRepository = (*RefundRepository)(nil)

// RefundRepository implements order.RefundRepository backed by PostgreSQL.
type RefundRepository struct {
	pool *pgxpool.Pool
}

// NewRefundRepository returns a RefundRepository that uses the given pool.
func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

// SumByOrder returns the total refunded amount recorded for the order.
func (r *RefundRepository) SumByOrder(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx, sumRefundsSQL, orderID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing refunds of order %q: %w", orderID, err)
	}
	return sum, nil
}

// Create records the refund in a transaction that locks the order row and
// re-validates the cumulative cap before running the capture callback, so
// concurrent refunds for the same order serialize. Any write failure after
// the capture succeeded wraps order.ErrRefundNotRecorded: the funds are out
// but the ledger row is missing, which needs manual resolution, not a retry.
// The commit is owned here rather than by inTx so a commit failure carries
// the same marker as an insert failure.
func (r *RefundRepository) Create(ctx context.Context, rf *order.Refund, capture func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	return createRefundInTx(ctx, tx, rf, capture)
}

func createRefundInTx(ctx context.Context, tx pgx.Tx, rf *order.Refund, capture func(ctx context.Context) error) error {
	var orderAmount decimal.Decimal
	if err := tx.QueryRow(ctx, lockOrderSQL, rf.OrderID).Scan(&orderAmount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("locking order %q: %w", rf.OrderID, err)
	}

	var refunded decimal.Decimal
	if err := tx.QueryRow(ctx, sumRefundsSQL, rf.OrderID).Scan(&refunded); err != nil {
		return fmt.Errorf("summing refunds of order %q: %w", rf.OrderID, err)
	}
	if refunded.Add(rf.Amount).GreaterThan(orderAmount) {
		return errors.Wrapf(order.ErrRefundExceedsOrder,
			"refunded %s of %s, requested %s", refunded, orderAmount, rf.Amount)
	}

	if err := capture(ctx); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, insertRefundSQL,
		rf.ID, rf.OrderID, rf.Amount, rf.Reason, rf.RefundedAt,
	)
	if err != nil {
		return errors.Wrapf(order.ErrRefundNotRecorded, "inserting refund: %s", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrapf(order.ErrRefundNotRecorded, "committing refund: %s", err)
	}
	return nil
}
