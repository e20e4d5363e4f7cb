package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/edukit/commerce/internal/domain/coupon"
)

const (
	getCouponByIDSQL = `SELECT id, name, discount_type, value, threshold, discount_limit,
			volume, volume_per_citizen, expired_in_seconds, expired_at, opened_at, closed_at
		FROM coupons WHERE id = $1`

	getCriteriaByCouponSQL = `SELECT id, kind, direction, COALESCE(target_id::text, '')
		FROM coupon_criteria WHERE coupon_id = $1 ORDER BY id`

	findDisposableByCodeSQL = `SELECT id, coupon_id, code, expired_at
		FROM coupon_disposables WHERE code = $1`

	getTicketByIDSQL = `SELECT id, coupon_id, user_id, COALESCE(coupon_disposable_id::text, ''),
			created_at, expired_at
		FROM coupon_tickets WHERE id = $1`

	lockCouponSQL = `SELECT id FROM coupons WHERE id = $1 FOR UPDATE`

	countTicketsSQL = `SELECT COUNT(*), COUNT(*) FILTER (WHERE user_id = $2)
		FROM coupon_tickets WHERE coupon_id = $1`

	insertTicketSQL = `INSERT INTO coupon_tickets (id, coupon_id, user_id, coupon_disposable_id, created_at, expired_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6)`
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// GetByID returns a single coupon by its identifier.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}
	return &c, nil
}

// CriteriaByCoupon returns the coupon's eligibility rules.
func (r *CouponRepository) CriteriaByCoupon(ctx context.Context, couponID string) ([]coupon.Criterion, error) {
	rows, err := r.pool.Query(ctx, getCriteriaByCouponSQL, couponID)
	if err != nil {
		return nil, fmt.Errorf("getting criteria of coupon %q: %w", couponID, err)
	}
	return pgx.CollectRows(rows, scanCriterion)
}

// FindDisposableByCode looks up a redemption code.
// Returns coupon.ErrCodeNotFound when no such code exists.
func (r *CouponRepository) FindDisposableByCode(ctx context.Context, code string) (*coupon.Disposable, error) {
	rows, err := r.pool.Query(ctx, findDisposableByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding code %q: %w", code, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDisposable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCodeNotFound
		}
		return nil, fmt.Errorf("finding code %q: %w", code, err)
	}
	return &d, nil
}

// GetTicket returns a single issued ticket by its identifier.
func (r *CouponRepository) GetTicket(ctx context.Context, id string) (*coupon.Ticket, error) {
	rows, err := r.pool.Query(ctx, getTicketByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting ticket %q: %w", id, err)
	}

	t, err := pgx.CollectExactlyOneRow(rows, scanTicket)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrTicketNotFound
		}
		return nil, fmt.Errorf("getting ticket %q: %w", id, err)
	}
	return &t, nil
}

// IssueTicket inserts the ticket inside one transaction that locks the coupon
// row first, so concurrent issuance for the same coupon serializes on the
// supply-cap check. Disposable redemptions count toward the total volume like
// public issuances; the per-user cap applies to the public path only, since a
// code grants exactly one ticket via the unique index over
// coupon_disposable_id.
func (r *CouponRepository) IssueTicket(ctx context.Context, c *coupon.Coupon, t *coupon.Ticket) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var lockedID string
		if err := tx.QueryRow(ctx, lockCouponSQL, c.ID).Scan(&lockedID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return coupon.ErrNotFound
			}
			return fmt.Errorf("locking coupon %q: %w", c.ID, err)
		}

		var total, byUser int64
		if err := tx.QueryRow(ctx, countTicketsSQL, c.ID, t.UserID).Scan(&total, &byUser); err != nil {
			return fmt.Errorf("counting tickets of coupon %q: %w", c.ID, err)
		}
		if c.Volume > 0 && total >= int64(c.Volume) {
			return coupon.ErrVolumeExceeded
		}
		if t.DisposableID == "" && c.VolumePerCitizen > 0 && byUser >= int64(c.VolumePerCitizen) {
			return coupon.ErrPerUserCapExceeded
		}

		_, err := tx.Exec(ctx, insertTicketSQL,
			t.ID, t.CouponID, t.UserID, t.DisposableID, t.CreatedAt, t.ExpiredAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return coupon.ErrAlreadyRedeemed
			}
			return fmt.Errorf("inserting ticket: %w", err)
		}
		return nil
	})
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		value        decimal.Decimal
		threshold    decimal.NullDecimal
		limit        decimal.NullDecimal
		volume       *int32
		perCitizen   *int32
		expiredInSec *int64
	)
	err := row.Scan(
		&c.ID, &c.Name, &discountType, &value, &threshold, &limit,
		&volume, &perCitizen, &expiredInSec,
		&c.ExpiredAt, &c.OpenedAt, &c.ClosedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.Value = value
	if threshold.Valid {
		c.Threshold = threshold.Decimal
	}
	if limit.Valid {
		c.Limit = limit.Decimal
	}
	if volume != nil {
		c.Volume = int(*volume)
	}
	if perCitizen != nil {
		c.VolumePerCitizen = int(*perCitizen)
	}
	if expiredInSec != nil {
		c.ExpiredIn = time.Duration(*expiredInSec) * time.Second
	}
	return c, err
}

func scanCriterion(row pgx.CollectableRow) (coupon.Criterion, error) {
	var (
		c         coupon.Criterion
		kind      string
		direction string
	)
	err := row.Scan(&c.ID, &kind, &direction, &c.TargetID)
	c.Kind = coupon.CriterionKind(kind)
	c.Direction = coupon.Direction(direction)
	return c, err
}

func scanDisposable(row pgx.CollectableRow) (coupon.Disposable, error) {
	var d coupon.Disposable
	err := row.Scan(&d.ID, &d.CouponID, &d.Code, &d.ExpiredAt)
	return d, err
}

func scanTicket(row pgx.CollectableRow) (coupon.Ticket, error) {
	var t coupon.Ticket
	err := row.Scan(&t.ID, &t.CouponID, &t.UserID, &t.DisposableID, &t.CreatedAt, &t.ExpiredAt)
	return t, err
}
