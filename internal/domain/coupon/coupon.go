package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested coupon does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrCodeNotFound is returned when a redemption code is unknown.
	ErrCodeNotFound = errors.New("coupon code not found")
	// ErrCodeExpired is returned when a redemption code is past its expiry.
	ErrCodeExpired = errors.New("coupon code expired")
	// ErrNotOpenYet is returned for public issuance before openedAt.
	ErrNotOpenYet = errors.New("coupon is not open yet")
	// ErrClosed is returned for public issuance after closedAt.
	ErrClosed = errors.New("coupon is closed")
	// ErrVolumeExceeded is returned when the coupon's total supply cap would
	// be exceeded by issuing one more ticket.
	ErrVolumeExceeded = errors.New("coupon volume exceeded")
	// ErrPerUserCapExceeded is returned when the per-user cap would be
	// exceeded by issuing one more ticket.
	ErrPerUserCapExceeded = errors.New("per-user coupon cap exceeded")
	// ErrAlreadyRedeemed is returned on a second redemption of a disposable.
	ErrAlreadyRedeemed = errors.New("coupon code already redeemed")
	// ErrTicketExpired is returned when a consumed ticket is past its expiry.
	ErrTicketExpired = errors.New("coupon ticket expired")
	// ErrTicketNotFound is returned when a requested ticket does not exist.
	ErrTicketNotFound = errors.New("coupon ticket not found")
	// ErrNotEligible is returned when the coupon's criteria do not cover the
	// purchase target.
	ErrNotEligible = errors.New("coupon not eligible for this purchase")
	// ErrBelowThreshold is returned when the order amount is below the
	// coupon's minimum.
	ErrBelowThreshold = errors.New("order amount below coupon threshold")
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	DiscountFixedAmount DiscountType = "fixed_amount"
	DiscountPercent     DiscountType = "percent"
)

// Coupon defines a discount campaign with supply caps and time windows.
// Zero values for Threshold, Limit, Volume, VolumePerCitizen, and ExpiredIn
// mean "unset".
type Coupon struct {
	ID           string
	Name         string
	DiscountType DiscountType
	Value        decimal.Decimal

	// Threshold is the minimum order amount required to use a ticket.
	Threshold decimal.Decimal
	// Limit caps the computed discount amount.
	Limit decimal.Decimal

	// Volume caps the total number of tickets; VolumePerCitizen caps the
	// number of tickets per user.
	Volume           int
	VolumePerCitizen int

	// ExpiredIn sets a ticket's lifetime from its issue time. When zero,
	// tickets inherit ExpiredAt instead.
	ExpiredIn time.Duration
	ExpiredAt *time.Time

	// OpenedAt/ClosedAt bound the public issuance window.
	OpenedAt *time.Time
	ClosedAt *time.Time
}

// TicketExpiry computes the expiry of a ticket issued at the given time.
func (c *Coupon) TicketExpiry(issuedAt time.Time) *time.Time {
	if c.ExpiredIn > 0 {
		t := issuedAt.Add(c.ExpiredIn)
		return &t
	}
	return c.ExpiredAt
}

// Disposable is a unique one-time redemption code bound to a coupon and
// consumable by exactly one ticket.
type Disposable struct {
	ID        string
	CouponID  string
	Code      string
	ExpiredAt *time.Time
}

// Ticket records that a specific user was issued a specific coupon.
type Ticket struct {
	ID       string
	CouponID string
	UserID   string
	// DisposableID is set only for tickets issued through code redemption.
	DisposableID string
	CreatedAt    time.Time
	ExpiredAt    *time.Time
}

// Expired reports whether the ticket can no longer be consumed.
func (t *Ticket) Expired(now time.Time) bool {
	return t.ExpiredAt != nil && t.ExpiredAt.Before(now)
}

// Repository defines persistence operations for coupons and tickets.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Coupon, error)
	CriteriaByCoupon(ctx context.Context, couponID string) ([]Criterion, error)
	FindDisposableByCode(ctx context.Context, code string) (*Disposable, error)
	GetTicket(ctx context.Context, id string) (*Ticket, error)

	// IssueTicket inserts the ticket inside one transaction that locks the
	// coupon row, so concurrent issuance for the same coupon serializes on
	// the supply-cap check. For public tickets it returns ErrVolumeExceeded
	// or ErrPerUserCapExceeded when a cap would be exceeded; for disposable
	// tickets it returns ErrAlreadyRedeemed when the code was consumed.
	IssueTicket(ctx context.Context, c *Coupon, t *Ticket) error
}
