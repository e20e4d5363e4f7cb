package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Issuer issues coupon tickets through the public and code-redemption paths.
// Supply caps are enforced by the repository inside a transaction that locks
// the coupon row; the issuer owns the time-window and code-expiry checks.
type Issuer struct {
	repo Repository
	now  func() time.Time
}

// NewIssuer creates an Issuer backed by the given repository.
func NewIssuer(repo Repository) *Issuer {
	return &Issuer{repo: repo, now: time.Now}
}

// IssuePublic issues a ticket for an open coupon to the given user. It
// returns ErrNotOpenYet/ErrClosed outside the issuance window and
// ErrVolumeExceeded/ErrPerUserCapExceeded when a supply cap is reached.
func (i *Issuer) IssuePublic(ctx context.Context, couponID, userID string) (*Ticket, error) {
	c, err := i.repo.GetByID(ctx, couponID)
	if err != nil {
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := i.now()
	if c.OpenedAt != nil && now.Before(*c.OpenedAt) {
		return nil, ErrNotOpenYet
	}
	if c.ClosedAt != nil && now.After(*c.ClosedAt) {
		return nil, ErrClosed
	}

	t := &Ticket{
		ID:        uuid.New().String(),
		CouponID:  c.ID,
		UserID:    userID,
		CreatedAt: now,
		ExpiredAt: c.TicketExpiry(now),
	}
	if err := i.repo.IssueTicket(ctx, c, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Redeem exchanges a one-time disposable code for a ticket. A code can be
// consumed by exactly one ticket; a second attempt returns ErrAlreadyRedeemed.
func (i *Issuer) Redeem(ctx context.Context, code, userID string) (*Ticket, error) {
	d, err := i.repo.FindDisposableByCode(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "lookup code")
	}

	now := i.now()
	if d.ExpiredAt != nil && d.ExpiredAt.Before(now) {
		return nil, ErrCodeExpired
	}

	c, err := i.repo.GetByID(ctx, d.CouponID)
	if err != nil {
		return nil, errors.Wrap(err, "lookup coupon")
	}

	t := &Ticket{
		ID:           uuid.New().String(),
		CouponID:     c.ID,
		UserID:       userID,
		DisposableID: d.ID,
		CreatedAt:    now,
		ExpiredAt:    c.TicketExpiry(now),
	}
	if err := i.repo.IssueTicket(ctx, c, t); err != nil {
		return nil, err
	}
	return t, nil
}
