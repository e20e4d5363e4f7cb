package product

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeAmount is returned for pricing with a negative base amount.
	ErrNegativeAmount = errors.New("pricing amount must not be negative")
	// ErrInvalidDiscountValue is returned for a negative fixed discount or a
	// percent discount outside [0, 100].
	ErrInvalidDiscountValue = errors.New("invalid discount value")
)

var hundred = decimal.NewFromInt(100)

// EffectivePrice returns the price of a snapshot at the given time. The
// discount applies only when it is enabled and now falls inside its validity
// window; both bounds are inclusive.
//
// Fixed discounts floor the result at zero. Percent discounts round half-up
// to 2 decimal places (decimal.Round is half away from zero, which is
// half-up for the non-negative amounts allowed here).
func EffectivePrice(p Pricing, d *Discount, now time.Time) (decimal.Decimal, error) {
	if p.Amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	if !discountActive(d, now) {
		return p.Amount, nil
	}

	switch d.Type {
	case DiscountFixedAmount:
		if d.Value.IsNegative() {
			return decimal.Zero, ErrInvalidDiscountValue
		}
		effective := p.Amount.Sub(d.Value)
		if effective.IsNegative() {
			return decimal.Zero, nil
		}
		return effective, nil

	case DiscountPercent:
		if d.Value.IsNegative() || d.Value.GreaterThan(hundred) {
			return decimal.Zero, ErrInvalidDiscountValue
		}
		effective := p.Amount.Mul(hundred.Sub(d.Value)).Div(hundred)
		return effective.Round(2), nil

	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", d.Type)
	}
}

func discountActive(d *Discount, now time.Time) bool {
	if d == nil || !d.Enabled {
		return false
	}
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidTo != nil && now.After(*d.ValidTo) {
		return false
	}
	return true
}
