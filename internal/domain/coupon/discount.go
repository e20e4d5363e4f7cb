package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ApplyDiscount returns the payable amount after applying the coupon to the
// given order amount. It returns ErrBelowThreshold when the amount does not
// meet the coupon's minimum. Percent discounts round half-up to 2 decimal
// places; the computed discount is capped at Limit when set, and the result
// is floored at zero.
func ApplyDiscount(c *Coupon, amount decimal.Decimal) (decimal.Decimal, error) {
	if c.Threshold.IsPositive() && amount.LessThan(c.Threshold) {
		return decimal.Zero, ErrBelowThreshold
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountFixedAmount:
		discount = c.Value
	case DiscountPercent:
		discount = amount.Mul(c.Value).Div(hundred).Round(2)
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}

	if c.Limit.IsPositive() && discount.GreaterThan(c.Limit) {
		discount = c.Limit
	}

	payable := amount.Sub(discount)
	if payable.IsNegative() {
		payable = decimal.Zero
	}
	return payable, nil
}
