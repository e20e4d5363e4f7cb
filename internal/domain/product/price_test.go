package product

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func tp(t time.Time) *time.Time {
	return &t
}

func TestEffectivePrice(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		pricing  Pricing
		discount *Discount
		want     decimal.Decimal
		wantErr  error
	}{
		{
			name:    "no discount returns base amount",
			pricing: Pricing{Amount: d("10000")},
			want:    d("10000"),
		},
		{
			name:    "disabled discount is ignored",
			pricing: Pricing{Amount: d("10000")},
			discount: &Discount{
				Type:    DiscountFixedAmount,
				Value:   d("1000"),
				Enabled: false,
			},
			want: d("10000"),
		},
		{
			name:    "fixed amount subtracts value",
			pricing: Pricing{Amount: d("10000")},
			discount: &Discount{
				Type:    DiscountFixedAmount,
				Value:   d("3500"),
				Enabled: true,
			},
			want: d("6500"),
		},
		{
			name:    "fixed amount floors at zero",
			pricing: Pricing{Amount: d("2000")},
			discount: &Discount{
				Type:    DiscountFixedAmount,
				Value:   d("5000"),
				Enabled: true,
			},
			want: d("0"),
		},
		{
			name:    "percent discount",
			pricing: Pricing{Amount: d("10000")},
			discount: &Discount{
				Type:    DiscountPercent,
				Value:   d("25"),
				Enabled: true,
			},
			want: d("7500"),
		},
		{
			// 33.33 * 0.50 = 16.665 -> half-up -> 16.67. Documents the
			// rounding policy for percent discounts.
			name:    "percent discount rounds half-up to 2 dp",
			pricing: Pricing{Amount: d("33.33")},
			discount: &Discount{
				Type:    DiscountPercent,
				Value:   d("50"),
				Enabled: true,
			},
			want: d("16.67"),
		},
		{
			name:    "validTo equal to now is still applied (inclusive bound)",
			pricing: Pricing{Amount: d("100")},
			discount: &Discount{
				Type:    DiscountPercent,
				Value:   d("10"),
				Enabled: true,
				ValidTo: tp(now),
			},
			want: d("90"),
		},
		{
			name:    "validTo one second in the past is not applied",
			pricing: Pricing{Amount: d("100")},
			discount: &Discount{
				Type:    DiscountPercent,
				Value:   d("10"),
				Enabled: true,
				ValidTo: tp(now.Add(-time.Second)),
			},
			want: d("100"),
		},
		{
			name:    "validFrom equal to now is applied (inclusive bound)",
			pricing: Pricing{Amount: d("100")},
			discount: &Discount{
				Type:      DiscountPercent,
				Value:     d("10"),
				Enabled:   true,
				ValidFrom: tp(now),
			},
			want: d("90"),
		},
		{
			name:    "validFrom in the future is not applied",
			pricing: Pricing{Amount: d("100")},
			discount: &Discount{
				Type:      DiscountPercent,
				Value:     d("10"),
				Enabled:   true,
				ValidFrom: tp(now.Add(time.Second)),
			},
			want: d("100"),
		},
		{
			name:    "negative pricing amount rejected",
			pricing: Pricing{Amount: d("-1")},
			wantErr: ErrNegativeAmount,
		},
		{
			name:    "percent above 100 rejected",
			pricing: Pricing{Amount: d("100")},
			discount: &Discount{
				Type:    DiscountPercent,
				Value:   d("101"),
				Enabled: true,
			},
			wantErr: ErrInvalidDiscountValue,
		},
		{
			name:    "negative fixed value rejected",
			pricing: Pricing{Amount: d("100")},
			discount: &Discount{
				Type:    DiscountFixedAmount,
				Value:   d("-5"),
				Enabled: true,
			},
			wantErr: ErrInvalidDiscountValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EffectivePrice(tt.pricing, tt.discount, now)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestEffectivePrice_UnsupportedType(t *testing.T) {
	_, err := EffectivePrice(
		Pricing{Amount: d("100")},
		&Discount{Type: DiscountType("bogus"), Enabled: true},
		time.Now(),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported discount type")
}
