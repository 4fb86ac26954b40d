package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCouponTemplate_DiscountFor(t *testing.T) {
	testCases := []struct {
		name     string
		tpl      CouponTemplate
		subtotal int64
		want     int64
	}{
		{
			name:     "fixed amount above threshold",
			tpl:      CouponTemplate{DiscountType: DiscountTypeFixedAmount, Threshold: 20000, Amount: 2000},
			subtotal: 25000,
			want:     2000,
		},
		{
			name:     "fixed amount at exact threshold",
			tpl:      CouponTemplate{DiscountType: DiscountTypeFixedAmount, Threshold: 20000, Amount: 2000},
			subtotal: 20000,
			want:     2000,
		},
		{
			name:     "fixed amount below threshold",
			tpl:      CouponTemplate{DiscountType: DiscountTypeFixedAmount, Threshold: 20000, Amount: 2000},
			subtotal: 19999,
			want:     0,
		},
		{
			name:     "fixed amount never exceeds subtotal",
			tpl:      CouponTemplate{DiscountType: DiscountTypeFixedAmount, Threshold: 0, Amount: 5000},
			subtotal: 3000,
			want:     3000,
		},
		{
			name:     "percentage discount",
			tpl:      CouponTemplate{DiscountType: DiscountTypePercentage, Percentage: 88},
			subtotal: 10000,
			want:     1200, // 88折, 优惠 12%
		},
		{
			name:     "percentage capped by ceiling",
			tpl:      CouponTemplate{DiscountType: DiscountTypePercentage, Percentage: 50, Ceiling: 3000},
			subtotal: 10000,
			want:     3000,
		},
		{
			name:     "percentage out of range yields nothing",
			tpl:      CouponTemplate{DiscountType: DiscountTypePercentage, Percentage: 120},
			subtotal: 10000,
			want:     0,
		},
		{
			name:     "zero subtotal",
			tpl:      CouponTemplate{DiscountType: DiscountTypeFixedAmount, Amount: 2000},
			subtotal: 0,
			want:     0,
		},
		{
			name:     "unknown discount type",
			tpl:      CouponTemplate{DiscountType: "MYSTERY", Amount: 2000},
			subtotal: 10000,
			want:     0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.tpl.DiscountFor(tc.subtotal))
		})
	}
}
