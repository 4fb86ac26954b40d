package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponReservation_Lifecycle(t *testing.T) {
	c := &CouponReservation{UserID: 7, CouponCode: "WELCOME10", Status: CouponAvailable}

	require.NoError(t, c.Reserve("order-1"))
	assert.Equal(t, CouponReserved, c.Status)
	assert.Equal(t, "order-1", c.OrderID)

	// 第二个订单抢同一张券必须失败
	err := c.Reserve("order-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCouponNotAvailable))
	assert.Equal(t, "order-1", c.OrderID)

	require.NoError(t, c.Confirm())
	assert.Equal(t, CouponUsed, c.Status)

	// 重复确认幂等
	require.NoError(t, c.Confirm())

	// USED 是终态, 不可回退
	err = c.Release()
	assert.True(t, errors.Is(err, ErrCouponNotReserved))
	assert.Equal(t, CouponUsed, c.Status)
}

func TestCouponReservation_Release(t *testing.T) {
	c := &CouponReservation{UserID: 7, CouponCode: "WELCOME10", Status: CouponAvailable}
	require.NoError(t, c.Reserve("order-1"))

	require.NoError(t, c.Release())
	assert.Equal(t, CouponAvailable, c.Status)
	assert.Empty(t, c.OrderID)

	// 重复释放幂等
	require.NoError(t, c.Release())

	// 释放后可以被重新预占
	require.NoError(t, c.Reserve("order-3"))
	assert.Equal(t, "order-3", c.OrderID)
}

func TestCouponReservation_IsUsableAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name   string
		coupon CouponReservation
		want   bool
	}{
		{name: "available inside window", coupon: CouponReservation{Status: CouponAvailable, ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(time.Hour)}, want: true},
		{name: "available without window", coupon: CouponReservation{Status: CouponAvailable}, want: true},
		{name: "before valid_from", coupon: CouponReservation{Status: CouponAvailable, ValidFrom: now.Add(time.Hour)}, want: false},
		{name: "after valid_to", coupon: CouponReservation{Status: CouponAvailable, ValidTo: now.Add(-time.Hour)}, want: false},
		{name: "reserved is not usable", coupon: CouponReservation{Status: CouponReserved}, want: false},
		{name: "expired is not usable", coupon: CouponReservation{Status: CouponExpired}, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.coupon.IsUsableAt(now))
		})
	}
}
