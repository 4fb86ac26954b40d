package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampUsage(t *testing.T) {
	testCases := []struct {
		name       string
		requested  int64
		balance    int64
		orderPrice int64
		want       int64
	}{
		{name: "request within balance and price", requested: 300, balance: 500, orderPrice: 1000, want: 300},
		{name: "request exceeds balance", requested: 800, balance: 500, orderPrice: 1000, want: 500},
		{name: "request exceeds order price", requested: 800, balance: 1000, orderPrice: 600, want: 600},
		{name: "balance below price below request", requested: 900, balance: 400, orderPrice: 600, want: 400},
		{name: "zero requested", requested: 0, balance: 500, orderPrice: 1000, want: 0},
		{name: "negative requested", requested: -10, balance: 500, orderPrice: 1000, want: 0},
		{name: "zero balance", requested: 300, balance: 0, orderPrice: 1000, want: 0},
		{name: "zero order price", requested: 300, balance: 500, orderPrice: 0, want: 0},
		{name: "exact balance", requested: 500, balance: 500, orderPrice: 500, want: 500},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClampUsage(tc.requested, tc.balance, tc.orderPrice))
		})
	}
}

func TestPointBalance_Usable(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("no expiry", func(t *testing.T) {
		b := &PointBalance{UserID: 1, Amount: 500}
		assert.Equal(t, int64(500), b.Usable(now))
	})

	t.Run("not yet expired", func(t *testing.T) {
		b := &PointBalance{UserID: 1, Amount: 500, ExpiresAt: now.Add(time.Hour)}
		assert.Equal(t, int64(500), b.Usable(now))
	})

	t.Run("expired points count as zero", func(t *testing.T) {
		b := &PointBalance{UserID: 1, Amount: 500, ExpiresAt: now.Add(-time.Hour)}
		assert.Equal(t, int64(0), b.Usable(now))
	})
}

func TestPointBalance_UseAndRestore(t *testing.T) {
	b := &PointBalance{UserID: 1, Amount: 500}

	require.NoError(t, b.Use(300))
	assert.Equal(t, int64(200), b.Amount)

	err := b.Use(300)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientPoints))
	assert.Equal(t, int64(200), b.Amount, "failed use must not change the balance")

	err = b.Use(0)
	assert.True(t, errors.Is(err, ErrValidation))

	require.NoError(t, b.Restore(300))
	assert.Equal(t, int64(500), b.Amount)

	err = b.Restore(-1)
	assert.True(t, errors.Is(err, ErrValidation))
}
