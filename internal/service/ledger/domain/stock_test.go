package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockEntry_Deduct(t *testing.T) {
	testCases := []struct {
		name     string
		initial  int64
		qty      int64
		wantErr  error
		wantLeft int64
	}{
		{name: "normal deduction", initial: 100, qty: 30, wantLeft: 70},
		{name: "deduct to exactly zero", initial: 30, qty: 30, wantLeft: 0},
		{name: "insufficient stock rejected wholly", initial: 20, qty: 30, wantErr: ErrInsufficientStock, wantLeft: 20},
		{name: "zero quantity is validation error", initial: 100, qty: 0, wantErr: ErrValidation, wantLeft: 100},
		{name: "negative quantity is validation error", initial: 100, qty: -5, wantErr: ErrValidation, wantLeft: 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := &StockEntry{ProductID: 1001, Quantity: tc.initial}
			err := s.Deduct(tc.qty)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantLeft, s.Quantity)
		})
	}
}

func TestStockEntry_Restore(t *testing.T) {
	s := &StockEntry{ProductID: 1001, Quantity: 10}
	require.NoError(t, s.Restore(5))
	assert.Equal(t, int64(15), s.Quantity)

	err := s.Restore(0)
	assert.True(t, errors.Is(err, ErrValidation))
}
