package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []OrderItem {
	return []OrderItem{
		{ProductID: 1001, Name: "keyboard", UnitPrice: 10000, Quantity: 2},
		{ProductID: 1002, Name: "mouse pad", UnitPrice: 5000, Quantity: 1},
	}
}

func TestOrder_Lifecycle(t *testing.T) {
	order, err := NewOrder("order-1", 7, testItems())
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, order.Status)

	// 没有支付引用不能进入 PENDING
	require.Error(t, order.MarkPending(""))

	require.NoError(t, order.MarkPending("pay-1"))
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, "pay-1", order.PaymentRef)

	require.NoError(t, order.Confirm())
	assert.Equal(t, StatusConfirmed, order.Status)

	// 重复确认幂等, 取消被拒
	require.NoError(t, order.Confirm())
	err = order.Cancel()
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestOrder_CancelPath(t *testing.T) {
	order, err := NewOrder("order-1", 7, testItems())
	require.NoError(t, err)
	require.NoError(t, order.MarkPending("pay-1"))

	require.NoError(t, order.Cancel())
	assert.Equal(t, StatusCancelled, order.Status)

	// 重复取消幂等, 确认被拒
	require.NoError(t, order.Cancel())
	assert.Error(t, order.Confirm())
}

func TestNewOrder_Validation(t *testing.T) {
	_, err := NewOrder("", 7, testItems())
	assert.Error(t, err)

	_, err = NewOrder("order-1", 0, testItems())
	assert.Error(t, err)

	_, err = NewOrder("order-1", 7, nil)
	assert.Error(t, err)

	_, err = NewOrder("order-1", 7, []OrderItem{{ProductID: 1001, Quantity: 0}})
	assert.Error(t, err)
}

func TestSubtotalOf(t *testing.T) {
	assert.Equal(t, int64(25000), SubtotalOf(testItems()))
	assert.Equal(t, int64(0), SubtotalOf(nil))
}

func TestBuildQuote(t *testing.T) {
	t.Run("normal quote", func(t *testing.T) {
		q, err := BuildQuote(25000, 2000, 500)
		require.NoError(t, err)
		assert.Equal(t, int64(22500), q.Payable)
	})

	t.Run("payable exactly zero", func(t *testing.T) {
		q, err := BuildQuote(1000, 500, 500)
		require.NoError(t, err)
		assert.Equal(t, int64(0), q.Payable)
	})

	t.Run("negative payable rejected", func(t *testing.T) {
		_, err := BuildQuote(1000, 800, 500)
		assert.True(t, errors.Is(err, ErrNegativePayable))
	})

	t.Run("negative inputs rejected", func(t *testing.T) {
		_, err := BuildQuote(-1, 0, 0)
		assert.True(t, errors.Is(err, ErrNegativePayable))
	})
}
