// internal/service/order/application/rejection_test.go
package application

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	ledgerdomain "tally/internal/service/ledger/domain"
	"tally/internal/service/order/domain"
	promodomain "tally/internal/service/promotion/domain"
)

func TestIsPermanentRejection(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"user not found", fmt.Errorf("%w: user 9", domain.ErrUserNotFound), true},
		{"product not found", domain.ErrProductNotFound, true},
		{"negative payable", domain.ErrNegativePayable, true},
		{"payment declined", fmt.Errorf("%w: instrument declined", domain.ErrPaymentRejected), true},
		{"validation", ledgerdomain.ErrValidation, true},
		{"insufficient stock", ledgerdomain.ErrInsufficientStock, true},
		{"insufficient points", ledgerdomain.ErrInsufficientPoints, true},
		{"coupon not available", ledgerdomain.ErrCouponNotAvailable, true},
		{"template not eligible", promodomain.ErrNotEligible, true},
		{"wrapped deep", errors.Wrap(ledgerdomain.ErrInsufficientStock, "reserve stock"), true},

		// 瞬态失败: 重放可能成功, 不能丢弃请求
		{"version conflict", ledgerdomain.ErrVersionConflict, false},
		{"concurrent conflict", errors.Wrap(ledgerdomain.ErrConflict, "place order"), false},
		{"points race", domain.ErrPointsRace, false},
		{"gateway outage", errors.New("payment gateway: connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.permanent, IsPermanentRejection(tc.err))
		})
	}
}
