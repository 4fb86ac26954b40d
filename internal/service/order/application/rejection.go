// internal/service/order/application/rejection.go
package application

import (
	"errors"

	ledgerdomain "tally/internal/service/ledger/domain"
	"tally/internal/service/order/domain"
	promodomain "tally/internal/service/promotion/domain"
)

// permanentRejections 是结算的确定性拒绝: 重放同一请求只会得到
// 同样的结果, 没有重试价值。版本冲突和积分竞态不在此列,
// 它们换个时刻重跑可能成功。
var permanentRejections = []error{
	domain.ErrUserNotFound,
	domain.ErrProductNotFound,
	domain.ErrNegativePayable,
	domain.ErrPaymentRejected,
	ledgerdomain.ErrValidation,
	ledgerdomain.ErrInsufficientStock,
	ledgerdomain.ErrInsufficientPoints,
	ledgerdomain.ErrCouponNotAvailable,
	ledgerdomain.ErrNotFound,
	promodomain.ErrTemplateNotFound,
	promodomain.ErrTemplateInactive,
	promodomain.ErrNotEligible,
	promodomain.ErrBadRule,
}

// IsPermanentRejection 判断 PlaceOrder 的失败是否为确定性拒绝。
// 返回 false 的错误 (数据库不可用、支付网关超时、乐观锁冲突等)
// 应当重试而不是丢弃请求。
func IsPermanentRejection(err error) bool {
	for _, sentinel := range permanentRejections {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
