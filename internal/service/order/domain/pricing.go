// internal/service/order/domain/pricing.go
package domain

import "fmt"

// Quote 是一次下单的纯计价结果。全部在账本变更之前算出:
// 应付金额为负这类财务错误必须在任何库存/积分/券的变更发生前被拒绝。
type Quote struct {
	Subtotal       int64
	CouponDiscount int64
	PlannedPoints  int64
	Payable        int64
}

// SubtotalOf 按下单时刻捕获的单价计算小计。
func SubtotalOf(items []OrderItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.LineTotal()
	}
	return sum
}

// BuildQuote 组合小计、优惠与计划积分得到应付金额。
// discount 与 plannedPoints 应当分别已被收敛到 [0, subtotal] 与
// [0, subtotal-discount] 区间, 这里仍整体校验兜底。
func BuildQuote(subtotal, discount, plannedPoints int64) (Quote, error) {
	if subtotal < 0 || discount < 0 || plannedPoints < 0 {
		return Quote{}, fmt.Errorf("%w: subtotal=%d discount=%d points=%d", ErrNegativePayable, subtotal, discount, plannedPoints)
	}
	payable := subtotal - discount - plannedPoints
	if payable < 0 {
		return Quote{}, fmt.Errorf("%w: subtotal=%d discount=%d points=%d", ErrNegativePayable, subtotal, discount, plannedPoints)
	}
	return Quote{
		Subtotal:       subtotal,
		CouponDiscount: discount,
		PlannedPoints:  plannedPoints,
		Payable:        payable,
	}, nil
}
