// internal/service/order/domain/errors.go
package domain

import "errors"

var (
	// ErrOrderNotFound 订单不存在。
	ErrOrderNotFound = errors.New("order: not found")

	// ErrInvalidTransition 非法的状态迁移。
	ErrInvalidTransition = errors.New("order: invalid status transition")

	// ErrUserNotFound 下单用户不存在。
	ErrUserNotFound = errors.New("order: user not found")

	// ErrProductNotFound 订单行引用的商品不存在。
	ErrProductNotFound = errors.New("order: product not found")

	// ErrNegativePayable 应付金额为负, 属于校验错误, 必须发生在任何账本变更之前。
	ErrNegativePayable = errors.New("order: payable amount is negative")

	// ErrPaymentRejected 支付网关同步拒绝了支付请求。
	ErrPaymentRejected = errors.New("order: payment request rejected")

	// ErrPointsRace 计划使用的积分在落账时已不可用 (余额被并发消耗)。
	ErrPointsRace = errors.New("order: planned points no longer available")
)
