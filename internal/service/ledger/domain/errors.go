// internal/service/ledger/domain/errors.go
package domain

import "errors"

// 账本层的错误分类。上层用 errors.Is 做语义判断，
// 基础设施层负责把驱动错误翻译成这里的哨兵值。
var (
	// ErrValidation 输入非法（数量/金额 <= 0 等），未发生任何变更
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientStock 库存不足，扣减被拒绝
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInsufficientPoints 积分余额不足
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrNotFound 目标实体不存在
	ErrNotFound = errors.New("entity not found")

	// ErrVersionConflict 乐观版本校验失败（写入影响 0 行），可重试
	ErrVersionConflict = errors.New("version conflict")

	// ErrConflict 并发冲突且重试预算耗尽 / 行锁等待超时，属于瞬时错误
	ErrConflict = errors.New("concurrent conflict")

	// ErrCouponNotAvailable 优惠券不在可预占状态
	ErrCouponNotAvailable = errors.New("coupon not available")

	// ErrCouponNotReserved 优惠券不在已预占状态，无法确认或释放
	ErrCouponNotReserved = errors.New("coupon not reserved")
)
