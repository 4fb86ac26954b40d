// internal/service/ledger/domain/coupon.go
package domain

import (
	"fmt"
	"time"
)

// CouponStatus 定义优惠券实例的生命周期状态。
// 合法迁移: AVAILABLE→RESERVED→USED, 以及补偿方向的 RESERVED→AVAILABLE。
// USED 是终态; EXPIRED 由后台任务标记, 这里只读。
type CouponStatus string

const (
	CouponAvailable CouponStatus = "AVAILABLE"
	CouponReserved  CouponStatus = "RESERVED"
	CouponUsed      CouponStatus = "USED"
	CouponExpired   CouponStatus = "EXPIRED"
)

// CouponReservation 是某用户持有的一张优惠券实例及其占用状态。
type CouponReservation struct {
	ID         int64
	UserID     int64
	CouponCode string
	TemplateID int64
	Status     CouponStatus
	Version    int64
	ValidFrom  time.Time
	ValidTo    time.Time
	OrderID    string // 预占它的订单, 便于对账
}

// IsUsableAt 检查券在给定时间点是否处于可使用窗口。
func (c *CouponReservation) IsUsableAt(at time.Time) bool {
	if c.Status != CouponAvailable {
		return false
	}
	if !c.ValidFrom.IsZero() && at.Before(c.ValidFrom) {
		return false
	}
	if !c.ValidTo.IsZero() && at.After(c.ValidTo) {
		return false
	}
	return true
}

// Reserve 将券从 AVAILABLE 置为 RESERVED。并发竞争下只有一个调用者能成功，
// 第二个会在这里或版本校验处失败。
func (c *CouponReservation) Reserve(orderID string) error {
	if c.Status != CouponAvailable {
		return fmt.Errorf("%w: coupon %s is %s", ErrCouponNotAvailable, c.CouponCode, c.Status)
	}
	c.Status = CouponReserved
	c.OrderID = orderID
	return nil
}

// Confirm 支付成功后把 RESERVED 落定为 USED。
func (c *CouponReservation) Confirm() error {
	if c.Status == CouponUsed {
		// 幂等: 重复确认不是错误
		return nil
	}
	if c.Status != CouponReserved {
		return fmt.Errorf("%w: coupon %s is %s", ErrCouponNotReserved, c.CouponCode, c.Status)
	}
	c.Status = CouponUsed
	return nil
}

// Release 补偿路径: RESERVED 退回 AVAILABLE。USED 是终态, 不可回退。
func (c *CouponReservation) Release() error {
	if c.Status == CouponAvailable {
		// 幂等: 重复释放不是错误
		return nil
	}
	if c.Status != CouponReserved {
		return fmt.Errorf("%w: coupon %s is %s", ErrCouponNotReserved, c.CouponCode, c.Status)
	}
	c.Status = CouponAvailable
	c.OrderID = ""
	return nil
}
