// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"time"
)

// Status 定义订单的生命周期状态。
// CREATED 只存在于内存中 (落库前); 落库时订单已携带支付引用, 状态为 PENDING。
// CONFIRMED / CANCELLED 是终态, 由支付结果驱动迁移。
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// OrderItem 是订单行。UnitPrice 是下单时刻捕获的价格 (分),
// 之后的改价不影响已生成的订单。
type OrderItem struct {
	ProductID int64
	Name      string
	UnitPrice int64
	Quantity  int64
}

// LineTotal 单行小计。
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * i.Quantity
}

// Order 是订单聚合根。金额一律为分。
type Order struct {
	ID             string
	UserID         int64
	Items          []OrderItem
	CouponCode     string
	CouponDiscount int64
	UsedPoints     int64
	Subtotal       int64
	Payable        int64
	Status         Status
	PaymentRef     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrder 创建一个 CREATED 状态的订单实例。
// 金额字段由编排器在纯计算阶段填入, 这里只做结构性校验。
func NewOrder(id string, userID int64, items []OrderItem) (*Order, error) {
	if id == "" || userID <= 0 || len(items) == 0 {
		return nil, fmt.Errorf("%w: order requires id, user and at least one item", ErrInvalidTransition)
	}
	for _, it := range items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			return nil, fmt.Errorf("order item invalid: product %d quantity %d", it.ProductID, it.Quantity)
		}
	}
	now := time.Now()
	return &Order{
		ID:        id,
		UserID:    userID,
		Items:     items,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkPending 在拿到支付网关的交易引用后把订单推进到 PENDING。
func (o *Order) MarkPending(paymentRef string) error {
	if o.Status != StatusCreated {
		return fmt.Errorf("%w: %s -> PENDING", ErrInvalidTransition, o.Status)
	}
	if paymentRef == "" {
		return fmt.Errorf("%w: payment reference required for PENDING", ErrInvalidTransition)
	}
	o.Status = StatusPending
	o.PaymentRef = paymentRef
	o.UpdatedAt = time.Now()
	return nil
}

// Confirm 支付成功, PENDING -> CONFIRMED。已 CONFIRMED 时幂等。
func (o *Order) Confirm() error {
	if o.Status == StatusConfirmed {
		return nil
	}
	if o.Status != StatusPending {
		return fmt.Errorf("%w: %s -> CONFIRMED", ErrInvalidTransition, o.Status)
	}
	o.Status = StatusConfirmed
	o.UpdatedAt = time.Now()
	return nil
}

// Cancel 支付失败或超时, PENDING -> CANCELLED。已 CANCELLED 时幂等。
func (o *Order) Cancel() error {
	if o.Status == StatusCancelled {
		return nil
	}
	if o.Status != StatusPending {
		return fmt.Errorf("%w: %s -> CANCELLED", ErrInvalidTransition, o.Status)
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now()
	return nil
}
