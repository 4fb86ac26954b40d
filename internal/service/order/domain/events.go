// internal/service/order/domain/events.go
package domain

import "time"

// 事件类型。OrderRequested 是入站命令载体,
// OrderCreated 是本地事务提交后经 outbox 发出的事实。
const (
	EventTypeOrderRequested = "ORDER_REQUESTED"
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypePaymentSuccess = "PAYMENT_SUCCESS"
	EventTypePaymentFailed  = "PAYMENT_FAILED"
)

// OrderRequested 是用户下单请求的异步载体。
// EventID 同时作为订单 ID, 保证同一请求重放不会生成两个订单。
type OrderRequested struct {
	EventID         string          `json:"event_id"`
	UserID          int64           `json:"user_id"`
	Items           []RequestedItem `json:"items"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	RequestedPoints int64           `json:"requested_points,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// RequestedItem 是下单请求里的一行。单价在编排时从商品表捕获, 不由请求方提供。
type RequestedItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// OrderCreated 在订单落库的同一事务里写入 outbox, 提交后投递。
// 消费者 (指标/审计) 看到它时订单一定已可读。
type OrderCreated struct {
	EventID        string      `json:"event_id"`
	OrderID        string      `json:"order_id"`
	UserID         int64       `json:"user_id"`
	Subtotal       int64       `json:"subtotal"`
	CouponDiscount int64       `json:"coupon_discount"`
	UsedPoints     int64       `json:"used_points"`
	Payable        int64       `json:"payable"`
	Items          []EventItem `json:"items"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

// EventItem 是事实里的订单行快照。
type EventItem struct {
	ProductID int64 `json:"product_id"`
	UnitPrice int64 `json:"unit_price"`
	Quantity  int64 `json:"quantity"`
}

// PaymentResult 是支付网关的异步结果, 以交易引用关联订单。
type PaymentResult struct {
	EventID        string    `json:"event_id"`
	TransactionRef string    `json:"transaction_ref"`
	Status         string    `json:"status"` // SUCCESS | FAILED
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// 支付结果状态值。
const (
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)
