// internal/service/order/domain/port/payment.go
package port

import "context"

// PaymentRequest 是发往支付网关的支付请求。
type PaymentRequest struct {
	OrderID    string
	UserID     int64
	Amount     int64
	Instrument string
}

// PaymentAck 是网关的同步应答。Accepted 只表示请求被受理,
// 资金是否到账由异步结果回调决定。
type PaymentAck struct {
	Accepted       bool
	TransactionRef string
	Reason         string
}

// PaymentGateway 是外部支付网关的出站端口。
// QueryStatus 是对账任务的轮询兜底, 返回 PENDING / SUCCESS / FAILED。
type PaymentGateway interface {
	RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentAck, error)
	QueryStatus(ctx context.Context, transactionRef string) (string, error)
}
