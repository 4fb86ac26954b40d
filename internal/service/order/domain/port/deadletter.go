// internal/service/order/domain/port/deadletter.go
package port

import "context"

// DeadLetterSink 接收无法继续处理的消息: 反序列化失败的事件、
// 补偿失败需要人工介入的订单。实现通常是一个独立的 kafka topic。
type DeadLetterSink interface {
	Publish(ctx context.Context, reason string, payload []byte) error
}
