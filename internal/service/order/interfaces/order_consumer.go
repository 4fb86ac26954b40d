// internal/service/order/interfaces/order_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"tally/internal/pkg/logger"
	"tally/internal/pkg/mq"
	"tally/internal/service/order/application"
	"tally/internal/service/order/domain"
	"tally/internal/service/order/domain/port"
)

// OrderConsumer 是驱动适配器: 监听下单请求 topic 并驱动编排器。
// 使用 FetchMessage + 手动 CommitMessages, 业务处理完成后才提交 offset。
type OrderConsumer struct {
	reader       MessageReader
	orchestrator *application.Orchestrator
	dlq          port.DeadLetterSink
	retryBackoff time.Duration
	wg           sync.WaitGroup
}

func NewOrderConsumer(reader MessageReader, orchestrator *application.Orchestrator, dlq port.DeadLetterSink) *OrderConsumer {
	return &OrderConsumer{reader: reader, orchestrator: orchestrator, dlq: dlq, retryBackoff: time.Second}
}

// Start 启动消费循环。长期运行, ctx 取消后退出。
func (c *OrderConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.L().Info().Str("topic", c.reader.Config().Topic).Msg("order consumer started ✅")
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.L().Info().Msg("order consumer shutting down 🛑")
					return
				}
				logger.L().Error().Err(err).Msg("fetch message failed, retrying")
				time.Sleep(time.Second)
				continue
			}

			// 瞬态失败原地重试: 提交靠后的 offset 会隐式确认之前的
			// 全部 offset, 跳过去就等于永久丢掉这笔下单请求。
			for !c.process(ctx, msg) {
				select {
				case <-ctx.Done():
					logger.L().Info().Msg("order consumer shutting down 🛑")
					return
				case <-time.After(c.retryBackoff):
				}
			}
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.L().Error().Err(err).Msg("commit offset failed")
			}
		}
	}()
}

// Stop 优雅停止消费。
func (c *OrderConsumer) Stop() {
	c.reader.Close()
	c.wg.Wait()
}

// process 返回该条消息是否可以提交 offset。
// 确定性拒绝 (库存不足、用户不存在等) 进死信后提交;
// 瞬态失败 (数据库不可用、乐观锁冲突) 由调用方原地重试。
func (c *OrderConsumer) process(parentCtx context.Context, msg kafka.Message) bool {
	ctx := mq.ExtractTraceContext(parentCtx, msg.Headers)

	var event domain.OrderRequested
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("malformed order request, dead-lettering")
		return c.deadLetter(ctx, "order_request_unmarshal", msg.Value)
	}

	if _, err := c.orchestrator.PlaceOrder(ctx, &event); err != nil {
		if application.IsPermanentRejection(err) {
			// 编排器自身已做补偿, 重放只会得到同样的拒绝
			logger.Ctx(ctx).Error().Err(err).
				Str("order_id", event.EventID).
				Msg("order request rejected, dead-lettering")
			return c.deadLetter(ctx, "order_rejected", msg.Value)
		}
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", event.EventID).
			Msg("order placement failed, retrying in place")
		return false
	}
	return true
}

func (c *OrderConsumer) deadLetter(ctx context.Context, reason string, payload []byte) bool {
	if c.dlq == nil {
		return true
	}
	if err := c.dlq.Publish(ctx, reason, payload); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("dead letter publish failed")
		return false
	}
	return true
}
