// internal/service/order/interfaces/payment_consumer.go
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

// MessageReader 是消费循环依赖的 kafka.Reader 子集。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

// PaymentResultConsumer 监听支付结果 topic 并驱动补偿管线。
// 补偿管线自身幂等, 因此这里的 at-least-once 投递是安全的。
type PaymentResultConsumer struct {
	reader       MessageReader
	pipeline     *application.CompensationPipeline
	dlq          port.DeadLetterSink
	retryBackoff time.Duration
	wg           sync.WaitGroup
}

func NewPaymentResultConsumer(reader MessageReader, pipeline *application.CompensationPipeline, dlq port.DeadLetterSink) *PaymentResultConsumer {
	return &PaymentResultConsumer{reader: reader, pipeline: pipeline, dlq: dlq, retryBackoff: time.Second}
}

func (c *PaymentResultConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.L().Info().Str("topic", c.reader.Config().Topic).Msg("payment result consumer started ✅")
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.L().Info().Msg("payment result consumer shutting down 🛑")
					return
				}
				logger.L().Error().Err(err).Msg("fetch message failed, retrying")
				time.Sleep(time.Second)
				continue
			}

			// 提交靠后的 offset 会隐式确认该分区之前的全部 offset,
			// 所以瞬态失败必须原地重试, 不能跳过去拉下一条。
			for !c.process(ctx, msg) {
				select {
				case <-ctx.Done():
					logger.L().Info().Msg("payment result consumer shutting down 🛑")
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

func (c *PaymentResultConsumer) Stop() {
	c.reader.Close()
	c.wg.Wait()
}

// process 返回该条消息是否可以提交 offset。
// 瞬态失败 (如数据库不可用) 由调用方原地重试; 毒消息进死信后提交。
func (c *PaymentResultConsumer) process(parentCtx context.Context, msg kafka.Message) bool {
	ctx := mq.ExtractTraceContext(parentCtx, msg.Headers)

	var result domain.PaymentResult
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("malformed payment result, dead-lettering")
		if c.dlq != nil {
			if dlqErr := c.dlq.Publish(ctx, "payment_result_unmarshal", msg.Value); dlqErr != nil {
				logger.Ctx(ctx).Error().Err(dlqErr).Msg("dead letter publish failed")
				return false
			}
		}
		return true
	}

	if err := c.pipeline.HandlePaymentResult(ctx, &result); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("payment_ref", result.TransactionRef).
			Msg("payment result handling failed, retrying in place")
		return false
	}
	return true
}
