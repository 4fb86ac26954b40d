// internal/service/ranking/interfaces/event_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"tally/internal/pkg/logger"
	"tally/internal/pkg/mq"
	"tally/internal/service/ranking/application"
	"tally/internal/service/ranking/domain"
)

// DeadLetterSink 接收无法入账的毒消息。
type DeadLetterSink interface {
	Publish(ctx context.Context, reason string, payload []byte) error
}

// MessageReader 是消费循环依赖的 kafka.Reader 子集。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

// EventConsumer 批量消费商品行为事件。凑满 batchSize 或到达
// flushInterval 就交给幂等处理器, 整批成功后一次性提交 offset。
//
// 提交靠后的 offset 会隐式确认该分区之前的全部 offset,
// 所以失败的批次绝不能跳过去继续消费: 原地退避重试直到成功,
// 重试造成的重放由去重账吸收。
type EventConsumer struct {
	reader        MessageReader
	processor     *application.EventProcessor
	dlq           DeadLetterSink
	batchSize     int
	flushInterval time.Duration
	retryBackoff  time.Duration
	wg            sync.WaitGroup
}

func NewEventConsumer(reader MessageReader, processor *application.EventProcessor, dlq DeadLetterSink, batchSize int, flushInterval time.Duration) *EventConsumer {
	if batchSize < 1 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	return &EventConsumer{
		reader:        reader,
		processor:     processor,
		dlq:           dlq,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retryBackoff:  time.Second,
	}
}

// Start 启动消费循环。长期运行, ctx 取消后退出。
func (c *EventConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.L().Info().Str("topic", c.reader.Config().Topic).Msg("ranking event consumer started ✅")

		var (
			batch    []domain.ProductEvent
			messages []kafka.Message
			deadline = time.Now().Add(c.flushInterval)
		)
		// flush 返回 false 表示停机打断了重试, 批次留给下次重投。
		flush := func() bool {
			if len(messages) == 0 {
				deadline = time.Now().Add(c.flushInterval)
				return true
			}
			for !c.handleBatch(ctx, batch) {
				select {
				case <-ctx.Done():
					return false
				case <-time.After(c.retryBackoff):
				}
			}
			if err := c.reader.CommitMessages(ctx, messages...); err != nil {
				logger.L().Error().Err(err).Msg("commit offsets failed")
			}
			batch = batch[:0]
			messages = messages[:0]
			deadline = time.Now().Add(c.flushInterval)
			return true
		}

		for {
			fetchCtx, cancel := context.WithDeadline(ctx, deadline)
			msg, err := c.reader.FetchMessage(fetchCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					flush()
					logger.L().Info().Msg("ranking event consumer shutting down 🛑")
					return
				}
				// 到达 flush 间隔, 先把手里的批次处理掉
				if !flush() {
					logger.L().Info().Msg("ranking event consumer shutting down 🛑")
					return
				}
				if !errors.Is(err, context.DeadlineExceeded) {
					logger.L().Error().Err(err).Msg("fetch message failed, retrying")
					time.Sleep(time.Second)
				}
				continue
			}

			if ev, ok := c.decode(ctx, msg); ok {
				batch = append(batch, ev)
			}
			messages = append(messages, msg)
			if len(messages) >= c.batchSize {
				if !flush() {
					logger.L().Info().Msg("ranking event consumer shutting down 🛑")
					return
				}
			}
		}
	}()
}

// Stop 优雅停止消费。
func (c *EventConsumer) Stop() {
	c.reader.Close()
	c.wg.Wait()
}

// decode 解析一条消息。毒消息进死信后照常参与 offset 提交,
// 不让一条坏报文卡住整个分区。
func (c *EventConsumer) decode(parentCtx context.Context, msg kafka.Message) (domain.ProductEvent, bool) {
	ctx := mq.ExtractTraceContext(parentCtx, msg.Headers)

	var ev domain.ProductEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.EventID == "" || ev.ProductID == 0 {
		logger.Ctx(ctx).Error().Err(err).Msg("malformed product event, dead-lettering")
		if c.dlq != nil {
			if dlqErr := c.dlq.Publish(ctx, "product_event_unmarshal", msg.Value); dlqErr != nil {
				logger.Ctx(ctx).Error().Err(dlqErr).Msg("dead letter publish failed")
			}
		}
		return domain.ProductEvent{}, false
	}
	return ev, true
}

// handleBatch 返回 true 表示这批消息可以提交 offset。
func (c *EventConsumer) handleBatch(ctx context.Context, batch []domain.ProductEvent) bool {
	if len(batch) == 0 {
		// 整批都是毒消息, 已全部进死信
		return true
	}
	if err := c.processor.ProcessBatch(ctx, batch); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int("size", len(batch)).Msg("batch processing failed, retrying in place")
		return false
	}
	return true
}
