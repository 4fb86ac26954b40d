// internal/service/order/infrastructure/outbox_dispatcher.go
package infrastructure

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"tally/internal/pkg/logger"
	"tally/internal/pkg/metricsx"
	"tally/internal/pkg/mq"
	"tally/internal/service/order/domain"
)

// OutboxDispatcher 把随业务事务落库的事实投递到 kafka。
// 投递语义是 at-least-once: 标记 dispatched 失败时消息会被重发,
// 下游消费者据 event_id 去重。
type OutboxDispatcher struct {
	outbox domain.OutboxRepository
	writer *kafka.Writer

	interval  time.Duration
	batchSize int
}

func NewOutboxDispatcher(outbox domain.OutboxRepository, writer *kafka.Writer, interval time.Duration) *OutboxDispatcher {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &OutboxDispatcher{
		outbox:    outbox,
		writer:    writer,
		interval:  interval,
		batchSize: 100,
	}
}

// DispatchOnce 投递一批未发出的消息, 返回投递条数。
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	msgs, err := d.outbox.FetchUndispatched(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	dispatched := make([]int64, 0, len(msgs))
	for _, msg := range msgs {
		if err := mq.ProduceMessage(ctx, d.writer, []byte(msg.Key), msg.Payload); err != nil {
			// 发送失败的留在 outbox 里, 下一轮继续; 已成功的仍然要标记
			logger.Ctx(ctx).Error().Err(err).
				Int64("outbox_id", msg.ID).
				Str("key", msg.Key).
				Msg("outbox dispatch failed")
			break
		}
		dispatched = append(dispatched, msg.ID)
	}

	if len(dispatched) > 0 {
		if err := d.outbox.MarkDispatched(ctx, dispatched); err != nil {
			return len(dispatched), err
		}
		metricsx.OutboxDispatched.Add(float64(len(dispatched)))
	}
	return len(dispatched), nil
}

// Run 以固定周期轮询 outbox 直到 ctx 取消。
func (d *OutboxDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	logger.L().Info().Dur("interval", d.interval).Msg("outbox dispatcher started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("outbox dispatch round failed")
			}
		}
	}
}
