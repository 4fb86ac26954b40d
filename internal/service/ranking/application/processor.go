// internal/service/ranking/application/processor.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/pkg/logger"
	"tally/internal/pkg/metricsx"
	"tally/internal/service/ranking/domain"
)

// EventProcessor 以 (eventId, consumerGroup) 为键的幂等事件入口。
// 一个批次只打一次去重查询; 指标落账与去重标记共享一个事务,
// 调用方在本方法成功返回后才提交 kafka 位点, 崩溃只会造成重放,
// 重放会被去重账拦下。
type EventProcessor struct {
	store  domain.Store
	agg    *Aggregator
	group  string
	tracer trace.Tracer
}

func NewEventProcessor(store domain.Store, agg *Aggregator, group string, tracer trace.Tracer) *EventProcessor {
	return &EventProcessor{store: store, agg: agg, group: group, tracer: tracer}
}

// IsProcessed 单条查询, 留给批量接口之外的调用方。
func (p *EventProcessor) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	seen, err := p.store.Processed().FilterProcessed(ctx, p.group, []string{eventID})
	if err != nil {
		return false, err
	}
	return seen[eventID], nil
}

// MarkProcessed 单条标记。
func (p *EventProcessor) MarkProcessed(ctx context.Context, eventID string) error {
	return p.store.Processed().MarkProcessed(ctx, p.group, []string{eventID})
}

// ProcessBatch 处理一批事件: 过滤重放, 剩余的落账并登记去重键,
// 提交后刷新涉及商品的榜单分数。返回 nil 即整批可以提交位点。
func (p *EventProcessor) ProcessBatch(ctx context.Context, events []domain.ProductEvent) error {
	if len(events) == 0 {
		return nil
	}
	ctx, span := p.tracer.Start(ctx, "ranking.ProcessBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(events)))

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.EventID)
	}

	var fresh []domain.ProductEvent
	err := p.store.Transact(ctx, func(st domain.Store) error {
		seen, err := st.Processed().FilterProcessed(ctx, p.group, ids)
		if err != nil {
			return errors.Wrap(err, "dedup membership query")
		}

		fresh = fresh[:0]
		newIDs := make([]string, 0, len(events))
		inBatch := make(map[string]bool, len(events))
		for _, ev := range events {
			// 同批内部的重复 (同一条消息被打包两次) 也属于重放
			if seen[ev.EventID] || inBatch[ev.EventID] {
				continue
			}
			inBatch[ev.EventID] = true
			fresh = append(fresh, ev)
			newIDs = append(newIDs, ev.EventID)
		}
		if len(fresh) == 0 {
			return nil
		}

		for _, ev := range fresh {
			if err := p.agg.apply(ctx, st, ev); err != nil {
				return errors.Wrapf(err, "apply event %s", ev.EventID)
			}
		}
		return st.Processed().MarkProcessed(ctx, p.group, newIDs)
	})
	if err != nil {
		return err
	}

	dupes := len(events) - len(fresh)
	metricsx.EventsProcessed.WithLabelValues(p.group).Add(float64(len(fresh)))
	metricsx.EventsDeduplicated.WithLabelValues(p.group).Add(float64(dupes))
	span.SetAttributes(attribute.Int("batch.applied", len(fresh)), attribute.Int("batch.deduplicated", dupes))

	if len(fresh) == 0 {
		logger.Ctx(ctx).Debug().Int("size", len(events)).Msg("batch fully deduplicated, skipping")
		return nil
	}

	touched := make([]int64, 0, len(fresh))
	seenProduct := make(map[int64]bool, len(fresh))
	for _, ev := range fresh {
		if !seenProduct[ev.ProductID] {
			seenProduct[ev.ProductID] = true
			touched = append(touched, ev.ProductID)
		}
	}
	// 指标已提交, 分数刷新失败只记日志; 下一批会再次覆盖
	if err := p.agg.RefreshScores(ctx, touched, time.Now()); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int("products", len(touched)).Msg("score refresh failed after commit ⚠️")
	}

	logger.Ctx(ctx).Info().
		Str("group", p.group).
		Int("applied", len(fresh)).
		Int("deduplicated", dupes).
		Msg("event batch processed")
	return nil
}
