// internal/service/ranking/application/aggregator.go
package application

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/pkg/logger"
	"tally/internal/service/ranking/domain"
)

// Aggregator 维护商品热度指标并对外提供榜单读模型。
// 指标真相在数据库 (ProductMetrics), redis ZSET 只是各周期的
// 低延迟投影, 分数总是整行重算后绝对值覆盖, 重放收敛。
type Aggregator struct {
	store   domain.Store
	live    domain.LiveStore
	weights domain.Weights
	tracer  trace.Tracer
}

func NewAggregator(store domain.Store, live domain.LiveStore, weights domain.Weights, tracer trace.Tracer) *Aggregator {
	return &Aggregator{store: store, live: live, weights: weights, tracer: tracer}
}

// apply 把单条事件落到指标行上。携带 LikeTotal 的点赞事件按
// 最终值覆盖 (上游已聚合出权威总数), 否则按增量 +1。
func (a *Aggregator) apply(ctx context.Context, st domain.Store, ev domain.ProductEvent) error {
	switch ev.Type {
	case domain.EventTypeView:
		return st.Metrics().IncrementView(ctx, ev.ProductID, 1)
	case domain.EventTypeLike:
		if ev.LikeTotal != nil {
			return st.Metrics().SetLikeCount(ctx, ev.ProductID, *ev.LikeTotal)
		}
		return st.Metrics().IncrementLike(ctx, ev.ProductID, 1)
	case domain.EventTypeSale:
		return st.Metrics().AddSale(ctx, ev.ProductID, ev.Quantity, ev.Amount)
	default:
		return errors.Errorf("ranking: unknown event type %q", ev.Type)
	}
}

// RefreshScores 重算给定商品的分数并覆盖写入所有周期的 ZSET。
// 在指标事务提交之后调用; redis 写失败只降级榜单新鲜度,
// 不影响已提交的指标, 下一批事件会再次覆盖。
func (a *Aggregator) RefreshScores(ctx context.Context, productIDs []int64, at time.Time) error {
	if len(productIDs) == 0 {
		return nil
	}
	ctx, span := a.tracer.Start(ctx, "ranking.RefreshScores")
	defer span.End()
	span.SetAttributes(attribute.Int("product.count", len(productIDs)))

	rows, err := a.store.Metrics().FindByIDs(ctx, productIDs)
	if err != nil {
		return errors.Wrap(err, "load metrics for score refresh")
	}
	for _, id := range productIDs {
		m, ok := rows[id]
		if !ok {
			continue
		}
		score := m.Score(a.weights)
		for _, p := range domain.AllPeriods() {
			if err := a.live.UpdateScore(ctx, p, p.Key(at), id, score); err != nil {
				return errors.Wrapf(err, "update %s score for product %d", p, id)
			}
		}
	}
	return nil
}

// GetPage 返回某周期的一页榜单, 分数降序, 同分按商品 ID 升序。
// page 从 1 开始。
func (a *Aggregator) GetPage(ctx context.Context, period domain.Period, at time.Time, page, size int) ([]domain.RankingEntry, error) {
	ctx, span := a.tracer.Start(ctx, "ranking.GetPage")
	defer span.End()
	span.SetAttributes(attribute.String("period", string(period)), attribute.Int("page", page))

	if page < 1 || size < 1 {
		return nil, errors.Errorf("ranking: invalid page %d size %d", page, size)
	}
	key := period.Key(at)
	raw, err := a.live.Page(ctx, period, key, page, size)
	if err != nil {
		return nil, err
	}
	start := (page - 1) * size
	entries, err := a.resolveWindow(ctx, period, key, raw, start, size)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = start + i + 1
	}
	return entries, nil
}

// resolveWindow 把 ZSET 里截出的原始窗口换算成规范序
// (分数降序, 同分商品 ID 升序) 下全局 [start, start+count) 的那段。
// ZSET 对同分成员的顺序与规范序无关, 截断边界落在同分块中间时
// 拿到的成员可能是错的, 必须把头尾两个分数的同分块整块取出,
// 重排之后再按全局位置切片。
func (a *Aggregator) resolveWindow(ctx context.Context, period domain.Period, key string, raw []domain.RankingEntry, start, count int) ([]domain.RankingEntry, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	head := raw[0].Score
	tail := raw[len(raw)-1].Score

	seen := make(map[int64]bool, len(raw))
	var candidates []domain.RankingEntry
	add := func(entries []domain.RankingEntry) {
		for _, e := range entries {
			if !seen[e.ProductID] {
				seen[e.ProductID] = true
				candidates = append(candidates, e)
			}
		}
	}
	headTied, err := a.live.TiedAt(ctx, period, key, head)
	if err != nil {
		return nil, err
	}
	add(headTied)
	// 头尾之间的分数块一定完整落在原始窗口内
	add(raw)
	if tail != head {
		tailTied, err := a.live.TiedAt(ctx, period, key, tail)
		if err != nil {
			return nil, err
		}
		add(tailTied)
	}
	sortEntries(candidates)

	// 候选集覆盖全局连续区间 [above, above+len), 从中切出目标窗口
	above, err := a.live.CountAbove(ctx, period, key, head)
	if err != nil {
		return nil, err
	}
	offset := start - above
	if offset < 0 || offset > len(candidates) {
		return nil, errors.Errorf("ranking: window at %d outside candidate block", start)
	}
	end := offset + count
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[offset:end], nil
}

// GetRank 返回商品在某周期榜单的名次 (1 起), 未上榜返回 ErrNotRanked。
func (a *Aggregator) GetRank(ctx context.Context, period domain.Period, at time.Time, productID int64) (int, error) {
	ctx, span := a.tracer.Start(ctx, "ranking.GetRank")
	defer span.End()
	return a.live.Rank(ctx, period, period.Key(at), productID)
}

// GetScore 返回商品在某周期的当前分数。
func (a *Aggregator) GetScore(ctx context.Context, period domain.Period, at time.Time, productID int64) (float64, error) {
	ctx, span := a.tracer.Start(ctx, "ranking.GetScore")
	defer span.End()
	return a.live.Score(ctx, period, period.Key(at), productID)
}

// Snapshot 把某周期当前的 top-N 固化成快照, 替换该周期键下的旧行。
func (a *Aggregator) Snapshot(ctx context.Context, period domain.Period, at time.Time, topN int) error {
	ctx, span := a.tracer.Start(ctx, "ranking.Snapshot")
	defer span.End()
	key := period.Key(at)
	span.SetAttributes(attribute.String("period.key", key), attribute.Int("top_n", topN))

	raw, err := a.live.TopN(ctx, period, key, topN)
	if err != nil {
		return errors.Wrapf(err, "load top %d for %s", topN, key)
	}
	entries, err := a.resolveWindow(ctx, period, key, raw, 0, topN)
	if err != nil {
		return err
	}

	rows := make([]domain.SnapshotRow, 0, len(entries))
	now := time.Now()
	for i, e := range entries {
		rows = append(rows, domain.SnapshotRow{
			PeriodKey: key,
			Period:    period,
			Rank:      i + 1,
			ProductID: e.ProductID,
			Score:     e.Score,
			CreatedAt: now,
		})
	}
	if err := a.store.Snapshots().Replace(ctx, period, key, rows); err != nil {
		return errors.Wrapf(err, "replace snapshot %s", key)
	}
	logger.Ctx(ctx).Info().Str("period_key", key).Int("rows", len(rows)).Msg("ranking snapshot replaced 📸")
	return nil
}

// sortEntries 分数降序, 同分按商品 ID 升序, 保证翻页结果稳定。
func sortEntries(entries []domain.RankingEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ProductID < entries[j].ProductID
	})
}
