// internal/service/ranking/domain/repository.go
package domain

import (
	"context"
	"errors"
)

// MetricsRepository 是 ProductMetrics 的持久化端口。
// 计数更新要求在存储端原子执行 (加法交换律保证并发下不丢更新),
// 点赞的 Set 变体用于事件携带权威总数的场合。
type MetricsRepository interface {
	IncrementView(ctx context.Context, productID, delta int64) error
	IncrementLike(ctx context.Context, productID, delta int64) error
	SetLikeCount(ctx context.Context, productID, total int64) error
	AddSale(ctx context.Context, productID, qty, amount int64) error
	FindByIDs(ctx context.Context, ids []int64) (map[int64]*ProductMetrics, error)
}

// ProcessedEventRepository 维护 (eventId, consumerGroup) 去重账。
type ProcessedEventRepository interface {
	// FilterProcessed 一次查询返回给定事件里已处理过的子集。
	FilterProcessed(ctx context.Context, group string, eventIDs []string) (map[string]bool, error)
	MarkProcessed(ctx context.Context, group string, eventIDs []string) error
}

// SnapshotRepository 是榜单快照的持久化端口。
// Replace 在一个事务里删旧写新, 同一周期键只存在一份快照。
type SnapshotRepository interface {
	Replace(ctx context.Context, period Period, periodKey string, rows []SnapshotRow) error
	List(ctx context.Context, period Period, periodKey string) ([]SnapshotRow, error)
}

// Store 聚合持久化仓储并提供事务边界:
// 指标变更与去重标记必须共享同一个提交点。
type Store interface {
	Metrics() MetricsRepository
	Processed() ProcessedEventRepository
	Snapshots() SnapshotRepository
	Transact(ctx context.Context, fn func(Store) error) error
}

// LiveStore 是近实时榜单的低延迟有序集合端口 (redis)。
// 分数写入是绝对值覆盖而非增量, 事件重放时结果收敛。
type LiveStore interface {
	UpdateScore(ctx context.Context, period Period, periodKey string, productID int64, score float64) error
	Page(ctx context.Context, period Period, periodKey string, page, size int) ([]RankingEntry, error)
	Rank(ctx context.Context, period Period, periodKey string, productID int64) (int, error)
	Score(ctx context.Context, period Period, periodKey string, productID int64) (float64, error)
	TopN(ctx context.Context, period Period, periodKey string, n int) ([]RankingEntry, error)
	// TiedAt 返回分数恰好等于 score 的全部成员, 顺序不保证。
	TiedAt(ctx context.Context, period Period, periodKey string, score float64) ([]RankingEntry, error)
	// CountAbove 返回分数严格大于 score 的成员数。
	CountAbove(ctx context.Context, period Period, periodKey string, score float64) (int, error)
}

// ErrNotRanked 商品尚未进入当期榜单。
var ErrNotRanked = errors.New("ranking: product not ranked in period")
