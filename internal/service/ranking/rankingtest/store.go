// internal/service/ranking/rankingtest/store.go
//
// Package rankingtest 提供榜单存储端口的内存替身, 供各层测试共用。
package rankingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"tally/internal/service/ranking/domain"
)

// Store 是 domain.Store 的内存实现。Transact 在出错时回滚到
// 进入事务前的快照, 模拟数据库事务语义。FailTransacts 可注入
// 瞬态故障, 用于验证调用方的重试与 offset 提交行为。
type Store struct {
	mu            sync.Mutex
	metrics       map[int64]*domain.ProductMetrics
	processed     map[string]bool // group + "|" + eventID
	snapshots     map[string][]domain.SnapshotRow
	failTransacts int
}

func NewStore() *Store {
	return &Store{
		metrics:   make(map[int64]*domain.ProductMetrics),
		processed: make(map[string]bool),
		snapshots: make(map[string][]domain.SnapshotRow),
	}
}

// FailTransacts 让接下来 n 次 Transact 直接失败 (模拟数据库抖动)。
func (s *Store) FailTransacts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTransacts = n
}

func (s *Store) Metrics() domain.MetricsRepository { return (*metricsRepo)(s) }
func (s *Store) Processed() domain.ProcessedEventRepository {
	return (*processedRepo)(s)
}
func (s *Store) Snapshots() domain.SnapshotRepository { return (*snapshotRepo)(s) }

func (s *Store) Transact(ctx context.Context, fn func(domain.Store) error) error {
	s.mu.Lock()
	if s.failTransacts > 0 {
		s.failTransacts--
		s.mu.Unlock()
		return errors.New("rankingtest: injected transact failure")
	}
	metrics := make(map[int64]*domain.ProductMetrics, len(s.metrics))
	for k, v := range s.metrics {
		clone := *v
		metrics[k] = &clone
	}
	processed := make(map[string]bool, len(s.processed))
	for k, v := range s.processed {
		processed[k] = v
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.metrics = metrics
		s.processed = processed
		s.mu.Unlock()
		return err
	}
	return nil
}

type metricsRepo Store

func (r *metricsRepo) row(productID int64) *domain.ProductMetrics {
	m, ok := r.metrics[productID]
	if !ok {
		m = &domain.ProductMetrics{ProductID: productID}
		r.metrics[productID] = m
	}
	return m
}

func (r *metricsRepo) IncrementView(ctx context.Context, productID, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.row(productID)
	m.ViewCount += delta
	m.LastUpdatedAt = time.Now()
	return nil
}

func (r *metricsRepo) IncrementLike(ctx context.Context, productID, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.row(productID)
	m.LikeCount += delta
	m.LastUpdatedAt = time.Now()
	return nil
}

func (r *metricsRepo) SetLikeCount(ctx context.Context, productID, total int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.row(productID)
	m.LikeCount = total
	m.LastUpdatedAt = time.Now()
	return nil
}

func (r *metricsRepo) AddSale(ctx context.Context, productID, qty, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.row(productID)
	m.SalesCount += qty
	m.TotalSalesAmount += amount
	m.LastUpdatedAt = time.Now()
	return nil
}

func (r *metricsRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]*domain.ProductMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]*domain.ProductMetrics, len(ids))
	for _, id := range ids {
		if m, ok := r.metrics[id]; ok {
			clone := *m
			out[id] = &clone
		}
	}
	return out, nil
}

type processedRepo Store

func (r *processedRepo) FilterProcessed(ctx context.Context, group string, eventIDs []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, id := range eventIDs {
		if r.processed[group+"|"+id] {
			out[id] = true
		}
	}
	return out, nil
}

func (r *processedRepo) MarkProcessed(ctx context.Context, group string, eventIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range eventIDs {
		r.processed[group+"|"+id] = true
	}
	return nil
}

type snapshotRepo Store

func (r *snapshotRepo) Replace(ctx context.Context, period domain.Period, periodKey string, rows []domain.SnapshotRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[string(period)+"|"+periodKey] = append([]domain.SnapshotRow(nil), rows...)
	return nil
}

func (r *snapshotRepo) List(ctx context.Context, period domain.Period, periodKey string) ([]domain.SnapshotRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SnapshotRow(nil), r.snapshots[string(period)+"|"+periodKey]...), nil
}

// Live 是 LiveStore 的内存实现。同分成员按商品 ID 降序返回,
// 模拟 redis 对同分成员不保证业务序, 排序责任在聚合器。
type Live struct {
	mu     sync.Mutex
	scores map[string]map[int64]float64 // period|key -> product -> score
}

func NewLive() *Live {
	return &Live{scores: make(map[string]map[int64]float64)}
}

func (l *Live) set(period domain.Period, periodKey string) map[int64]float64 {
	k := string(period) + "|" + periodKey
	if l.scores[k] == nil {
		l.scores[k] = make(map[int64]float64)
	}
	return l.scores[k]
}

func (l *Live) UpdateScore(ctx context.Context, period domain.Period, periodKey string, productID int64, score float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(period, periodKey)[productID] = score
	return nil
}

func (l *Live) sorted(period domain.Period, periodKey string) []domain.RankingEntry {
	members := l.set(period, periodKey)
	entries := make([]domain.RankingEntry, 0, len(members))
	for id, score := range members {
		entries = append(entries, domain.RankingEntry{ProductID: id, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ProductID > entries[j].ProductID
	})
	return entries
}

func (l *Live) Page(ctx context.Context, period domain.Period, periodKey string, page, size int) ([]domain.RankingEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := l.sorted(period, periodKey)
	start := (page - 1) * size
	if start >= len(all) {
		return nil, nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (l *Live) TopN(ctx context.Context, period domain.Period, periodKey string, n int) ([]domain.RankingEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := l.sorted(period, periodKey)
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func (l *Live) TiedAt(ctx context.Context, period domain.Period, periodKey string, score float64) ([]domain.RankingEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var tied []domain.RankingEntry
	for id, s := range l.set(period, periodKey) {
		if s == score {
			tied = append(tied, domain.RankingEntry{ProductID: id, Score: s})
		}
	}
	return tied, nil
}

func (l *Live) CountAbove(ctx context.Context, period domain.Period, periodKey string, score float64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.set(period, periodKey) {
		if s > score {
			n++
		}
	}
	return n, nil
}

func (l *Live) Rank(ctx context.Context, period domain.Period, periodKey string, productID int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.sorted(period, periodKey) {
		if e.ProductID == productID {
			return i + 1, nil
		}
	}
	return 0, domain.ErrNotRanked
}

func (l *Live) Score(ctx context.Context, period domain.Period, periodKey string, productID int64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	score, ok := l.set(period, periodKey)[productID]
	if !ok {
		return 0, domain.ErrNotRanked
	}
	return score, nil
}
