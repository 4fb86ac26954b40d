// internal/service/ranking/infrastructure/gorm_store.go
package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tally/internal/service/ranking/domain"
)

// GormStore 是 ranking domain.Store 的 GORM 实现。
// 指标计数全部用数据库端表达式原子更新, 并发消费不丢计数。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Metrics() domain.MetricsRepository { return &gormMetricsRepository{db: s.db} }
func (s *GormStore) Processed() domain.ProcessedEventRepository {
	return &gormProcessedRepository{db: s.db}
}
func (s *GormStore) Snapshots() domain.SnapshotRepository { return &gormSnapshotRepository{db: s.db} }

func (s *GormStore) Transact(ctx context.Context, fn func(domain.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// --- metrics ---

type gormMetricsRepository struct {
	db *gorm.DB
}

// upsertCounter 插入或按表达式更新指标行。
func (r *gormMetricsRepository) upsertCounter(ctx context.Context, row *ProductMetricsModel, assignments map[string]interface{}) error {
	assignments["updated_at"] = time.Now()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(row).Error
	return errors.Wrapf(err, "upsert metrics for product %d", row.ProductID)
}

func (r *gormMetricsRepository) IncrementView(ctx context.Context, productID, delta int64) error {
	return r.upsertCounter(ctx,
		&ProductMetricsModel{ProductID: productID, ViewCount: delta},
		map[string]interface{}{"view_count": gorm.Expr("view_count + ?", delta)})
}

func (r *gormMetricsRepository) IncrementLike(ctx context.Context, productID, delta int64) error {
	return r.upsertCounter(ctx,
		&ProductMetricsModel{ProductID: productID, LikeCount: delta},
		map[string]interface{}{"like_count": gorm.Expr("like_count + ?", delta)})
}

func (r *gormMetricsRepository) SetLikeCount(ctx context.Context, productID, total int64) error {
	return r.upsertCounter(ctx,
		&ProductMetricsModel{ProductID: productID, LikeCount: total},
		map[string]interface{}{"like_count": total})
}

func (r *gormMetricsRepository) AddSale(ctx context.Context, productID, qty, amount int64) error {
	return r.upsertCounter(ctx,
		&ProductMetricsModel{ProductID: productID, SalesCount: qty, TotalSalesAmount: amount},
		map[string]interface{}{
			"sales_count":        gorm.Expr("sales_count + ?", qty),
			"total_sales_amount": gorm.Expr("total_sales_amount + ?", amount),
		})
}

func (r *gormMetricsRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]*domain.ProductMetrics, error) {
	if len(ids) == 0 {
		return map[int64]*domain.ProductMetrics{}, nil
	}
	var models []ProductMetricsModel
	if err := r.db.WithContext(ctx).Where("product_id IN ?", ids).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "load product metrics")
	}
	out := make(map[int64]*domain.ProductMetrics, len(models))
	for i := range models {
		m := &models[i]
		out[m.ProductID] = &domain.ProductMetrics{
			ProductID:        m.ProductID,
			ViewCount:        m.ViewCount,
			LikeCount:        m.LikeCount,
			SalesCount:       m.SalesCount,
			TotalSalesAmount: m.TotalSalesAmount,
			LastUpdatedAt:    m.UpdatedAt,
		}
	}
	return out, nil
}

// --- processed events ---

type gormProcessedRepository struct {
	db *gorm.DB
}

func (r *gormProcessedRepository) FilterProcessed(ctx context.Context, group string, eventIDs []string) (map[string]bool, error) {
	if len(eventIDs) == 0 {
		return map[string]bool{}, nil
	}
	var seen []string
	err := r.db.WithContext(ctx).
		Model(&ProcessedEventModel{}).
		Where("consumer_group = ? AND event_id IN ?", group, eventIDs).
		Pluck("event_id", &seen).Error
	if err != nil {
		return nil, errors.Wrap(err, "query processed events")
	}
	out := make(map[string]bool, len(seen))
	for _, id := range seen {
		out[id] = true
	}
	return out, nil
}

func (r *gormProcessedRepository) MarkProcessed(ctx context.Context, group string, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]ProcessedEventModel, 0, len(eventIDs))
	for _, id := range eventIDs {
		rows = append(rows, ProcessedEventModel{EventID: id, ConsumerGroup: group, ProcessedAt: now})
	}
	// 同键重复插入按已处理对待, 不报错
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	return errors.Wrap(err, "mark events processed")
}

// --- snapshots ---

type gormSnapshotRepository struct {
	db *gorm.DB
}

func (r *gormSnapshotRepository) Replace(ctx context.Context, period domain.Period, periodKey string, rows []domain.SnapshotRow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("period = ? AND period_key = ?", string(period), periodKey).
			Delete(&RankingSnapshotModel{}).Error; err != nil {
			return errors.Wrapf(err, "clear snapshot %s", periodKey)
		}
		if len(rows) == 0 {
			return nil
		}
		models := make([]RankingSnapshotModel, 0, len(rows))
		for _, row := range rows {
			models = append(models, RankingSnapshotModel{
				PeriodKey: row.PeriodKey,
				Period:    string(row.Period),
				Rank:      row.Rank,
				ProductID: row.ProductID,
				Score:     row.Score,
				CreatedAt: row.CreatedAt,
			})
		}
		return errors.Wrapf(tx.Create(&models).Error, "write snapshot %s", periodKey)
	})
}

func (r *gormSnapshotRepository) List(ctx context.Context, period domain.Period, periodKey string) ([]domain.SnapshotRow, error) {
	var models []RankingSnapshotModel
	err := r.db.WithContext(ctx).
		Where("period = ? AND period_key = ?", string(period), periodKey).
		Order("`rank` asc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list snapshot %s", periodKey)
	}
	out := make([]domain.SnapshotRow, 0, len(models))
	for _, m := range models {
		out = append(out, domain.SnapshotRow{
			PeriodKey: m.PeriodKey,
			Period:    domain.Period(m.Period),
			Rank:      m.Rank,
			ProductID: m.ProductID,
			Score:     m.Score,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}
