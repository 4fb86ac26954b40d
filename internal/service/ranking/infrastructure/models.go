// internal/service/ranking/infrastructure/models.go
package infrastructure

import "time"

// ProductMetricsModel 对应 product_metrics 表, 商品一行。
type ProductMetricsModel struct {
	ProductID        int64 `gorm:"primaryKey"`
	ViewCount        int64 `gorm:"not null;default:0"`
	LikeCount        int64 `gorm:"not null;default:0"`
	SalesCount       int64 `gorm:"not null;default:0"`
	TotalSalesAmount int64 `gorm:"not null;default:0"`
	UpdatedAt        time.Time
}

func (ProductMetricsModel) TableName() string { return "product_metrics" }

// ProcessedEventModel 是去重账, (event_id, consumer_group) 联合主键。
type ProcessedEventModel struct {
	EventID       string `gorm:"primaryKey;size:64"`
	ConsumerGroup string `gorm:"primaryKey;size:64"`
	ProcessedAt   time.Time
}

func (ProcessedEventModel) TableName() string { return "processed_event" }

// RankingSnapshotModel 是固化的榜单快照行。
type RankingSnapshotModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	PeriodKey string `gorm:"size:16;index:idx_snapshot_period,priority:2;not null"`
	Period    string `gorm:"size:8;index:idx_snapshot_period,priority:1;not null"`
	Rank      int    `gorm:"not null"`
	ProductID int64  `gorm:"not null"`
	Score     float64
	CreatedAt time.Time
}

func (RankingSnapshotModel) TableName() string { return "ranking_snapshot" }
