// internal/service/ranking/domain/events.go
package domain

import "time"

// 商品事件类型。
const (
	EventTypeView = "PRODUCT_VIEWED"
	EventTypeLike = "PRODUCT_LIKED"
	EventTypeSale = "ORDER_CREATED"
)

// ProductEvent 是入站的商品行为事件。EventID 全局唯一, 是去重依据。
//
// LIKE 事件的 LikeTotal 是所属聚合给出的最新总数;
// 带总数时直接写入该值 (重放安全), 缺省时退化为 +1。
type ProductEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	ProductID  int64     `json:"product_id"`
	UserID     int64     `json:"user_id,omitempty"`
	Quantity   int64     `json:"quantity,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	LikeTotal  *int64    `json:"like_total,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RankingEntry 是榜单里的一行。
type RankingEntry struct {
	ProductID int64   `json:"product_id"`
	Rank      int     `json:"rank"`
	Score     float64 `json:"score"`
}

// SnapshotRow 是落库的榜单快照行, 周期内不可变。
type SnapshotRow struct {
	PeriodKey string
	Period    Period
	Rank      int
	ProductID int64
	Score     float64
	CreatedAt time.Time
}
