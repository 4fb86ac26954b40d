// internal/service/ranking/domain/metrics.go
package domain

import (
	"math"
	"time"
)

// ProductMetrics 是商品的聚合计数。浏览/销量单调递增,
// 点赞数以所属聚合的最新值为准 (last-writer-wins)。
type ProductMetrics struct {
	ProductID        int64
	ViewCount        int64
	LikeCount        int64
	SalesCount       int64
	TotalSalesAmount int64
	LastUpdatedAt    time.Time
}

// Weights 是榜单评分权重。
type Weights struct {
	View  float64
	Like  float64
	Order float64
}

// DefaultWeights 是参考策略: 浏览 0.1, 点赞 0.2, 成交 0.6。
func DefaultWeights() Weights {
	return Weights{View: 0.1, Like: 0.2, Order: 0.6}
}

// Score 计算榜单得分。销售额取对数, 头部商品不会完全淹没长尾。
func (m *ProductMetrics) Score(w Weights) float64 {
	return w.View*float64(m.ViewCount) +
		w.Like*float64(m.LikeCount) +
		w.Order*math.Log10(float64(m.TotalSalesAmount)+1)
}
