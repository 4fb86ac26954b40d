// internal/service/ranking/domain/metrics_test.go
package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	w := DefaultWeights()
	cases := []struct {
		name    string
		metrics ProductMetrics
		want    float64
	}{
		{"zero metrics", ProductMetrics{}, 0},
		{"views only", ProductMetrics{ViewCount: 100}, 10},
		{"likes only", ProductMetrics{LikeCount: 50}, 10},
		// log10(999+1) = 3
		{"sales log-damped", ProductMetrics{TotalSalesAmount: 999}, 1.8},
		{"combined", ProductMetrics{ViewCount: 100, LikeCount: 50, TotalSalesAmount: 999}, 21.8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, tc.metrics.Score(w), 1e-9)
		})
	}
}

func TestScore_SalesAmountDamping(t *testing.T) {
	w := DefaultWeights()
	small := ProductMetrics{TotalSalesAmount: 1_000}
	big := ProductMetrics{TotalSalesAmount: 1_000_000}
	// 销售额差三个数量级, 分数差被压到一个常数
	assert.InDelta(t, w.Order*3, big.Score(w)-small.Score(w), 1e-2)
	assert.Less(t, big.Score(w), 4.0)
}

func TestScore_CustomWeights(t *testing.T) {
	m := ProductMetrics{ViewCount: 10, LikeCount: 10, TotalSalesAmount: 9}
	w := Weights{View: 1, Like: 2, Order: 10}
	assert.InDelta(t, 10+20+10*math.Log10(10), m.Score(w), 1e-9)
}
