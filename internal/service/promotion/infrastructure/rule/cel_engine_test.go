package rule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/service/promotion/domain"
)

func TestCELEngineAdapter_Evaluate(t *testing.T) {
	engine, err := NewCELEngineAdapter()
	require.NoError(t, err)
	ctx := context.Background()

	fact := domain.Fact{
		UserID:     7,
		Subtotal:   25000,
		ItemCount:  3,
		ProductIDs: []int64{1001, 1002},
		VIP:        true,
	}

	testCases := []struct {
		name string
		rule string
		want bool
	}{
		{name: "empty rule always passes", rule: "", want: true},
		{name: "threshold met", rule: "subtotal >= 20000", want: true},
		{name: "threshold not met", rule: "subtotal >= 30000", want: false},
		{name: "compound condition", rule: "subtotal >= 20000 && item_count >= 2", want: true},
		{name: "membership check", rule: "1001 in product_ids", want: true},
		{name: "membership miss", rule: "9999 in product_ids", want: false},
		{name: "vip gate", rule: "vip || subtotal >= 100000", want: true},
		{name: "user allowlist", rule: "user_id in [7, 8, 9]", want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := engine.Evaluate(ctx, tc.rule, fact)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCELEngineAdapter_BadRules(t *testing.T) {
	engine, err := NewCELEngineAdapter()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("syntax error", func(t *testing.T) {
		_, err := engine.Evaluate(ctx, "subtotal >=", domain.Fact{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrBadRule))
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := engine.Evaluate(ctx, "moon_phase == 3", domain.Fact{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrBadRule))
	})

	t.Run("non-boolean result", func(t *testing.T) {
		_, err := engine.Evaluate(ctx, "subtotal + 1", domain.Fact{Subtotal: 100})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrBadRule))
	})
}

func TestCELEngineAdapter_CachesPrograms(t *testing.T) {
	engine, err := NewCELEngineAdapter()
	require.NoError(t, err)
	ctx := context.Background()

	// 相同规则重复评估走缓存, 结果随事实变化
	ok, err := engine.Evaluate(ctx, "subtotal >= 100", domain.Fact{Subtotal: 200})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Evaluate(ctx, "subtotal >= 100", domain.Fact{Subtotal: 50})
	require.NoError(t, err)
	assert.False(t, ok)
}
