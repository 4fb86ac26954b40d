// internal/service/order/application/saga.go
package application

import (
	"context"
	"sync"

	"tally/internal/pkg/logger"
)

// compensationStack 收集编排过程中已成功步骤的反向操作。
// 后注册的先执行 (LIFO), 与资源占用顺序相反地释放。
type compensationStack struct {
	mu    sync.Mutex
	steps []func(ctx context.Context)
}

// Add 注册一个补偿动作。
func (c *compensationStack) Add(step func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append([]func(context.Context){step}, c.steps...)
}

// Trigger 依次执行所有已注册的补偿。
// 单个补偿失败由其自身记录, 不阻断后续补偿。
func (c *compensationStack) Trigger(ctx context.Context, orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.steps) == 0 {
		return
	}
	logger.Ctx(ctx).Warn().
		Str("order_id", orderID).
		Int("steps", len(c.steps)).
		Msg("order settlement failed, rolling back reserved resources")
	for _, step := range c.steps {
		step(ctx)
	}
	c.steps = nil
}
