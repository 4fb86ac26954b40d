// internal/service/ledger/txn/runner.go
package txn

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"tally/internal/pkg/logger"
	"tally/internal/pkg/metricsx"
	"tally/internal/service/ledger/domain"
)

// Strategy 指定一次账本变更采用哪种并发控制方式。
// 注解驱动的选择在这里被显式化: 调用点自己声明策略。
type Strategy int

const (
	// OptimisticRetry 版本校验 + 有界重试。适合热点商品这类
	// 冲突常见但每次持有时间极短的写入。
	OptimisticRetry Strategy = iota

	// PessimisticLock 行锁串行化。适合券核销这类只允许一个赢家、
	// 重试没有意义的写入。操作闭包内必须使用 FindForUpdate 读取。
	PessimisticLock
)

func (s Strategy) String() string {
	switch s {
	case OptimisticRetry:
		return "optimistic_retry"
	case PessimisticLock:
		return "pessimistic_lock"
	default:
		return "unknown"
	}
}

// Runner 在选定策略下执行账本变更闭包。
// 它只负责重试与错误归类, 事务边界由闭包内的 Store.Transact 决定。
type Runner struct {
	maxAttempts int
	backoff     time.Duration
}

// NewRunner 创建执行器。attempts<=0 或 backoff<=0 时采用默认值 (10 次 / 100ms)。
func NewRunner(maxAttempts int, backoff time.Duration) *Runner {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Runner{maxAttempts: maxAttempts, backoff: backoff}
}

// Execute 按策略运行 op。
//   - OptimisticRetry: op 返回 ErrVersionConflict 时从头重试, 最多 maxAttempts 次,
//     每次之间退避 backoff; 预算耗尽后返回 ErrConflict。
//   - PessimisticLock: 直接执行一次, 行锁等待超时由仓储层翻译成 ErrConflict。
//
// resource 只用于指标与日志标注。
func (r *Runner) Execute(ctx context.Context, strategy Strategy, resource string, op func(ctx context.Context) error) error {
	switch strategy {
	case PessimisticLock:
		return op(ctx)

	case OptimisticRetry:
		var lastErr error
		for attempt := 1; attempt <= r.maxAttempts; attempt++ {
			err := op(ctx)
			if err == nil {
				return nil
			}
			if !errors.Is(err, domain.ErrVersionConflict) {
				return err
			}
			lastErr = err
			metricsx.VersionConflicts.WithLabelValues(resource).Inc()
			logger.Ctx(ctx).Debug().
				Str("resource", resource).
				Int("attempt", attempt).
				Msg("optimistic write lost the race, retrying")

			select {
			case <-time.After(r.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		metricsx.RetryExhausted.WithLabelValues(resource).Inc()
		return errors.Wrapf(domain.ErrConflict, "resource %s: %d optimistic attempts exhausted: %v", resource, r.maxAttempts, lastErr)

	default:
		return errors.Errorf("unknown concurrency strategy: %d", strategy)
	}
}
