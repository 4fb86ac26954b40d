// internal/service/ledger/application/ops.go
package application

import (
	"context"
	"errors"
	"time"

	"tally/internal/service/ledger/domain"
)

// 本文件是账本变更的最小原语: 读取 → 领域校验 → 版本化写回。
// 它们刻意以仓储为参数, 既能被 Service 在自己的事务里调用,
// 也能被订单编排器嵌进与订单落库同一个事务里复用。

// DeductStock 扣减一个商品的库存。
func DeductStock(ctx context.Context, stocks domain.StockRepository, productID, qty int64) error {
	entry, err := stocks.Find(ctx, productID)
	if err != nil {
		return err
	}
	if err := entry.Deduct(qty); err != nil {
		return err
	}
	return stocks.UpdateVersioned(ctx, entry)
}

// RestoreStock 归还一个商品的库存。
func RestoreStock(ctx context.Context, stocks domain.StockRepository, productID, qty int64) error {
	entry, err := stocks.Find(ctx, productID)
	if err != nil {
		return err
	}
	if err := entry.Restore(qty); err != nil {
		return err
	}
	return stocks.UpdateVersioned(ctx, entry)
}

// UsePoints 按收敛规则使用积分, 返回实际使用量。
// 余额行不存在视为零余额, 使用 0 分, 不算错误。
func UsePoints(ctx context.Context, points domain.PointRepository, userID, requested, orderPrice int64, now time.Time) (int64, error) {
	if requested <= 0 {
		return 0, nil
	}
	balance, err := points.FindByUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	used := domain.ClampUsage(requested, balance.Usable(now), orderPrice)
	if used == 0 {
		return 0, nil
	}
	if err := balance.Use(used); err != nil {
		return 0, err
	}
	if err := points.UpdateVersioned(ctx, balance); err != nil {
		return 0, err
	}
	return used, nil
}

// RestorePoints 归还积分。
func RestorePoints(ctx context.Context, points domain.PointRepository, userID, amount int64) error {
	balance, err := points.FindByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := balance.Restore(amount); err != nil {
		return err
	}
	return points.UpdateVersioned(ctx, balance)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
