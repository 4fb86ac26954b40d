// internal/service/ledger/domain/repository.go
package domain

import "context"

// 账本的持久化端口。位于领域层, 由基础设施层实现。
//
// UpdateVersioned 的约定: 以实体携带的 Version 做条件写入,
// 命中则服务端把 Version+1 并回填到实体; 影响 0 行时返回 ErrVersionConflict。
// FindForUpdate 只在 Store.Transact 内有意义, 它会持有行锁直到事务结束。

type StockRepository interface {
	Find(ctx context.Context, productID int64) (*StockEntry, error)
	FindForUpdate(ctx context.Context, productID int64) (*StockEntry, error)
	UpdateVersioned(ctx context.Context, entry *StockEntry) error
}

type PointRepository interface {
	FindByUser(ctx context.Context, userID int64) (*PointBalance, error)
	FindByUserForUpdate(ctx context.Context, userID int64) (*PointBalance, error)
	UpdateVersioned(ctx context.Context, balance *PointBalance) error
}

type CouponRepository interface {
	FindByCode(ctx context.Context, userID int64, code string) (*CouponReservation, error)
	FindByCodeForUpdate(ctx context.Context, userID int64, code string) (*CouponReservation, error)
	UpdateVersioned(ctx context.Context, coupon *CouponReservation) error
}

// Store 聚合三类账本仓储并提供事务边界。
// Transact 内拿到的 Store 绑定在同一个数据库事务上, 支持嵌套调用。
type Store interface {
	Stock() StockRepository
	Points() PointRepository
	Coupons() CouponRepository
	Transact(ctx context.Context, fn func(Store) error) error
}
