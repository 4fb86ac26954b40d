// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"

	ledgerdomain "tally/internal/service/ledger/domain"
)

// OrderRepository 是订单聚合的持久化端口。
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByPaymentRef(ctx context.Context, ref string) (*Order, error)

	// UpdateStatusFrom 做条件状态迁移: 仅当当前状态等于 from 时写入 to。
	// 返回是否真的发生了迁移。这是补偿路径的 run-once 闸门。
	UpdateStatusFrom(ctx context.Context, id string, from, to Status) (bool, error)

	// ListPendingBefore 找出在 cutoff 之前就进入 PENDING 且仍未终结的订单,
	// 供对账任务兜底。
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Order, error)
}

// OutboxMessage 是待投递的事实。与业务变更写在同一事务里,
// 由独立的投递器在提交之后发出。
type OutboxMessage struct {
	ID         int64
	Topic      string
	Key        string
	Payload    []byte
	CreatedAt  time.Time
	Dispatched bool
}

// OutboxRepository 是 outbox 的持久化端口。
type OutboxRepository interface {
	Append(ctx context.Context, msg *OutboxMessage) error
	FetchUndispatched(ctx context.Context, limit int) ([]*OutboxMessage, error)
	MarkDispatched(ctx context.Context, ids []int64) error
}

// UserRepository 只承担下单前的存在性校验。
type UserRepository interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// Product 是商品读模型: 下单时捕获的名称与价格。
type Product struct {
	ID    int64
	Name  string
	Price int64
}

// ProductRepository 是商品读模型端口。
type ProductRepository interface {
	FindByIDs(ctx context.Context, ids []int64) (map[int64]*Product, error)
}

// SettlementStore 聚合一次订单结算涉及的全部仓储, 并提供统一事务边界:
// 库存扣减、订单落库与 outbox 追加必须发生在同一个本地事务里,
// 崩溃不能留下 "扣了库存却没有订单" 的中间态。
type SettlementStore interface {
	Orders() OrderRepository
	Outbox() OutboxRepository
	Users() UserRepository
	Products() ProductRepository

	Stock() ledgerdomain.StockRepository
	Points() ledgerdomain.PointRepository
	Coupons() ledgerdomain.CouponRepository

	Transact(ctx context.Context, fn func(SettlementStore) error) error
}
