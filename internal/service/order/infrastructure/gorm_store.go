// internal/service/order/infrastructure/gorm_store.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	ledgerdomain "tally/internal/service/ledger/domain"
	ledgerinfra "tally/internal/service/ledger/infrastructure"
	"tally/internal/service/order/domain"
)

// GormSettlementStore 实现 domain.SettlementStore。
// 账本三仓储直接复用 ledger 的 GORM 实现并绑定到同一个 *gorm.DB,
// Transact 内拿到的 store 绑在同一事务上, 库存扣减 / 订单落库 /
// outbox 追加因此共享一个提交点。
type GormSettlementStore struct {
	db     *gorm.DB
	ledger *ledgerinfra.GormStore
}

func NewGormSettlementStore(db *gorm.DB) *GormSettlementStore {
	return &GormSettlementStore{db: db, ledger: ledgerinfra.NewGormStore(db)}
}

func (s *GormSettlementStore) Orders() domain.OrderRepository     { return &orderRepo{db: s.db} }
func (s *GormSettlementStore) Outbox() domain.OutboxRepository    { return &outboxRepo{db: s.db} }
func (s *GormSettlementStore) Users() domain.UserRepository       { return &userRepo{db: s.db} }
func (s *GormSettlementStore) Products() domain.ProductRepository { return &productRepo{db: s.db} }

func (s *GormSettlementStore) Stock() ledgerdomain.StockRepository    { return s.ledger.Stock() }
func (s *GormSettlementStore) Points() ledgerdomain.PointRepository   { return s.ledger.Points() }
func (s *GormSettlementStore) Coupons() ledgerdomain.CouponRepository { return s.ledger.Coupons() }

func (s *GormSettlementStore) Transact(ctx context.Context, fn func(domain.SettlementStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormSettlementStore(tx))
	})
}

// --- orders ---

type orderRepo struct {
	db *gorm.DB
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Create(toOrderModel(order)).Error
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Items").First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return toDomainOrder(&model), nil
}

func (r *orderRepo) FindByPaymentRef(ctx context.Context, ref string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Items").First(&model, "payment_ref = ?", ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return toDomainOrder(&model), nil
}

func (r *orderRepo) UpdateStatusFrom(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *orderRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	var models []*OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND updated_at < ?", string(domain.StatusPending), cutoff).
		Order("updated_at asc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(models))
	for _, m := range models {
		orders = append(orders, toDomainOrder(m))
	}
	return orders, nil
}

// --- outbox ---

type outboxRepo struct {
	db *gorm.DB
}

func (r *outboxRepo) Append(ctx context.Context, msg *domain.OutboxMessage) error {
	model := toOutboxModel(msg)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	msg.ID = model.ID
	return nil
}

func (r *outboxRepo) FetchUndispatched(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	var models []*OutboxMessageModel
	err := r.db.WithContext(ctx).
		Where("dispatched = ?", false).
		Order("id asc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	msgs := make([]*domain.OutboxMessage, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, toDomainOutbox(m))
	}
	return msgs, nil
}

func (r *outboxRepo) MarkDispatched(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&OutboxMessageModel{}).
		Where("id IN ?", ids).
		Update("dispatched", true).Error
}

// --- users / products (只读) ---

type userRepo struct {
	db *gorm.DB
}

func (r *userRepo) Exists(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", userID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type productRepo struct {
	db *gorm.DB
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	var models []*ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	products := make(map[int64]*domain.Product, len(models))
	for _, m := range models {
		products[m.ID] = &domain.Product{ID: m.ID, Name: m.Name, Price: m.Price}
	}
	return products, nil
}
