// internal/service/ledger/infrastructure/gorm_store.go
package infrastructure

import (
	"context"

	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tally/internal/service/ledger/domain"
)

// GormStore 是 domain.Store 的 GORM 实现。
// Transact 内返回的 Store 绑定在事务连接上, gorm 的嵌套事务走 SAVEPOINT。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB 暴露底层连接, 供需要与账本同事务落库的编排方组装自己的 Store。
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) Stock() domain.StockRepository {
	return &gormStockRepository{db: s.db}
}

func (s *GormStore) Points() domain.PointRepository {
	return &gormPointRepository{db: s.db}
}

func (s *GormStore) Coupons() domain.CouponRepository {
	return &gormCouponRepository{db: s.db}
}

func (s *GormStore) Transact(ctx context.Context, fn func(domain.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// translateError 把驱动层错误翻译成账本的错误分类。
// MySQL 1205 是行锁等待超时, 1213 是死锁被选为牺牲者, 都按瞬时冲突上报。
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	var mysqlErr *driver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1205, 1213:
			return errors.Wrap(domain.ErrConflict, mysqlErr.Message)
		}
	}
	return err
}

// --- stock ---

type gormStockRepository struct {
	db *gorm.DB
}

func (r *gormStockRepository) Find(ctx context.Context, productID int64) (*domain.StockEntry, error) {
	var model StockEntryModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&model).Error; err != nil {
		return nil, errors.Wrapf(translateError(err), "stock for product %d", productID)
	}
	return toDomainStock(&model), nil
}

func (r *gormStockRepository) FindForUpdate(ctx context.Context, productID int64) (*domain.StockEntry, error) {
	var model StockEntryModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&model).Error
	if err != nil {
		return nil, errors.Wrapf(translateError(err), "stock for product %d", productID)
	}
	return toDomainStock(&model), nil
}

func (r *gormStockRepository) UpdateVersioned(ctx context.Context, entry *domain.StockEntry) error {
	res := r.db.WithContext(ctx).
		Model(&StockEntryModel{}).
		Where("product_id = ? AND version = ?", entry.ProductID, entry.Version).
		Updates(map[string]interface{}{
			"quantity": entry.Quantity,
			"version":  entry.Version + 1,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	entry.Version++
	return nil
}

// --- points ---

type gormPointRepository struct {
	db *gorm.DB
}

func (r *gormPointRepository) FindByUser(ctx context.Context, userID int64) (*domain.PointBalance, error) {
	var model PointBalanceModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error; err != nil {
		return nil, errors.Wrapf(translateError(err), "points for user %d", userID)
	}
	return toDomainPoints(&model), nil
}

func (r *gormPointRepository) FindByUserForUpdate(ctx context.Context, userID int64) (*domain.PointBalance, error) {
	var model PointBalanceModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&model).Error
	if err != nil {
		return nil, errors.Wrapf(translateError(err), "points for user %d", userID)
	}
	return toDomainPoints(&model), nil
}

func (r *gormPointRepository) UpdateVersioned(ctx context.Context, balance *domain.PointBalance) error {
	res := r.db.WithContext(ctx).
		Model(&PointBalanceModel{}).
		Where("user_id = ? AND version = ?", balance.UserID, balance.Version).
		Updates(map[string]interface{}{
			"amount":  balance.Amount,
			"version": balance.Version + 1,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	balance.Version++
	return nil
}

// --- coupons ---

type gormCouponRepository struct {
	db *gorm.DB
}

func (r *gormCouponRepository) FindByCode(ctx context.Context, userID int64, code string) (*domain.CouponReservation, error) {
	var model CouponReservationModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND coupon_code = ?", userID, code).
		First(&model).Error
	if err != nil {
		return nil, errors.Wrapf(translateError(err), "coupon %s for user %d", code, userID)
	}
	return toDomainCoupon(&model), nil
}

func (r *gormCouponRepository) FindByCodeForUpdate(ctx context.Context, userID int64, code string) (*domain.CouponReservation, error) {
	var model CouponReservationModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND coupon_code = ?", userID, code).
		First(&model).Error
	if err != nil {
		return nil, errors.Wrapf(translateError(err), "coupon %s for user %d", code, userID)
	}
	return toDomainCoupon(&model), nil
}

func (r *gormCouponRepository) UpdateVersioned(ctx context.Context, coupon *domain.CouponReservation) error {
	res := r.db.WithContext(ctx).
		Model(&CouponReservationModel{}).
		Where("id = ? AND version = ?", coupon.ID, coupon.Version).
		Updates(map[string]interface{}{
			"status":   coupon.Status,
			"order_id": couponOrderID(coupon.OrderID),
			"version":  coupon.Version + 1,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	coupon.Version++
	return nil
}
