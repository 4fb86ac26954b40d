// internal/service/ledger/application/service.go
package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/pkg/logger"
	"tally/internal/service/ledger/domain"
	"tally/internal/service/ledger/txn"
)

// Service 是共享资源账本的应用服务: 库存、积分、优惠券占用。
// 每个方法自带事务与并发控制, 策略按资源特性在调用点固定:
// 库存/积分走乐观重试 (热点多、冲突短), 优惠券走行锁 (use-once, 重试无意义)。
type Service struct {
	store  domain.Store
	runner *txn.Runner
	tracer trace.Tracer
}

func NewService(store domain.Store, runner *txn.Runner, tracer trace.Tracer) *Service {
	return &Service{store: store, runner: runner, tracer: tracer}
}

// DeductStock 扣减库存。数量非正是校验错误; 库存不足时拒绝且无任何变更。
func (s *Service) DeductStock(ctx context.Context, productID, qty int64) error {
	ctx, span := s.tracer.Start(ctx, "ledger.DeductStock")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", productID), attribute.Int64("quantity", qty))

	if qty <= 0 {
		return fmt.Errorf("%w: deduct quantity must be positive, got %d", domain.ErrValidation, qty)
	}
	return s.runner.Execute(ctx, txn.OptimisticRetry, "stock", func(ctx context.Context) error {
		return s.store.Transact(ctx, func(st domain.Store) error {
			return DeductStock(ctx, st.Stock(), productID, qty)
		})
	})
}

// RestoreStock 归还库存。
func (s *Service) RestoreStock(ctx context.Context, productID, qty int64) error {
	ctx, span := s.tracer.Start(ctx, "ledger.RestoreStock")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", productID), attribute.Int64("quantity", qty))

	if qty <= 0 {
		return fmt.Errorf("%w: restore quantity must be positive, got %d", domain.ErrValidation, qty)
	}
	return s.runner.Execute(ctx, txn.OptimisticRetry, "stock", func(ctx context.Context) error {
		return s.store.Transact(ctx, func(st domain.Store) error {
			return RestoreStock(ctx, st.Stock(), productID, qty)
		})
	})
}

// UsePoints 使用积分, 返回实际使用量 (见 domain.ClampUsage 的收敛规则)。
func (s *Service) UsePoints(ctx context.Context, userID, requested, orderPrice int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.UsePoints")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("requested", requested))

	var used int64
	err := s.runner.Execute(ctx, txn.OptimisticRetry, "points", func(ctx context.Context) error {
		return s.store.Transact(ctx, func(st domain.Store) error {
			var err error
			used, err = UsePoints(ctx, st.Points(), userID, requested, orderPrice, time.Now())
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("used", used))
	return used, nil
}

// RestorePoints 归还积分。
func (s *Service) RestorePoints(ctx context.Context, userID, amount int64) error {
	ctx, span := s.tracer.Start(ctx, "ledger.RestorePoints")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.Int64("amount", amount))

	if amount <= 0 {
		return fmt.Errorf("%w: points amount must be positive, got %d", domain.ErrValidation, amount)
	}
	return s.runner.Execute(ctx, txn.OptimisticRetry, "points", func(ctx context.Context) error {
		return s.store.Transact(ctx, func(st domain.Store) error {
			return RestorePoints(ctx, st.Points(), userID, amount)
		})
	})
}

// ReserveCoupon 为订单预占一张券。并发竞争下恰好一个订单成功。
func (s *Service) ReserveCoupon(ctx context.Context, userID int64, code, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "ledger.ReserveCoupon")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.String("coupon.code", code))

	return s.runner.Execute(ctx, txn.PessimisticLock, "coupon", func(ctx context.Context) error {
		return s.store.Transact(ctx, func(st domain.Store) error {
			coupon, err := st.Coupons().FindByCodeForUpdate(ctx, userID, code)
			if err != nil {
				return err
			}
			if !coupon.IsUsableAt(time.Now()) {
				if coupon.Status != domain.CouponAvailable {
					return fmt.Errorf("%w: coupon %s is %s", domain.ErrCouponNotAvailable, code, coupon.Status)
				}
				return fmt.Errorf("%w: coupon %s outside validity window", domain.ErrValidation, code)
			}
			if err := coupon.Reserve(orderID); err != nil {
				return err
			}
			return st.Coupons().UpdateVersioned(ctx, coupon)
		})
	})
}

// ConfirmCoupon 支付成功后把预占落定为已使用。已 USED 时幂等成功。
func (s *Service) ConfirmCoupon(ctx context.Context, userID int64, code string) error {
	ctx, span := s.tracer.Start(ctx, "ledger.ConfirmCoupon")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.String("coupon.code", code))

	return s.runner.Execute(ctx, txn.PessimisticLock, "coupon", func(ctx context.Context) error {
		return s.store.Transact(ctx, func(st domain.Store) error {
			coupon, err := st.Coupons().FindByCodeForUpdate(ctx, userID, code)
			if err != nil {
				return err
			}
			if coupon.Status == domain.CouponUsed {
				logger.Ctx(ctx).Debug().Str("coupon", code).Msg("coupon already confirmed, skipping")
				return nil
			}
			if err := coupon.Confirm(); err != nil {
				return err
			}
			return st.Coupons().UpdateVersioned(ctx, coupon)
		})
	})
}

// ReleaseCoupon 补偿路径: 把预占的券退回可用。已 AVAILABLE 时幂等成功。
func (s *Service) ReleaseCoupon(ctx context.Context, userID int64, code string) error {
	ctx, span := s.tracer.Start(ctx, "ledger.ReleaseCoupon")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID), attribute.String("coupon.code", code))

	return s.runner.Execute(ctx, txn.PessimisticLock, "coupon", func(ctx context.Context) error {
		return s.store.Transact(ctx, func(st domain.Store) error {
			coupon, err := st.Coupons().FindByCodeForUpdate(ctx, userID, code)
			if err != nil {
				return err
			}
			if coupon.Status == domain.CouponAvailable {
				logger.Ctx(ctx).Debug().Str("coupon", code).Msg("coupon already released, skipping")
				return nil
			}
			if err := coupon.Release(); err != nil {
				return err
			}
			return st.Coupons().UpdateVersioned(ctx, coupon)
		})
	})
}
