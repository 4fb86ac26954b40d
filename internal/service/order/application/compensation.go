// internal/service/order/application/compensation.go
package application

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tally/internal/pkg/logger"
	"tally/internal/pkg/metricsx"
	ledgerapp "tally/internal/service/ledger/application"
	"tally/internal/service/order/domain"
	"tally/internal/service/order/domain/port"
)

// CompensationPipeline 消费异步支付结果并驱动订单终结:
// 成功则 PENDING→CONFIRMED 并核销券; 失败则 PENDING→CANCELLED
// 并归还库存、积分, 释放券。
//
// run-once 闸门是订单状态的条件迁移: 只有把订单从 PENDING 真正推进到
// 终态的那次调用才执行资源补偿, 重放与并发投递都会在闸门处变成 no-op,
// 库存和积分因此不会被二次归还。
// 各资源的补偿相互独立, 单个失败不阻断其余, 失败记录进死信队列兜底。
type CompensationPipeline struct {
	store  domain.SettlementStore
	ledger *ledgerapp.Service
	dlq    port.DeadLetterSink
	tracer trace.Tracer
}

func NewCompensationPipeline(store domain.SettlementStore, ledger *ledgerapp.Service, dlq port.DeadLetterSink, tracer trace.Tracer) *CompensationPipeline {
	return &CompensationPipeline{store: store, ledger: ledger, dlq: dlq, tracer: tracer}
}

// HandlePaymentResult 处理一条支付结果。幂等: 订单已终结时直接返回。
func (p *CompensationPipeline) HandlePaymentResult(ctx context.Context, res *domain.PaymentResult) error {
	ctx, span := p.tracer.Start(ctx, "compensation.HandlePaymentResult", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.ref", res.TransactionRef),
		attribute.String("payment.status", res.Status),
	)

	order, err := p.store.Orders().FindByPaymentRef(ctx, res.TransactionRef)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			// 订单在补偿时已不可见: 记录并丢给死信, 不能卡住整个消费组
			logger.Ctx(ctx).Error().
				Str("payment_ref", res.TransactionRef).
				Msg("payment result for unknown order, dead-lettering")
			p.deadLetter(ctx, "order_not_found", []byte(res.TransactionRef))
			return nil
		}
		return err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	switch res.Status {
	case domain.PaymentStatusSuccess:
		return p.confirm(ctx, order)
	case domain.PaymentStatusFailed:
		return p.cancel(ctx, order, res.Reason)
	default:
		return fmt.Errorf("unknown payment status %q for order %s", res.Status, order.ID)
	}
}

func (p *CompensationPipeline) confirm(ctx context.Context, order *domain.Order) error {
	moved, err := p.store.Orders().UpdateStatusFrom(ctx, order.ID, domain.StatusPending, domain.StatusConfirmed)
	if err != nil {
		return err
	}
	if !moved {
		logger.Ctx(ctx).Debug().Str("order_id", order.ID).Msg("order already finalized, skipping confirm")
		return nil
	}

	if order.CouponCode != "" {
		if err := p.ledger.ConfirmCoupon(ctx, order.UserID, order.CouponCode); err != nil {
			// 订单已 CONFIRMED 而券核销失败: 留给死信与对账, 不回滚订单
			logger.Ctx(ctx).Error().Err(err).
				Str("order_id", order.ID).
				Str("coupon", order.CouponCode).
				Msg("coupon confirm failed after order confirmation")
			p.deadLetter(ctx, "coupon_confirm_failed", []byte(order.ID))
		}
	}

	metricsx.OrdersSettled.WithLabelValues("confirmed").Inc()
	logger.Ctx(ctx).Info().Str("order_id", order.ID).Msg("order confirmed ✅")
	return nil
}

func (p *CompensationPipeline) cancel(ctx context.Context, order *domain.Order, reason string) error {
	moved, err := p.store.Orders().UpdateStatusFrom(ctx, order.ID, domain.StatusPending, domain.StatusCancelled)
	if err != nil {
		return err
	}
	if !moved {
		logger.Ctx(ctx).Debug().Str("order_id", order.ID).Msg("order already finalized, skipping compensation")
		return nil
	}

	logger.Ctx(ctx).Warn().
		Str("order_id", order.ID).
		Str("reason", reason).
		Msg("payment failed, compensating reserved resources")

	// 三类补偿相互独立, 全部尝试后汇总失败
	var g errgroup.Group

	for _, item := range order.Items {
		item := item
		g.Go(func() error {
			if err := p.ledger.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				metricsx.Compensations.WithLabelValues("stock", "failed").Inc()
				logger.Ctx(ctx).Error().Err(err).
					Str("order_id", order.ID).
					Int64("product_id", item.ProductID).
					Msg("stock restore compensation failed")
				return fmt.Errorf("restore stock %d: %w", item.ProductID, err)
			}
			metricsx.Compensations.WithLabelValues("stock", "ok").Inc()
			return nil
		})
	}

	if order.UsedPoints > 0 {
		g.Go(func() error {
			if err := p.ledger.RestorePoints(ctx, order.UserID, order.UsedPoints); err != nil {
				metricsx.Compensations.WithLabelValues("points", "failed").Inc()
				logger.Ctx(ctx).Error().Err(err).
					Str("order_id", order.ID).
					Msg("points restore compensation failed")
				return fmt.Errorf("restore points: %w", err)
			}
			metricsx.Compensations.WithLabelValues("points", "ok").Inc()
			return nil
		})
	}

	if order.CouponCode != "" {
		g.Go(func() error {
			if err := p.ledger.ReleaseCoupon(ctx, order.UserID, order.CouponCode); err != nil {
				metricsx.Compensations.WithLabelValues("coupon", "failed").Inc()
				logger.Ctx(ctx).Error().Err(err).
					Str("order_id", order.ID).
					Str("coupon", order.CouponCode).
					Msg("coupon release compensation failed")
				return fmt.Errorf("release coupon: %w", err)
			}
			metricsx.Compensations.WithLabelValues("coupon", "ok").Inc()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// 闸门已经关上 (订单已 CANCELLED), 重试只能靠人工/死信,
		// 这里不把错误往上抛以免消费组反复重放
		p.deadLetter(ctx, "compensation_incomplete", []byte(order.ID))
		metricsx.OrdersSettled.WithLabelValues("cancelled_incomplete").Inc()
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", order.ID).
			Msg("order cancelled but part of the restores failed ⚠️")
		return nil
	}

	metricsx.OrdersSettled.WithLabelValues("cancelled").Inc()
	logger.Ctx(ctx).Info().Str("order_id", order.ID).Msg("order cancelled and resources restored")
	return nil
}

func (p *CompensationPipeline) deadLetter(ctx context.Context, reason string, payload []byte) {
	metricsx.DeadLettered.WithLabelValues(reason).Inc()
	if p.dlq == nil {
		return
	}
	if err := p.dlq.Publish(ctx, reason, payload); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("reason", reason).Msg("dead letter publish failed")
	}
}
