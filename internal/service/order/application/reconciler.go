// internal/service/order/application/reconciler.go
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/pkg/logger"
	"tally/internal/service/order/domain"
	"tally/internal/service/order/domain/port"
)

// Reconciler 是异步支付信号丢失时的兜底:
// 周期性找出停留在 PENDING 超过阈值的订单, 主动向网关询问真实状态,
// 再把结果交给补偿管线走与正常回调完全相同的路径。
type Reconciler struct {
	store    domain.SettlementStore
	gateway  port.PaymentGateway
	pipeline *CompensationPipeline
	tracer   trace.Tracer

	pendingTimeout time.Duration
	batchSize      int
}

func NewReconciler(store domain.SettlementStore, gateway port.PaymentGateway, pipeline *CompensationPipeline, tracer trace.Tracer, pendingTimeout time.Duration) *Reconciler {
	if pendingTimeout <= 0 {
		pendingTimeout = 5 * time.Minute
	}
	return &Reconciler{
		store:          store,
		gateway:        gateway,
		pipeline:       pipeline,
		tracer:         tracer,
		pendingTimeout: pendingTimeout,
		batchSize:      100,
	}
}

// SweepOnce 执行一轮对账, 返回本轮处理的订单数。
func (r *Reconciler) SweepOnce(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "reconciler.SweepOnce")
	defer span.End()

	cutoff := time.Now().Add(-r.pendingTimeout)
	stuck, err := r.store.Orders().ListPendingBefore(ctx, cutoff, r.batchSize)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("stuck_orders", len(stuck)))
	if len(stuck) == 0 {
		return 0, nil
	}

	logger.Ctx(ctx).Warn().
		Int("count", len(stuck)).
		Dur("pending_timeout", r.pendingTimeout).
		Msg("found orders stuck in PENDING, querying gateway")

	handled := 0
	for _, order := range stuck {
		status, err := r.gateway.QueryStatus(ctx, order.PaymentRef)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("order_id", order.ID).
				Msg("gateway status query failed, will retry next sweep")
			continue
		}

		var resolved string
		switch status {
		case domain.PaymentStatusSuccess:
			resolved = domain.PaymentStatusSuccess
		case domain.PaymentStatusFailed:
			resolved = domain.PaymentStatusFailed
		default:
			// 网关也还没有结果, 留到下一轮
			continue
		}

		result := &domain.PaymentResult{
			EventID:        uuid.New().String(),
			TransactionRef: order.PaymentRef,
			Status:         resolved,
			Reason:         "reconciliation sweep",
			OccurredAt:     time.Now(),
		}
		if err := r.pipeline.HandlePaymentResult(ctx, result); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("order_id", order.ID).
				Msg("reconciliation handling failed")
			continue
		}
		handled++
	}
	return handled, nil
}

// Run 以固定周期执行对账直到 ctx 取消。
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("reconciliation sweep failed")
			}
		}
	}
}
