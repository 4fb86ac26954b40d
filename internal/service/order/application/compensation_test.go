package application

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"tally/internal/pkg/metricsx"
	ledgerdomain "tally/internal/service/ledger/domain"
	"tally/internal/service/order/domain"
)

func paymentResult(ref, status string) *domain.PaymentResult {
	return &domain.PaymentResult{
		EventID:        "evt-" + ref,
		TransactionRef: ref,
		Status:         status,
		OccurredAt:     time.Now(),
	}
}

func TestCompensation_PaymentSucceeded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.orch.PlaceOrder(ctx, standardRequest())
	require.NoError(t, err)

	require.NoError(t, h.pipeline.HandlePaymentResult(ctx, paymentResult(order.PaymentRef, domain.PaymentStatusSuccess)))

	persisted := h.store.orderByID(order.ID)
	assert.Equal(t, domain.StatusConfirmed, persisted.Status)
	assert.Equal(t, ledgerdomain.CouponUsed, h.ledger.CouponStatus(7, "WELCOME10"))

	// 成交的资源占用保持不变
	assert.Equal(t, int64(48), h.ledger.StockQuantity(1001))
	assert.Equal(t, int64(0), h.ledger.PointAmount(7))
}

func TestCompensation_PaymentFailed_RestoresEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.orch.PlaceOrder(ctx, standardRequest())
	require.NoError(t, err)
	require.Equal(t, int64(48), h.ledger.StockQuantity(1001))

	require.NoError(t, h.pipeline.HandlePaymentResult(ctx, paymentResult(order.PaymentRef, domain.PaymentStatusFailed)))

	persisted := h.store.orderByID(order.ID)
	assert.Equal(t, domain.StatusCancelled, persisted.Status)

	// 补偿完整性: 库存、积分、券全部回到下单前
	assert.Equal(t, int64(50), h.ledger.StockQuantity(1001))
	assert.Equal(t, int64(10), h.ledger.StockQuantity(1002))
	assert.Equal(t, int64(500), h.ledger.PointAmount(7))
	assert.Equal(t, ledgerdomain.CouponAvailable, h.ledger.CouponStatus(7, "WELCOME10"))
}

// 重放同一个支付失败结果: 状态闸门挡住第二次, 账本不会被二次归还。
func TestCompensation_PaymentFailed_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.orch.PlaceOrder(ctx, standardRequest())
	require.NoError(t, err)

	result := paymentResult(order.PaymentRef, domain.PaymentStatusFailed)
	require.NoError(t, h.pipeline.HandlePaymentResult(ctx, result))
	require.NoError(t, h.pipeline.HandlePaymentResult(ctx, result))
	require.NoError(t, h.pipeline.HandlePaymentResult(ctx, result))

	assert.Equal(t, int64(50), h.ledger.StockQuantity(1001), "stock restored exactly once")
	assert.Equal(t, int64(500), h.ledger.PointAmount(7), "points restored exactly once")
	assert.Equal(t, ledgerdomain.CouponAvailable, h.ledger.CouponStatus(7, "WELCOME10"))
}

func TestCompensation_PaymentSucceeded_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.orch.PlaceOrder(ctx, standardRequest())
	require.NoError(t, err)

	result := paymentResult(order.PaymentRef, domain.PaymentStatusSuccess)
	require.NoError(t, h.pipeline.HandlePaymentResult(ctx, result))
	require.NoError(t, h.pipeline.HandlePaymentResult(ctx, result))

	assert.Equal(t, domain.StatusConfirmed, h.store.orderByID(order.ID).Status)
	assert.Equal(t, ledgerdomain.CouponUsed, h.ledger.CouponStatus(7, "WELCOME10"))
}

// 先成功后失败 (乱序/矛盾信号): 订单已 CONFIRMED, 失败信号被闸门丢弃。
func TestCompensation_ConflictingSignals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.orch.PlaceOrder(ctx, standardRequest())
	require.NoError(t, err)

	require.NoError(t, h.pipeline.HandlePaymentResult(ctx, paymentResult(order.PaymentRef, domain.PaymentStatusSuccess)))
	require.NoError(t, h.pipeline.HandlePaymentResult(ctx, paymentResult(order.PaymentRef, domain.PaymentStatusFailed)))

	assert.Equal(t, domain.StatusConfirmed, h.store.orderByID(order.ID).Status)
	assert.Equal(t, int64(48), h.ledger.StockQuantity(1001), "confirmed order keeps its stock deduction")
}

// 部分补偿失败时订单仍然终结为 CANCELLED, 但结果不能伪装成完整归还:
// 单独计数、进死信, 剩余的归还照常生效。
func TestCompensation_PartialRestoreFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.orch.PlaceOrder(ctx, standardRequest())
	require.NoError(t, err)

	// 券被外部流程抢先核销, ReleaseCoupon 必然失败
	h.ledger.SeedCoupon(ledgerdomain.CouponReservation{
		UserID:     7,
		CouponCode: "WELCOME10",
		TemplateID: 1,
		Status:     ledgerdomain.CouponUsed,
	})

	incompleteBefore := testutil.ToFloat64(metricsx.OrdersSettled.WithLabelValues("cancelled_incomplete"))
	cancelledBefore := testutil.ToFloat64(metricsx.OrdersSettled.WithLabelValues("cancelled"))

	require.NoError(t, h.pipeline.HandlePaymentResult(ctx, paymentResult(order.PaymentRef, domain.PaymentStatusFailed)))

	assert.Equal(t, domain.StatusCancelled, h.store.orderByID(order.ID).Status)
	assert.Contains(t, h.dlq.reasons(), "compensation_incomplete")

	// 失败的那一路不影响其余补偿
	assert.Equal(t, int64(50), h.ledger.StockQuantity(1001))
	assert.Equal(t, int64(10), h.ledger.StockQuantity(1002))
	assert.Equal(t, int64(500), h.ledger.PointAmount(7))
	assert.Equal(t, ledgerdomain.CouponUsed, h.ledger.CouponStatus(7, "WELCOME10"))

	assert.Equal(t, incompleteBefore+1, testutil.ToFloat64(metricsx.OrdersSettled.WithLabelValues("cancelled_incomplete")))
	assert.Equal(t, cancelledBefore, testutil.ToFloat64(metricsx.OrdersSettled.WithLabelValues("cancelled")), "degraded outcome must not count as a clean cancellation")
}

func TestCompensation_UnknownPaymentRef(t *testing.T) {
	h := newHarness(t)

	err := h.pipeline.HandlePaymentResult(context.Background(), paymentResult("pay-ghost", domain.PaymentStatusFailed))
	require.NoError(t, err, "unknown order must not block the consumer group")
	assert.Contains(t, h.dlq.reasons(), "order_not_found")
}

func TestReconciler_SweepResolvesStuckOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.orch.PlaceOrder(ctx, standardRequest())
	require.NoError(t, err)

	// 网关侧实际已失败, 但异步信号丢了
	h.gateway.statuses[order.PaymentRef] = domain.PaymentStatusFailed

	rec := NewReconciler(h.store, h.gateway, h.pipeline, otel.Tracer("order-test"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	handled, err := rec.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	assert.Equal(t, domain.StatusCancelled, h.store.orderByID(order.ID).Status)
	assert.Equal(t, int64(50), h.ledger.StockQuantity(1001))
	assert.Equal(t, int64(500), h.ledger.PointAmount(7))
}

func TestReconciler_LeavesUnresolvedOrdersPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.orch.PlaceOrder(ctx, standardRequest())
	require.NoError(t, err)
	// 网关没有给出终态, statuses 缺省返回 PENDING

	rec := NewReconciler(h.store, h.gateway, h.pipeline, otel.Tracer("order-test"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	handled, err := rec.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, handled)
	assert.Equal(t, domain.StatusPending, h.store.orderByID(order.ID).Status)
}
