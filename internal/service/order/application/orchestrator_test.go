package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	ledgerapp "tally/internal/service/ledger/application"
	ledgerdomain "tally/internal/service/ledger/domain"
	"tally/internal/service/ledger/ledgertest"
	"tally/internal/service/ledger/txn"
	"tally/internal/service/order/domain"
	promoapp "tally/internal/service/promotion/application"
	promodomain "tally/internal/service/promotion/domain"
	"tally/internal/service/promotion/infrastructure/rule"
)

type harness struct {
	ledger   *ledgertest.Store
	store    *fakeSettlementStore
	gateway  *fakeGateway
	dlq      *fakeDLQ
	orch     *Orchestrator
	pipeline *CompensationPipeline
}

// newHarness 组装编排器与补偿管线, 预置一个标准场景:
// 用户 7, 商品 1001 (100.00) 库存 50 / 1002 (50.00) 库存 10,
// 积分 500, 券 WELCOME10 绑定模板 1 (满 200.00 减 20.00)。
func newHarness(t *testing.T) *harness {
	t.Helper()

	ledgerStore := ledgertest.NewStore()
	ledgerStore.SeedStock(1001, 50)
	ledgerStore.SeedStock(1002, 10)
	ledgerStore.SeedPoints(7, 500)
	ledgerStore.SeedCoupon(ledgerdomain.CouponReservation{
		UserID:     7,
		CouponCode: "WELCOME10",
		TemplateID: 1,
		Status:     ledgerdomain.CouponAvailable,
	})

	store := newFakeSettlementStore(ledgerStore)
	store.seedUser(7)
	store.seedProduct(1001, "mechanical keyboard", 10000)
	store.seedProduct(1002, "mouse pad", 5000)

	runner := txn.NewRunner(100, time.Millisecond)
	tracer := otel.Tracer("order-test")
	ledgerSvc := ledgerapp.NewService(ledgerStore, runner, tracer)

	engine, err := rule.NewCELEngineAdapter()
	require.NoError(t, err)
	promoSvc := promoapp.NewService(&fakeTemplateRepo{templates: map[int64]*promodomain.CouponTemplate{
		1: {
			ID:           1,
			Status:       promodomain.TemplateActive,
			DiscountType: promodomain.DiscountTypeFixedAmount,
			Threshold:    20000,
			Amount:       2000,
		},
	}}, engine, tracer)

	gateway := newFakeGateway()
	dlq := &fakeDLQ{}
	return &harness{
		ledger:   ledgerStore,
		store:    store,
		gateway:  gateway,
		dlq:      dlq,
		orch:     NewOrchestrator(store, ledgerSvc, promoSvc, gateway, runner, tracer, 5*time.Second),
		pipeline: NewCompensationPipeline(store, ledgerSvc, dlq, tracer),
	}
}

func standardRequest() *domain.OrderRequested {
	return &domain.OrderRequested{
		EventID: "order-1",
		UserID:  7,
		Items: []domain.RequestedItem{
			{ProductID: 1001, Quantity: 2},
			{ProductID: 1002, Quantity: 1},
		},
		CouponCode:      "WELCOME10",
		RequestedPoints: 800,
		OccurredAt:      time.Now(),
	}
}

func TestOrchestrator_PlaceOrder(t *testing.T) {
	h := newHarness(t)

	order, err := h.orch.PlaceOrder(context.Background(), standardRequest())
	require.NoError(t, err)

	// 计价: 小计 250.00, 券减 20.00, 积分收敛到余额 500
	assert.Equal(t, int64(25000), order.Subtotal)
	assert.Equal(t, int64(2000), order.CouponDiscount)
	assert.Equal(t, int64(500), order.UsedPoints)
	assert.Equal(t, int64(22500), order.Payable)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, "pay-order-1", order.PaymentRef)

	// 账本: 库存扣减, 积分清零, 券预占
	assert.Equal(t, int64(48), h.ledger.StockQuantity(1001))
	assert.Equal(t, int64(9), h.ledger.StockQuantity(1002))
	assert.Equal(t, int64(0), h.ledger.PointAmount(7))
	assert.Equal(t, ledgerdomain.CouponReserved, h.ledger.CouponStatus(7, "WELCOME10"))

	// 订单落库, OrderCreated 进入 outbox
	persisted := h.store.orderByID("order-1")
	require.NotNil(t, persisted)
	assert.Equal(t, domain.StatusPending, persisted.Status)

	msgs := h.store.outboxMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.EventTypeOrderCreated, msgs[0].Topic)
	var fact domain.OrderCreated
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &fact))
	assert.Equal(t, "order-1", fact.OrderID)
	assert.Equal(t, int64(22500), fact.Payable)
	assert.Len(t, fact.Items, 2)

	assert.Equal(t, 1, h.gateway.requestCount())
}

func TestOrchestrator_PlaceOrder_NoCouponNoPoints(t *testing.T) {
	h := newHarness(t)

	order, err := h.orch.PlaceOrder(context.Background(), &domain.OrderRequested{
		EventID: "order-2",
		UserID:  7,
		Items:   []domain.RequestedItem{{ProductID: 1002, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10000), order.Subtotal)
	assert.Equal(t, int64(10000), order.Payable)
	assert.Equal(t, int64(500), h.ledger.PointAmount(7), "points untouched")
	assert.Equal(t, ledgerdomain.CouponAvailable, h.ledger.CouponStatus(7, "WELCOME10"))
}

func TestOrchestrator_PlaceOrder_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		h := newHarness(t)
		req := standardRequest()
		req.UserID = 999

		_, err := h.orch.PlaceOrder(ctx, req)
		assert.True(t, errors.Is(err, domain.ErrUserNotFound))
		assert.Equal(t, 0, h.gateway.requestCount())
		assert.Equal(t, int64(50), h.ledger.StockQuantity(1001), "no mutation before validation passes")
	})

	t.Run("unknown product", func(t *testing.T) {
		h := newHarness(t)
		req := standardRequest()
		req.Items = []domain.RequestedItem{{ProductID: 4242, Quantity: 1}}

		_, err := h.orch.PlaceOrder(ctx, req)
		assert.True(t, errors.Is(err, domain.ErrProductNotFound))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		h := newHarness(t)
		req := standardRequest()
		req.Items = []domain.RequestedItem{{ProductID: 1001, Quantity: 0}}

		_, err := h.orch.PlaceOrder(ctx, req)
		assert.True(t, errors.Is(err, ledgerdomain.ErrValidation))
	})

	t.Run("insufficient stock rejected before any mutation", func(t *testing.T) {
		h := newHarness(t)
		req := standardRequest()
		req.Items = []domain.RequestedItem{{ProductID: 1002, Quantity: 20}}

		_, err := h.orch.PlaceOrder(ctx, req)
		assert.True(t, errors.Is(err, ledgerdomain.ErrInsufficientStock))
		assert.Equal(t, int64(10), h.ledger.StockQuantity(1002))
		assert.Equal(t, int64(500), h.ledger.PointAmount(7))
		assert.Equal(t, ledgerdomain.CouponAvailable, h.ledger.CouponStatus(7, "WELCOME10"))
		assert.Equal(t, 0, h.gateway.requestCount())
	})

	t.Run("coupon already reserved", func(t *testing.T) {
		h := newHarness(t)
		h.ledger.SeedCoupon(ledgerdomain.CouponReservation{
			UserID:     7,
			CouponCode: "WELCOME10",
			TemplateID: 1,
			Status:     ledgerdomain.CouponReserved,
		})

		_, err := h.orch.PlaceOrder(ctx, standardRequest())
		assert.True(t, errors.Is(err, ledgerdomain.ErrCouponNotAvailable))
		assert.Equal(t, int64(50), h.ledger.StockQuantity(1001))
	})
}

// 支付请求被网关拒绝: 事务整体回滚, saga 补偿释放券与积分,
// 结束后所有账本值回到下单前。
func TestOrchestrator_PlaceOrder_PaymentRejected(t *testing.T) {
	h := newHarness(t)
	h.gateway.reject = true

	_, err := h.orch.PlaceOrder(context.Background(), standardRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPaymentRejected))

	assert.Equal(t, int64(50), h.ledger.StockQuantity(1001), "stock deduction rolled back with the transaction")
	assert.Equal(t, int64(10), h.ledger.StockQuantity(1002))
	assert.Equal(t, int64(500), h.ledger.PointAmount(7), "points restored by compensation")
	assert.Equal(t, ledgerdomain.CouponAvailable, h.ledger.CouponStatus(7, "WELCOME10"), "coupon released by compensation")

	assert.Nil(t, h.store.orderByID("order-1"))
	assert.Empty(t, h.store.outboxMessages())
	assert.Equal(t, 1, h.gateway.requestCount())
}

func TestOrchestrator_PlaceOrder_RuleRejectsCoupon(t *testing.T) {
	h := newHarness(t)

	// 换一个要求至少 5 件商品的模板
	engine, err := rule.NewCELEngineAdapter()
	require.NoError(t, err)
	tracer := otel.Tracer("order-test")
	runner := txn.NewRunner(100, time.Millisecond)
	ledgerSvc := ledgerapp.NewService(h.ledger, runner, tracer)
	promoSvc := promoapp.NewService(&fakeTemplateRepo{templates: map[int64]*promodomain.CouponTemplate{
		1: {
			ID:             1,
			Status:         promodomain.TemplateActive,
			DiscountType:   promodomain.DiscountTypeFixedAmount,
			Amount:         2000,
			RuleDefinition: "item_count >= 5",
		},
	}}, engine, tracer)
	orch := NewOrchestrator(h.store, ledgerSvc, promoSvc, h.gateway, runner, tracer, 5*time.Second)

	_, err = orch.PlaceOrder(context.Background(), standardRequest())
	assert.True(t, errors.Is(err, promodomain.ErrNotEligible))
	assert.Equal(t, int64(50), h.ledger.StockQuantity(1001))
	assert.Equal(t, ledgerdomain.CouponAvailable, h.ledger.CouponStatus(7, "WELCOME10"))
}
