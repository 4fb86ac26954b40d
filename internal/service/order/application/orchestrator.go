// internal/service/order/application/orchestrator.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/pkg/logger"
	"tally/internal/pkg/metricsx"
	ledgerapp "tally/internal/service/ledger/application"
	ledgerdomain "tally/internal/service/ledger/domain"
	"tally/internal/service/ledger/txn"
	"tally/internal/service/order/domain"
	"tally/internal/service/order/domain/port"
	promoapp "tally/internal/service/promotion/application"
	promodomain "tally/internal/service/promotion/domain"
)

// Orchestrator 驱动单笔订单的结算流程:
// 校验 → 纯计价 → 资源预占 (saga) → 扣库存 + 落单 + outbox (单事务) 。
//
// 计价阶段不做任何账本变更, 应付金额非法时在任何变更发生前拒绝。
// 券预占与积分使用是带补偿的 saga 步骤; 库存扣减、订单落库、
// OrderCreated 写入 outbox 在同一个本地事务里, 要么全部生效要么全部回滚。
type Orchestrator struct {
	store   domain.SettlementStore
	ledger  *ledgerapp.Service
	promo   *promoapp.Service
	gateway port.PaymentGateway
	runner  *txn.Runner
	tracer  trace.Tracer
	timeout time.Duration
}

func NewOrchestrator(
	store domain.SettlementStore,
	ledger *ledgerapp.Service,
	promo *promoapp.Service,
	gateway port.PaymentGateway,
	runner *txn.Runner,
	tracer trace.Tracer,
	processingTimeout time.Duration,
) *Orchestrator {
	if processingTimeout <= 0 {
		processingTimeout = 30 * time.Second
	}
	return &Orchestrator{
		store:   store,
		ledger:  ledger,
		promo:   promo,
		gateway: gateway,
		runner:  runner,
		tracer:  tracer,
		timeout: processingTimeout,
	}
}

// PlaceOrder 处理一条下单请求, 成功时返回 PENDING 状态的订单。
func (o *Orchestrator) PlaceOrder(ctx context.Context, req *domain.OrderRequested) (*domain.Order, error) {
	ctx, span := o.tracer.Start(ctx, "order.PlaceOrder", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", req.EventID),
		attribute.Int64("user.id", req.UserID),
	)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	order, err := o.placeOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order settlement failed")
		metricsx.OrdersSettled.WithLabelValues("failed").Inc()
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", req.EventID).
			Int64("user_id", req.UserID).
			Msg("order settlement failed")
		return nil, err
	}

	metricsx.OrdersSettled.WithLabelValues("placed").Inc()
	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Int64("payable", order.Payable).
		Str("payment_ref", order.PaymentRef).
		Msg("order placed, awaiting payment result 💰")
	return order, nil
}

func (o *Orchestrator) placeOrder(ctx context.Context, req *domain.OrderRequested) (*domain.Order, error) {
	// 1. 结构与存在性校验
	items, err := o.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	order, err := domain.NewOrder(req.EventID, req.UserID, items)
	if err != nil {
		return nil, err
	}

	// 2-5. 纯计价: 小计 → 优惠 → 积分收敛 → 应付金额校验。
	// 这段算完之前账本上没有任何变更。
	quote, err := o.buildQuote(ctx, req, items)
	if err != nil {
		return nil, err
	}
	order.Subtotal = quote.Subtotal
	order.CouponDiscount = quote.CouponDiscount
	order.UsedPoints = quote.PlannedPoints
	order.Payable = quote.Payable
	order.CouponCode = req.CouponCode

	// 6a. 资源预占 (saga 步骤, 失败时按注册的反序补偿)
	comps := &compensationStack{}

	if req.CouponCode != "" {
		if err := o.ledger.ReserveCoupon(ctx, req.UserID, req.CouponCode, order.ID); err != nil {
			return nil, err
		}
		comps.Add(func(compCtx context.Context) {
			if err := o.ledger.ReleaseCoupon(compCtx, req.UserID, req.CouponCode); err != nil {
				metricsx.Compensations.WithLabelValues("coupon", "failed").Inc()
				logger.Ctx(compCtx).Error().Err(err).Str("order_id", order.ID).Msg("coupon release compensation failed")
				return
			}
			metricsx.Compensations.WithLabelValues("coupon", "ok").Inc()
		})
	}

	if quote.PlannedPoints > 0 {
		used, err := o.ledger.UsePoints(ctx, req.UserID, quote.PlannedPoints, quote.Subtotal-quote.CouponDiscount)
		if used > 0 {
			comps.Add(func(compCtx context.Context) {
				if err := o.ledger.RestorePoints(compCtx, req.UserID, used); err != nil {
					metricsx.Compensations.WithLabelValues("points", "failed").Inc()
					logger.Ctx(compCtx).Error().Err(err).Str("order_id", order.ID).Msg("points restore compensation failed")
					return
				}
				metricsx.Compensations.WithLabelValues("points", "ok").Inc()
			})
		}
		if err != nil {
			comps.Trigger(ctx, order.ID)
			return nil, err
		}
		if used != quote.PlannedPoints {
			// 余额在计价与落账之间被并发消耗, 应付金额不再成立
			comps.Trigger(ctx, order.ID)
			return nil, fmt.Errorf("%w: planned %d, applied %d", domain.ErrPointsRace, quote.PlannedPoints, used)
		}
	}

	// 6b-8. 扣库存 + 支付请求 + 落单 + outbox。
	// 库存扣减与订单落库在同一事务里; 版本冲突时整个事务重试,
	// 支付请求跨重试只发起一次。
	var ack *port.PaymentAck
	err = o.runner.Execute(ctx, txn.OptimisticRetry, "stock", func(ctx context.Context) error {
		return o.store.Transact(ctx, func(st domain.SettlementStore) error {
			for _, item := range order.Items {
				if err := ledgerapp.DeductStock(ctx, st.Stock(), item.ProductID, item.Quantity); err != nil {
					return err
				}
			}

			if ack == nil {
				var reqErr error
				ack, reqErr = o.gateway.RequestPayment(ctx, port.PaymentRequest{
					OrderID:    order.ID,
					UserID:     order.UserID,
					Amount:     order.Payable,
					Instrument: "DEFAULT",
				})
				if reqErr != nil {
					return reqErr
				}
			}
			if !ack.Accepted {
				return fmt.Errorf("%w: %s", domain.ErrPaymentRejected, ack.Reason)
			}

			if order.Status == domain.StatusCreated {
				if err := order.MarkPending(ack.TransactionRef); err != nil {
					return err
				}
			}
			if err := st.Orders().Create(ctx, order); err != nil {
				return err
			}
			return appendOrderCreated(ctx, st.Outbox(), order)
		})
	})
	if err != nil {
		comps.Trigger(ctx, order.ID)
		return nil, err
	}

	return order, nil
}

// validate 校验用户与商品, 捕获下单时刻的单价, 并做一次非绑定的库存预检。
func (o *Orchestrator) validate(ctx context.Context, req *domain.OrderRequested) ([]domain.OrderItem, error) {
	if req.EventID == "" || len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: request requires event id and items", ledgerdomain.ErrValidation)
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d quantity %d", ledgerdomain.ErrValidation, it.ProductID, it.Quantity)
		}
	}

	exists, err := o.store.Users().Exists(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %d", domain.ErrUserNotFound, req.UserID)
	}

	ids := make([]int64, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := o.store.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", domain.ErrProductNotFound, it.ProductID)
		}

		// 非绑定预检: 明显不足就提前拒绝, 真正的扣减仍由事务里的版本化写入把关
		entry, err := o.store.Stock().Find(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if entry.Quantity < it.Quantity {
			return nil, fmt.Errorf("%w: product %d has %d, requested %d",
				ledgerdomain.ErrInsufficientStock, it.ProductID, entry.Quantity, it.Quantity)
		}

		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		})
	}
	return items, nil
}

// buildQuote 完成全部纯计算: 优惠报价与积分收敛都基于当前读快照。
func (o *Orchestrator) buildQuote(ctx context.Context, req *domain.OrderRequested, items []domain.OrderItem) (domain.Quote, error) {
	subtotal := domain.SubtotalOf(items)

	var discount int64
	if req.CouponCode != "" {
		coupon, err := o.store.Coupons().FindByCode(ctx, req.UserID, req.CouponCode)
		if err != nil {
			return domain.Quote{}, err
		}
		if !coupon.IsUsableAt(time.Now()) {
			return domain.Quote{}, fmt.Errorf("%w: coupon %s is %s",
				ledgerdomain.ErrCouponNotAvailable, req.CouponCode, coupon.Status)
		}

		ids := make([]int64, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		discount, err = o.promo.QuoteDiscount(ctx, coupon.TemplateID, promodomain.Fact{
			UserID:     req.UserID,
			Subtotal:   subtotal,
			ItemCount:  int64(len(items)),
			ProductIDs: ids,
		})
		if err != nil {
			return domain.Quote{}, err
		}
	}

	var planned int64
	if req.RequestedPoints > 0 {
		balance, err := o.store.Points().FindByUser(ctx, req.UserID)
		switch {
		case err == nil:
			planned = ledgerdomain.ClampUsage(req.RequestedPoints, balance.Usable(time.Now()), subtotal-discount)
		case isLedgerNotFound(err):
			planned = 0
		default:
			return domain.Quote{}, err
		}
	}

	return domain.BuildQuote(subtotal, discount, planned)
}

func appendOrderCreated(ctx context.Context, outbox domain.OutboxRepository, order *domain.Order) error {
	items := make([]domain.EventItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, domain.EventItem{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	payload, err := json.Marshal(&domain.OrderCreated{
		EventID:        uuid.New().String(),
		OrderID:        order.ID,
		UserID:         order.UserID,
		Subtotal:       order.Subtotal,
		CouponDiscount: order.CouponDiscount,
		UsedPoints:     order.UsedPoints,
		Payable:        order.Payable,
		Items:          items,
		OccurredAt:     time.Now(),
	})
	if err != nil {
		return err
	}
	return outbox.Append(ctx, &domain.OutboxMessage{
		Topic:   domain.EventTypeOrderCreated,
		Key:     order.ID,
		Payload: payload,
	})
}

func isLedgerNotFound(err error) bool {
	return errors.Is(err, ledgerdomain.ErrNotFound)
}
