package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	ledgerdomain "tally/internal/service/ledger/domain"
	"tally/internal/service/ledger/ledgertest"
	"tally/internal/service/order/domain"
	"tally/internal/service/order/domain/port"
	promodomain "tally/internal/service/promotion/domain"
)

// fakeSettlementStore 是 domain.SettlementStore 的内存实现。
// 账本三仓储委托给 ledgertest.Store; Transact 通过整体快照模拟回滚,
// 事务里任意一步失败时库存扣减等已发生的写入全部还原。
type fakeSettlementStore struct {
	mu     sync.Mutex
	ledger *ledgertest.Store

	orders   map[string]*domain.Order
	byRef    map[string]string
	outbox   []*domain.OutboxMessage
	nextID   int64
	users    map[int64]bool
	products map[int64]*domain.Product
}

func newFakeSettlementStore(ledger *ledgertest.Store) *fakeSettlementStore {
	return &fakeSettlementStore{
		ledger:   ledger,
		orders:   make(map[string]*domain.Order),
		byRef:    make(map[string]string),
		users:    make(map[int64]bool),
		products: make(map[int64]*domain.Product),
	}
}

func (s *fakeSettlementStore) Orders() domain.OrderRepository     { return (*fakeOrderRepo)(s) }
func (s *fakeSettlementStore) Outbox() domain.OutboxRepository    { return (*fakeOutboxRepo)(s) }
func (s *fakeSettlementStore) Users() domain.UserRepository       { return (*fakeUserRepo)(s) }
func (s *fakeSettlementStore) Products() domain.ProductRepository { return (*fakeProductRepo)(s) }

func (s *fakeSettlementStore) Stock() ledgerdomain.StockRepository    { return s.ledger.Stock() }
func (s *fakeSettlementStore) Points() ledgerdomain.PointRepository   { return s.ledger.Points() }
func (s *fakeSettlementStore) Coupons() ledgerdomain.CouponRepository { return s.ledger.Coupons() }

func (s *fakeSettlementStore) Transact(ctx context.Context, fn func(domain.SettlementStore) error) error {
	restoreLedger := s.ledger.Snapshot()

	s.mu.Lock()
	ordersBefore := make(map[string]*domain.Order, len(s.orders))
	for k, v := range s.orders {
		copied := *v
		ordersBefore[k] = &copied
	}
	refsBefore := make(map[string]string, len(s.byRef))
	for k, v := range s.byRef {
		refsBefore[k] = v
	}
	outboxBefore := append([]*domain.OutboxMessage(nil), s.outbox...)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		restoreLedger()
		s.mu.Lock()
		s.orders = ordersBefore
		s.byRef = refsBefore
		s.outbox = outboxBefore
		s.mu.Unlock()
		return err
	}
	return nil
}

// --- 测试预置与断言辅助 ---

func (s *fakeSettlementStore) seedUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = true
}

func (s *fakeSettlementStore) seedProduct(id int64, name string, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = &domain.Product{ID: id, Name: name, Price: price}
}

func (s *fakeSettlementStore) orderByID(id string) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	copied := *o
	return &copied
}

func (s *fakeSettlementStore) outboxMessages() []*domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.OutboxMessage(nil), s.outbox...)
}

// --- repositories ---

type fakeOrderRepo fakeSettlementStore

func (r *fakeOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("duplicate order %s", order.ID)
	}
	copied := *order
	r.orders[order.ID] = &copied
	if order.PaymentRef != "" {
		r.byRef[order.PaymentRef] = order.ID
	}
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) FindByPaymentRef(ctx context.Context, ref string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRef[ref]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *r.orders[id]
	return &copied, nil
}

func (r *fakeOrderRepo) UpdateStatusFrom(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeOrderRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Status == domain.StatusPending && o.UpdatedAt.Before(cutoff) {
			copied := *o
			out = append(out, &copied)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type fakeOutboxRepo fakeSettlementStore

func (r *fakeOutboxRepo) Append(ctx context.Context, msg *domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	msg.CreatedAt = time.Now()
	copied := *msg
	r.outbox = append(r.outbox, &copied)
	return nil
}

func (r *fakeOutboxRepo) FetchUndispatched(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.OutboxMessage
	for _, m := range r.outbox {
		if !m.Dispatched {
			out = append(out, m)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) MarkDispatched(ctx context.Context, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, m := range r.outbox {
		if set[m.ID] {
			m.Dispatched = true
		}
	}
	return nil
}

type fakeUserRepo fakeSettlementStore

func (r *fakeUserRepo) Exists(ctx context.Context, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[userID], nil
}

type fakeProductRepo fakeSettlementStore

func (r *fakeProductRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]*domain.Product)
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			copied := *p
			out[id] = &copied
		}
	}
	return out, nil
}

// --- 支付网关与死信的测试替身 ---

type fakeGateway struct {
	mu       sync.Mutex
	requests []port.PaymentRequest
	reject   bool
	statuses map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]string)}
}

func (g *fakeGateway) RequestPayment(ctx context.Context, req port.PaymentRequest) (*port.PaymentAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.reject {
		return &port.PaymentAck{Accepted: false, Reason: "instrument declined"}, nil
	}
	return &port.PaymentAck{Accepted: true, TransactionRef: "pay-" + req.OrderID}, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, transactionRef string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if status, ok := g.statuses[transactionRef]; ok {
		return status, nil
	}
	return "PENDING", nil
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type fakeDLQ struct {
	mu      sync.Mutex
	entries []string
}

func (d *fakeDLQ) Publish(ctx context.Context, reason string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, reason)
	return nil
}

func (d *fakeDLQ) reasons() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.entries...)
}

// fakeTemplateRepo 供优惠报价使用。
type fakeTemplateRepo struct {
	templates map[int64]*promodomain.CouponTemplate
}

func (r *fakeTemplateRepo) FindByID(ctx context.Context, id int64) (*promodomain.CouponTemplate, error) {
	tpl, ok := r.templates[id]
	if !ok {
		return nil, promodomain.ErrTemplateNotFound
	}
	copied := *tpl
	return &copied, nil
}
