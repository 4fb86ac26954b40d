// internal/service/ledger/ledgertest/store.go
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/service/ledger/domain"
)

// Store 是 domain.Store 的内存实现, 供测试使用。
// 版本语义与 MySQL 实现一致: UpdateVersioned 做 CAS, 失手返回 ErrVersionConflict。
// FindForUpdate 用一把全局互斥锁近似行锁: 第一次带锁读取开始持锁,
// Transact 返回时释放, 并发写同一行的协程由此串行化。
type Store struct {
	mu      sync.Mutex
	stocks  map[int64]domain.StockEntry
	points  map[int64]domain.PointBalance
	coupons map[string]domain.CouponReservation

	rowMu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		stocks:  make(map[int64]domain.StockEntry),
		points:  make(map[int64]domain.PointBalance),
		coupons: make(map[string]domain.CouponReservation),
	}
}

// SeedStock 预置库存行。
func (s *Store) SeedStock(productID, quantity int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks[productID] = domain.StockEntry{ProductID: productID, Quantity: quantity}
}

// SeedPoints 预置积分行。
func (s *Store) SeedPoints(userID, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[userID] = domain.PointBalance{UserID: userID, Amount: amount}
}

// SeedCoupon 预置优惠券行。
func (s *Store) SeedCoupon(c domain.CouponReservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[couponKey(c.UserID, c.CouponCode)] = c
}

// StockQuantity 读当前库存量, 用于断言。
func (s *Store) StockQuantity(productID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stocks[productID].Quantity
}

// PointAmount 读当前积分余额, 用于断言。
func (s *Store) PointAmount(userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points[userID].Amount
}

// CouponStatus 读当前券状态, 用于断言。
func (s *Store) CouponStatus(userID int64, code string) domain.CouponStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coupons[couponKey(userID, code)].Status
}

func couponKey(userID int64, code string) string {
	return fmt.Sprintf("%d:%s", userID, code)
}

// Snapshot 复制三张表的当前内容并返回恢复函数,
// 供在 Store 之上模拟事务回滚的测试设施使用。
func (s *Store) Snapshot() (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stocks := make(map[int64]domain.StockEntry, len(s.stocks))
	for k, v := range s.stocks {
		stocks[k] = v
	}
	points := make(map[int64]domain.PointBalance, len(s.points))
	for k, v := range s.points {
		points[k] = v
	}
	coupons := make(map[string]domain.CouponReservation, len(s.coupons))
	for k, v := range s.coupons {
		coupons[k] = v
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stocks = stocks
		s.points = points
		s.coupons = coupons
	}
}

func (s *Store) Stock() domain.StockRepository    { return &stockRepo{s: s} }
func (s *Store) Points() domain.PointRepository   { return &pointRepo{s: s} }
func (s *Store) Coupons() domain.CouponRepository { return &couponRepo{s: s} }

func (s *Store) Transact(ctx context.Context, fn func(domain.Store) error) error {
	tx := &txStore{s: s}
	err := fn(tx)
	tx.releaseRowLock()
	return err
}

// txStore 绑定一次 Transact 调用, 跟踪行锁持有状态。
type txStore struct {
	s      *Store
	locked bool
}

func (t *txStore) Stock() domain.StockRepository    { return &stockRepo{s: t.s, tx: t} }
func (t *txStore) Points() domain.PointRepository   { return &pointRepo{s: t.s, tx: t} }
func (t *txStore) Coupons() domain.CouponRepository { return &couponRepo{s: t.s, tx: t} }

func (t *txStore) Transact(ctx context.Context, fn func(domain.Store) error) error {
	// 嵌套事务直接在当前作用域执行
	return fn(t)
}

func (t *txStore) acquireRowLock() {
	if !t.locked {
		t.s.rowMu.Lock()
		t.locked = true
	}
}

func (t *txStore) releaseRowLock() {
	if t.locked {
		t.s.rowMu.Unlock()
		t.locked = false
	}
}

// --- stock ---

type stockRepo struct {
	s  *Store
	tx *txStore
}

func (r *stockRepo) Find(ctx context.Context, productID int64) (*domain.StockEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.stocks[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := e
	return &copied, nil
}

func (r *stockRepo) FindForUpdate(ctx context.Context, productID int64) (*domain.StockEntry, error) {
	if r.tx != nil {
		r.tx.acquireRowLock()
	}
	return r.Find(ctx, productID)
}

func (r *stockRepo) UpdateVersioned(ctx context.Context, entry *domain.StockEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.stocks[entry.ProductID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != entry.Version {
		return domain.ErrVersionConflict
	}
	entry.Version++
	r.s.stocks[entry.ProductID] = *entry
	return nil
}

// --- points ---

type pointRepo struct {
	s  *Store
	tx *txStore
}

func (r *pointRepo) FindByUser(ctx context.Context, userID int64) (*domain.PointBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.points[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := b
	return &copied, nil
}

func (r *pointRepo) FindByUserForUpdate(ctx context.Context, userID int64) (*domain.PointBalance, error) {
	if r.tx != nil {
		r.tx.acquireRowLock()
	}
	return r.FindByUser(ctx, userID)
}

func (r *pointRepo) UpdateVersioned(ctx context.Context, balance *domain.PointBalance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.points[balance.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != balance.Version {
		return domain.ErrVersionConflict
	}
	balance.Version++
	r.s.points[balance.UserID] = *balance
	return nil
}

// --- coupons ---

type couponRepo struct {
	s  *Store
	tx *txStore
}

func (r *couponRepo) FindByCode(ctx context.Context, userID int64, code string) (*domain.CouponReservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[couponKey(userID, code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := c
	return &copied, nil
}

func (r *couponRepo) FindByCodeForUpdate(ctx context.Context, userID int64, code string) (*domain.CouponReservation, error) {
	if r.tx != nil {
		r.tx.acquireRowLock()
	}
	return r.FindByCode(ctx, userID, code)
}

func (r *couponRepo) UpdateVersioned(ctx context.Context, coupon *domain.CouponReservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := couponKey(coupon.UserID, coupon.CouponCode)
	stored, ok := r.s.coupons[key]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != coupon.Version {
		return domain.ErrVersionConflict
	}
	coupon.Version++
	r.s.coupons[key] = *coupon
	return nil
}
