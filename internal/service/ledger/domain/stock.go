// internal/service/ledger/domain/stock.go
package domain

import (
	"fmt"
	"time"
)

// StockEntry 是某个商品的库存账本项。
// Version 由仓储在每次成功写入时递增，是乐观并发控制的依据。
type StockEntry struct {
	ProductID int64
	Quantity  int64
	Version   int64
	UpdatedAt time.Time
}

// Deduct 扣减库存。不变量: 数量永不为负，不足则整体拒绝。
func (s *StockEntry) Deduct(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: deduct quantity must be positive, got %d", ErrValidation, qty)
	}
	if s.Quantity-qty < 0 {
		return fmt.Errorf("%w: product %d has %d, requested %d", ErrInsufficientStock, s.ProductID, s.Quantity, qty)
	}
	s.Quantity -= qty
	return nil
}

// Restore 归还库存（补偿路径）。
func (s *StockEntry) Restore(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: restore quantity must be positive, got %d", ErrValidation, qty)
	}
	s.Quantity += qty
	return nil
}
