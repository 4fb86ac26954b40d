// internal/service/ledger/domain/points.go
package domain

import (
	"fmt"
	"time"
)

// PointBalance 是用户的积分余额账本项。
type PointBalance struct {
	UserID    int64
	Amount    int64
	Version   int64
	ExpiresAt time.Time
}

// Usable 返回当前可用积分。过期积分视同为零。
func (b *PointBalance) Usable(now time.Time) int64 {
	if !b.ExpiresAt.IsZero() && now.After(b.ExpiresAt) {
		return 0
	}
	return b.Amount
}

// Use 扣减积分。调用方应先通过 ClampUsage 把请求值收敛到可用范围。
func (b *PointBalance) Use(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: points amount must be positive, got %d", ErrValidation, amount)
	}
	if b.Amount-amount < 0 {
		return fmt.Errorf("%w: user %d has %d points, requested %d", ErrInsufficientPoints, b.UserID, b.Amount, amount)
	}
	b.Amount -= amount
	return nil
}

// Restore 归还积分（补偿路径）。
func (b *PointBalance) Restore(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: points amount must be positive, got %d", ErrValidation, amount)
	}
	b.Amount += amount
	return nil
}

// ClampUsage 是积分使用量的业务收敛规则:
// 实际使用量 = min(请求量, 可用余额, 订单应付金额)。
// 请求超出可用量时静默收敛而不是报错; 余额为零或请求 <= 0 时使用 0 分。
func ClampUsage(requested, balance, orderPrice int64) int64 {
	if requested <= 0 || balance <= 0 {
		return 0
	}
	used := requested
	if balance < used {
		used = balance
	}
	if orderPrice < used {
		used = orderPrice
	}
	if used < 0 {
		return 0
	}
	return used
}
