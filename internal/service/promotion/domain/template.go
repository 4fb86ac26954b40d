// internal/service/promotion/domain/template.go
package domain

import "time"

// DiscountType 标识优惠的计算方式。
type DiscountType string

const (
	DiscountTypeFixedAmount DiscountType = "FIXED_AMOUNT" // 满减
	DiscountTypePercentage  DiscountType = "PERCENTAGE"   // 折扣
)

// 模板状态。只有 ACTIVE 的模板参与报价。
const (
	TemplateActive   = "ACTIVE"
	TemplateInactive = "INACTIVE"
	TemplateArchived = "ARCHIVED"
)

// CouponTemplate 是优惠的核心定义, 不可变对象。
// 修改模板应当创建新版本而不是原地更新, 用户券锁定在领取时的版本上。
//
// 金额一律为分。RuleDefinition 是一个 CEL 表达式, 定义适用条件;
// 空串表示无条件适用。
type CouponTemplate struct {
	ID      int64
	Version int32
	Name    string
	Status  string

	RuleDefinition string
	DiscountType   DiscountType

	// FIXED_AMOUNT: 满 Threshold 减 Amount。
	Threshold int64
	Amount    int64

	// PERCENTAGE: 按 Percentage 折扣 (88 = 88折, 支付 88%),
	// Ceiling > 0 时优惠金额封顶。
	Percentage int64
	Ceiling    int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DiscountFor 计算该模板对给定小计金额的优惠额。
// 返回值保证在 [0, subtotal] 区间内; 不满足门槛时为 0。
func (t *CouponTemplate) DiscountFor(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}

	var discount int64
	switch t.DiscountType {
	case DiscountTypeFixedAmount:
		if subtotal < t.Threshold {
			return 0
		}
		discount = t.Amount

	case DiscountTypePercentage:
		if t.Percentage <= 0 || t.Percentage >= 100 {
			return 0
		}
		discount = subtotal * (100 - t.Percentage) / 100
		if t.Ceiling > 0 && discount > t.Ceiling {
			discount = t.Ceiling
		}

	default:
		return 0
	}

	if discount < 0 {
		return 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	return discount
}
