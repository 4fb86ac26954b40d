// internal/service/promotion/domain/rule.go
package domain

import "context"

// Fact 是规则评估的输入: 一次下单请求的可判定事实。
// 字段名与 CEL 表达式中的变量名一一对应。
type Fact struct {
	UserID     int64   `json:"user_id"`
	Subtotal   int64   `json:"subtotal"`
	ItemCount  int64   `json:"item_count"`
	ProductIDs []int64 `json:"product_ids"`
	VIP        bool    `json:"vip"`
}

// RuleEngine 评估模板的适用规则。这是领域端口,
// 具体引擎 (CEL) 在基础设施层适配。
type RuleEngine interface {
	Evaluate(ctx context.Context, ruleDefinition string, fact Fact) (bool, error)
}
