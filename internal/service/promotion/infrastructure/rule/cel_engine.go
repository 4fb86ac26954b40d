// internal/service/promotion/infrastructure/rule/cel_engine.go
package rule

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"tally/internal/service/promotion/domain"
)

// CELEngineAdapter 是 domain.RuleEngine 的 CEL 实现。
// 这是一个典型的适配器: 把 cel-go 的 API 适配到我们自己的领域接口上。
// 规则示例: "subtotal >= 20000 && item_count >= 2"、"vip || 1001 in product_ids"。
//
// 编译结果按规则文本缓存, 同一条规则只编译一次; cel.Program 本身并发安全。
type CELEngineAdapter struct {
	env      *cel.Env
	programs sync.Map // rule string -> cel.Program
}

// NewCELEngineAdapter 创建规则引擎适配器。
// 环境里声明的变量与 domain.Fact 的字段一一对应。
func NewCELEngineAdapter() (*CELEngineAdapter, error) {
	env, err := cel.NewEnv(
		cel.Variable("user_id", cel.IntType),
		cel.Variable("subtotal", cel.IntType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("product_ids", cel.ListType(cel.IntType)),
		cel.Variable("vip", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &CELEngineAdapter{env: env}, nil
}

// Evaluate 实现 domain.RuleEngine。空规则表示无条件适用。
func (a *CELEngineAdapter) Evaluate(ctx context.Context, ruleDefinition string, fact domain.Fact) (bool, error) {
	if ruleDefinition == "" {
		return true, nil
	}

	prg, err := a.program(ruleDefinition)
	if err != nil {
		return false, err
	}

	out, _, err := prg.ContextEval(ctx, map[string]interface{}{
		"user_id":     fact.UserID,
		"subtotal":    fact.Subtotal,
		"item_count":  fact.ItemCount,
		"product_ids": fact.ProductIDs,
		"vip":         fact.VIP,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", ruleDefinition, err)
	}

	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("%w: rule %q does not yield a boolean", domain.ErrBadRule, ruleDefinition)
	}
	return ok, nil
}

func (a *CELEngineAdapter) program(ruleDefinition string) (cel.Program, error) {
	if cached, ok := a.programs.Load(ruleDefinition); ok {
		return cached.(cel.Program), nil
	}

	ast, iss := a.env.Compile(ruleDefinition)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadRule, iss.Err())
	}
	prg, err := a.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadRule, err)
	}

	a.programs.Store(ruleDefinition, prg)
	return prg, nil
}
