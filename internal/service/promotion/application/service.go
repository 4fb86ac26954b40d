// internal/service/promotion/application/service.go
package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tally/internal/pkg/logger"
	"tally/internal/service/promotion/domain"
)

// Service 是优惠服务的应用层: 给定模板与订单事实, 报出优惠金额。
// 它不改任何状态; 券实例的占用/核销在账本服务里。
type Service struct {
	templates domain.TemplateRepository
	engine    domain.RuleEngine
	tracer    trace.Tracer
}

func NewService(templates domain.TemplateRepository, engine domain.RuleEngine, tracer trace.Tracer) *Service {
	return &Service{templates: templates, engine: engine, tracer: tracer}
}

// QuoteDiscount 计算模板对一笔订单的优惠金额。
// 规则不满足时返回 ErrNotEligible; 满足但优惠为 0 (如未达门槛) 不算错误。
func (s *Service) QuoteDiscount(ctx context.Context, templateID int64, fact domain.Fact) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.QuoteDiscount")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("template.id", templateID),
		attribute.Int64("subtotal", fact.Subtotal),
	)

	tpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if tpl.Status != domain.TemplateActive {
		return 0, fmt.Errorf("%w: template %d is %s", domain.ErrTemplateInactive, templateID, tpl.Status)
	}

	eligible, err := s.engine.Evaluate(ctx, tpl.RuleDefinition, fact)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if !eligible {
		return 0, fmt.Errorf("%w: template %d", domain.ErrNotEligible, templateID)
	}

	discount := tpl.DiscountFor(fact.Subtotal)
	logger.Ctx(ctx).Debug().
		Int64("template_id", templateID).
		Int64("subtotal", fact.Subtotal).
		Int64("discount", discount).
		Msg("discount quoted")
	span.SetAttributes(attribute.Int64("discount", discount))
	return discount, nil
}
