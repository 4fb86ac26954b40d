// internal/service/promotion/infrastructure/mapper.go
package infrastructure

import "tally/internal/service/promotion/domain"

func toDomainTemplate(m *CouponTemplateModel) *domain.CouponTemplate {
	if m == nil {
		return nil
	}
	return &domain.CouponTemplate{
		ID:             m.ID,
		Version:        m.Version,
		Name:           m.Name,
		Status:         m.Status,
		RuleDefinition: m.RuleDefinition,
		DiscountType:   domain.DiscountType(m.DiscountType),
		Threshold:      m.Threshold,
		Amount:         m.Amount,
		Percentage:     m.Percentage,
		Ceiling:        m.Ceiling,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
