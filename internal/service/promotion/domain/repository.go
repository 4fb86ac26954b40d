// internal/service/promotion/domain/repository.go
package domain

import "context"

// TemplateRepository 是优惠模板的持久化端口。
type TemplateRepository interface {
	FindByID(ctx context.Context, id int64) (*CouponTemplate, error)
}
