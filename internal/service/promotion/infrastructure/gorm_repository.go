// internal/service/promotion/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tally/internal/service/promotion/domain"
)

// GormTemplateRepository 是 domain.TemplateRepository 的 GORM 实现。
type GormTemplateRepository struct {
	db *gorm.DB
}

func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

func (r *GormTemplateRepository) FindByID(ctx context.Context, id int64) (*domain.CouponTemplate, error) {
	var model CouponTemplateModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, err
	}
	return toDomainTemplate(&model), nil
}
