// internal/service/promotion/infrastructure/models.go
package infrastructure

import "time"

// CouponTemplateModel 是优惠模板的数据库模型。
type CouponTemplateModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Version        int32     `gorm:"not null;default:1"`
	Name           string    `gorm:"type:varchar(128);not null"`
	Status         string    `gorm:"type:varchar(16);not null;index"`
	RuleDefinition string    `gorm:"type:text"`
	DiscountType   string    `gorm:"type:varchar(16);not null"`
	Threshold      int64     `gorm:"not null;default:0"`
	Amount         int64     `gorm:"not null;default:0"`
	Percentage     int64     `gorm:"not null;default:0"`
	Ceiling        int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (CouponTemplateModel) TableName() string {
	return "coupon_template"
}
