// internal/service/ledger/infrastructure/models.go
package infrastructure

import (
	"database/sql"
	"time"

	"tally/internal/service/ledger/domain"
)

// StockEntryModel 对应 stock_entry 表。
type StockEntryModel struct {
	ID        int64 `gorm:"primaryKey"`
	ProductID int64 `gorm:"uniqueIndex"`
	Quantity  int64
	Version   int64 `gorm:"default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StockEntryModel) TableName() string {
	return "stock_entry"
}

// PointBalanceModel 对应 point_balance 表。
type PointBalanceModel struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"uniqueIndex"`
	Amount    int64
	Version   int64 `gorm:"default:0"`
	ExpiresAt sql.NullTime
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PointBalanceModel) TableName() string {
	return "point_balance"
}

// CouponReservationModel 对应 coupon_reservation 表。
type CouponReservationModel struct {
	ID         int64  `gorm:"primaryKey"`
	UserID     int64  `gorm:"index:idx_user_code,unique"`
	CouponCode string `gorm:"index:idx_user_code,unique;size:64"`
	TemplateID int64
	Status     domain.CouponStatus `gorm:"size:16;default:AVAILABLE"`
	Version    int64               `gorm:"default:0"`
	ValidFrom  sql.NullTime
	ValidTo    sql.NullTime
	OrderID    sql.NullString `gorm:"size:64"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (CouponReservationModel) TableName() string {
	return "coupon_reservation"
}
