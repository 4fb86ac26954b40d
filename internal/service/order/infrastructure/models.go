// internal/service/order/infrastructure/models.go
package infrastructure

import "time"

// OrderModel 是订单主表。payment_ref 唯一, 支付结果按它回查订单。
type OrderModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)"`
	UserID         int64     `gorm:"not null;index"`
	CouponCode     string    `gorm:"type:varchar(64)"`
	CouponDiscount int64     `gorm:"not null;default:0"`
	UsedPoints     int64     `gorm:"not null;default:0"`
	Subtotal       int64     `gorm:"not null"`
	Payable        int64     `gorm:"not null"`
	Status         string    `gorm:"type:varchar(16);not null;index"`
	PaymentRef     string    `gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`

	Items []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 是订单行, 单价是下单时刻的快照。
type OrderItemModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	OrderID   string `gorm:"type:varchar(64);not null;index"`
	ProductID int64  `gorm:"not null"`
	Name      string `gorm:"type:varchar(128)"`
	UnitPrice int64  `gorm:"not null"`
	Quantity  int64  `gorm:"not null"`
}

func (OrderItemModel) TableName() string {
	return "order_item"
}

// OutboxMessageModel 与业务变更写在同一事务里, 由投递器异步发出。
type OutboxMessageModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Topic      string    `gorm:"type:varchar(64);not null"`
	Key        string    `gorm:"type:varchar(64);not null"`
	Payload    []byte    `gorm:"type:blob;not null"`
	Dispatched bool      `gorm:"not null;default:false;index"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (OutboxMessageModel) TableName() string {
	return "outbox_message"
}

// UserModel 是用户读模型, 下单时只做存在性校验。
type UserModel struct {
	ID        int64     `gorm:"primaryKey"`
	Nickname  string    `gorm:"type:varchar(64)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

// ProductModel 是商品读模型, 提供下单时捕获的名称与价格。
type ProductModel struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(128);not null"`
	Price     int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ProductModel) TableName() string {
	return "product"
}
