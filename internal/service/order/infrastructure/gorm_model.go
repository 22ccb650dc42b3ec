// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel 对应 orders 表，收货信息按快照平铺
type OrderModel struct {
	ID                 string              `gorm:"primaryKey;size:36"`
	UserID             *string             `gorm:"size:64;index:idx_orders_user_created"`
	ShippingName       string              `gorm:"size:255;not null"`
	ShippingEmail      string              `gorm:"size:255;not null"`
	ShippingPhone      string              `gorm:"size:64"`
	ShippingAddress    string              `gorm:"size:512;not null"`
	ShippingCity       string              `gorm:"size:128"`
	ShippingPostalCode string              `gorm:"size:32"`
	ShippingCountry    string              `gorm:"size:64"`
	TotalAmount        decimal.Decimal     `gorm:"type:decimal(12,2);not null"`
	Status             string              `gorm:"size:16;not null;index"`
	CouponID           *uint64             `gorm:"index"`
	CouponCode         *string             `gorm:"size:64"`
	DiscountAmount     decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	TransactionID      *string             `gorm:"size:64"`
	Items              []OrderItemModel    `gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time           `gorm:"index:idx_orders_user_created"`
	UpdatedAt          time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应 order_items 表
type OrderItemModel struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	OrderID   string          `gorm:"size:36;not null;index"`
	Position  int             `gorm:"not null"`
	ProductID *string         `gorm:"size:64"`
	Title     string          `gorm:"size:255;not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity  int             `gorm:"not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}
