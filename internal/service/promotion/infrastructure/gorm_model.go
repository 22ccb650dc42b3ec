package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponModel 对应数据库中的 coupons 表
type CouponModel struct {
	ID                uint64              `gorm:"primaryKey;autoIncrement"`
	Code              string              `gorm:"size:64;not null;uniqueIndex"`
	Name              string              `gorm:"size:255"`
	DiscountType      string              `gorm:"size:16;not null"`
	DiscountValue     decimal.Decimal     `gorm:"type:decimal(12,2);not null"`
	MinPurchaseAmount decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	MaxDiscountAmount decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	UsageLimit        *int
	UserUsageLimit    *int
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	IsActive          bool   `gorm:"not null"`
	ProductIDs        string `gorm:"type:text"` // 逗号分隔
	EligibilityRule   string `gorm:"type:text"`
	CurrentUsageCount int    `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (CouponModel) TableName() string {
	return "coupons"
}

// CouponUsageModel 对应 coupon_usages 表，(coupon_id, order_id) 唯一保证同一订单只计一次
type CouponUsageModel struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement"`
	CouponID  uint64  `gorm:"not null;uniqueIndex:idx_coupon_order;index:idx_coupon_user"`
	OrderID   string  `gorm:"size:36;not null;uniqueIndex:idx_coupon_order"`
	UserID    *string `gorm:"size:64;index:idx_coupon_user"`
	CreatedAt time.Time
}

func (CouponUsageModel) TableName() string {
	return "coupon_usages"
}
