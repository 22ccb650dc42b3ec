// internal/service/order/domain/order.go
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem 是下单时的商品快照，创建后不再随商品变化
type OrderItem struct {
	ProductID string
	Title     string
	Price     decimal.Decimal
	Quantity  int
}

func (i OrderItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ShippingInfo 是收货信息快照
type ShippingInfo struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Country    string
}

// Validate 检查发货必需的字段
func (s ShippingInfo) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return NewValidationError("Shipping name is required")
	case !strings.Contains(s.Email, "@"):
		return NewValidationError("A valid shipping email is required")
	case strings.TrimSpace(s.Address) == "":
		return NewValidationError("Shipping address is required")
	}
	return nil
}

// Order 是订单聚合的根实体
type Order struct {
	ID             string
	UserID         string // 为空表示访客订单
	Shipping       ShippingInfo
	TotalAmount    decimal.Decimal
	Status         Status
	CouponID       *uint64
	CouponCode     string
	DiscountAmount *decimal.Decimal
	TransactionID  string
	Items          []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Subtotal 是商品快照的合计金额
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Total())
	}
	return sum
}

// IsGuest 表示订单没有关联注册用户
func (o *Order) IsGuest() bool {
	return o.UserID == ""
}

// MarkAsPaid 结账成功后订单直接进入 paid，免费订单也一样
func (o *Order) MarkAsPaid(transactionID string, now time.Time) {
	o.Status = StatusPaid
	o.TransactionID = transactionID
	o.UpdatedAt = now
}

// TransitionTo 只负责状态流转规则，持久化由仓储的条件更新完成
func (o *Order) TransitionTo(next Status, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return ErrInvalidStatusTransition
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// VisibleTo 订单只对下单用户和管理员可见，访客订单只有管理员能看
func (o *Order) VisibleTo(userID string, isAdmin bool) bool {
	if isAdmin {
		return true
	}
	return userID != "" && o.UserID == userID
}
