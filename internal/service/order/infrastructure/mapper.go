package infrastructure

import (
	"sort"

	"github.com/shopspring/decimal"

	"storefront/internal/service/order/domain"
)

// toDomainOrder 将数据库模型转换为领域模型，订单项按下单时的顺序排列
func toDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:     m.ID,
		UserID: deref(m.UserID),
		Shipping: domain.ShippingInfo{
			Name:       m.ShippingName,
			Email:      m.ShippingEmail,
			Phone:      m.ShippingPhone,
			Address:    m.ShippingAddress,
			City:       m.ShippingCity,
			PostalCode: m.ShippingPostalCode,
			Country:    m.ShippingCountry,
		},
		TotalAmount:   m.TotalAmount,
		Status:        domain.Status(m.Status),
		CouponID:      m.CouponID,
		CouponCode:    deref(m.CouponCode),
		TransactionID: deref(m.TransactionID),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.DiscountAmount.Valid {
		d := m.DiscountAmount.Decimal
		o.DiscountAmount = &d
	}
	items := append([]OrderItemModel(nil), m.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	o.Items = make([]domain.OrderItem, 0, len(items))
	for _, it := range items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: deref(it.ProductID),
			Title:     it.Title,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}
	return o
}

// fromDomainOrder 将领域模型转换为数据库模型，空字符串写为 NULL
func fromDomainOrder(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:                 o.ID,
		UserID:             ptr(o.UserID),
		ShippingName:       o.Shipping.Name,
		ShippingEmail:      o.Shipping.Email,
		ShippingPhone:      o.Shipping.Phone,
		ShippingAddress:    o.Shipping.Address,
		ShippingCity:       o.Shipping.City,
		ShippingPostalCode: o.Shipping.PostalCode,
		ShippingCountry:    o.Shipping.Country,
		TotalAmount:        o.TotalAmount,
		Status:             string(o.Status),
		CouponID:           o.CouponID,
		CouponCode:         ptr(o.CouponCode),
		TransactionID:      ptr(o.TransactionID),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	if o.DiscountAmount != nil {
		m.DiscountAmount = decimal.NewNullDecimal(*o.DiscountAmount)
	}
	for i, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			OrderID:   o.ID,
			Position:  i,
			ProductID: ptr(it.ProductID),
			Title:     it.Title,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}
	return m
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
