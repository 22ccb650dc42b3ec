package application

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/service/promotion/domain"
)

// LineItemDTO 是客户端提交的购物车行
type LineItemDTO struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// ValidateCouponRequest 是 POST /coupons/validate 的请求体
type ValidateCouponRequest struct {
	Code     string        `json:"code"`
	Items    []LineItemDTO `json:"items"`
	Subtotal float64       `json:"subtotal"`
}

// CouponSummary 是优惠券的公开字段
type CouponSummary struct {
	ID            uint64  `json:"id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	DiscountType  string  `json:"discountType"`
	DiscountValue float64 `json:"discountValue"`
}

// ValidateCouponResponse 中 valid=false 时 error/reason 给出原因
type ValidateCouponResponse struct {
	Valid          bool           `json:"valid"`
	Coupon         *CouponSummary `json:"coupon,omitempty"`
	DiscountAmount *float64       `json:"discountAmount,omitempty"`
	Error          string         `json:"error,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// CreateCouponRequest 是管理员创建优惠券的请求体
type CreateCouponRequest struct {
	Code              string           `json:"code"`
	Name              string           `json:"name"`
	DiscountType      string           `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	MinPurchaseAmount *decimal.Decimal `json:"minPurchaseAmount"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount"`
	UsageLimit        *int             `json:"usageLimit"`
	UserUsageLimit    *int             `json:"userUsageLimit"`
	ValidFrom         time.Time        `json:"validFrom"`
	ValidUntil        time.Time        `json:"validUntil"`
	IsActive          bool             `json:"isActive"`
	ProductIDs        []string         `json:"productIds"`
	EligibilityRule   string           `json:"eligibilityRule"`
}

// CouponResponse 是管理端看到的完整优惠券
type CouponResponse struct {
	ID                uint64     `json:"id"`
	Code              string     `json:"code"`
	Name              string     `json:"name"`
	DiscountType      string     `json:"discountType"`
	DiscountValue     float64    `json:"discountValue"`
	MinPurchaseAmount *float64   `json:"minPurchaseAmount"`
	MaxDiscountAmount *float64   `json:"maxDiscountAmount"`
	UsageLimit        *int       `json:"usageLimit"`
	UserUsageLimit    *int       `json:"userUsageLimit"`
	ValidFrom         *time.Time `json:"validFrom"`
	ValidUntil        *time.Time `json:"validUntil"`
	IsActive          bool       `json:"isActive"`
	ProductIDs        []string   `json:"productIds"`
	EligibilityRule   string     `json:"eligibilityRule,omitempty"`
	CurrentUsageCount int        `json:"currentUsageCount"`
}

// ToLineItems 把客户端购物车转换为领域对象，价格按分四舍五入
func ToLineItems(items []LineItemDTO) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.LineItem{
			ProductID: it.ProductID,
			Title:     it.Title,
			Price:     decimal.NewFromFloat(it.Price).Round(2),
			Quantity:  it.Quantity,
		})
	}
	return out
}

func toSummary(c *domain.Coupon) *CouponSummary {
	return &CouponSummary{
		ID:            c.ID,
		Code:          c.Code,
		Name:          c.Name,
		DiscountType:  string(c.DiscountType),
		DiscountValue: c.DiscountValue.InexactFloat64(),
	}
}

func toCouponResponse(c *domain.Coupon) *CouponResponse {
	resp := &CouponResponse{
		ID:                c.ID,
		Code:              c.Code,
		Name:              c.Name,
		DiscountType:      string(c.DiscountType),
		DiscountValue:     c.DiscountValue.InexactFloat64(),
		MinPurchaseAmount: floatPtr(c.MinPurchaseAmount),
		MaxDiscountAmount: floatPtr(c.MaxDiscountAmount),
		UsageLimit:        c.UsageLimit,
		UserUsageLimit:    c.UserUsageLimit,
		IsActive:          c.IsActive,
		ProductIDs:        c.ProductIDs,
		EligibilityRule:   c.EligibilityRule,
		CurrentUsageCount: c.CurrentUsageCount,
	}
	if resp.ProductIDs == nil {
		resp.ProductIDs = []string{}
	}
	if !c.ValidFrom.IsZero() {
		t := c.ValidFrom
		resp.ValidFrom = &t
	}
	if !c.ValidUntil.IsZero() {
		t := c.ValidUntil
		resp.ValidUntil = &t
	}
	return resp
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
