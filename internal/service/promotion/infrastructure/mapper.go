package infrastructure

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/service/promotion/domain"
)

// ToDomainCoupon 将数据库模型转换为领域模型
func ToDomainCoupon(m *CouponModel) *domain.Coupon {
	if m == nil {
		return nil
	}
	c := &domain.Coupon{
		ID:                m.ID,
		Code:              m.Code,
		Name:              m.Name,
		DiscountType:      domain.DiscountType(m.DiscountType),
		DiscountValue:     m.DiscountValue,
		MinPurchaseAmount: fromNullDecimal(m.MinPurchaseAmount),
		MaxDiscountAmount: fromNullDecimal(m.MaxDiscountAmount),
		UsageLimit:        m.UsageLimit,
		UserUsageLimit:    m.UserUsageLimit,
		IsActive:          m.IsActive,
		ProductIDs:        splitIDs(m.ProductIDs),
		EligibilityRule:   m.EligibilityRule,
		CurrentUsageCount: m.CurrentUsageCount,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.ValidFrom != nil {
		c.ValidFrom = *m.ValidFrom
	}
	if m.ValidUntil != nil {
		c.ValidUntil = *m.ValidUntil
	}
	return c
}

// FromDomainCoupon 将领域模型转换为数据库模型
func FromDomainCoupon(c *domain.Coupon) *CouponModel {
	return &CouponModel{
		ID:                c.ID,
		Code:              c.Code,
		Name:              c.Name,
		DiscountType:      string(c.DiscountType),
		DiscountValue:     c.DiscountValue,
		MinPurchaseAmount: toNullDecimal(c.MinPurchaseAmount),
		MaxDiscountAmount: toNullDecimal(c.MaxDiscountAmount),
		UsageLimit:        c.UsageLimit,
		UserUsageLimit:    c.UserUsageLimit,
		ValidFrom:         timePtr(c.ValidFrom),
		ValidUntil:        timePtr(c.ValidUntil),
		IsActive:          c.IsActive,
		ProductIDs:        strings.Join(c.ProductIDs, ","),
		EligibilityRule:   c.EligibilityRule,
		CurrentUsageCount: c.CurrentUsageCount,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func fromNullDecimal(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
