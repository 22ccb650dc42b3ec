package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/pkg/patch"
)

// CouponPatch 是优惠券的部分更新。Code 与使用计数不可通过补丁修改。
type CouponPatch struct {
	Name              patch.Field[string]          `json:"name"`
	DiscountType      patch.Field[DiscountType]    `json:"discountType"`
	DiscountValue     patch.Field[decimal.Decimal] `json:"discountValue"`
	MinPurchaseAmount patch.Field[decimal.Decimal] `json:"minPurchaseAmount"`
	MaxDiscountAmount patch.Field[decimal.Decimal] `json:"maxDiscountAmount"`
	UsageLimit        patch.Field[int]             `json:"usageLimit"`
	UserUsageLimit    patch.Field[int]             `json:"userUsageLimit"`
	ValidFrom         patch.Field[time.Time]       `json:"validFrom"`
	ValidUntil        patch.Field[time.Time]       `json:"validUntil"`
	IsActive          patch.Field[bool]            `json:"isActive"`
	ProductIDs        patch.Field[[]string]        `json:"productIds"`
	EligibilityRule   patch.Field[string]          `json:"eligibilityRule"`
}

// ApplyPatch 是优惠券唯一的合并入口：逐字段合并到副本，整体校验通过后才写回
func (c *Coupon) ApplyPatch(p CouponPatch) error {
	next := *c

	if p.Name.Set {
		next.Name = p.Name.Value
	}
	if p.DiscountType.Set {
		if p.DiscountType.Null {
			return errors.Wrap(ErrInvalidCoupon, "discountType cannot be null")
		}
		next.DiscountType = p.DiscountType.Value
	}
	if p.DiscountValue.Set {
		if p.DiscountValue.Null {
			return errors.Wrap(ErrInvalidCoupon, "discountValue cannot be null")
		}
		next.DiscountValue = p.DiscountValue.Value
	}
	p.MinPurchaseAmount.ApplyTo(&next.MinPurchaseAmount)
	p.MaxDiscountAmount.ApplyTo(&next.MaxDiscountAmount)
	p.UsageLimit.ApplyTo(&next.UsageLimit)
	p.UserUsageLimit.ApplyTo(&next.UserUsageLimit)
	if p.ValidFrom.Set {
		next.ValidFrom = p.ValidFrom.Value
	}
	if p.ValidUntil.Set {
		next.ValidUntil = p.ValidUntil.Value
	}
	if p.IsActive.Set {
		if p.IsActive.Null {
			return errors.Wrap(ErrInvalidCoupon, "isActive cannot be null")
		}
		next.IsActive = p.IsActive.Value
	}
	if p.ProductIDs.Set {
		next.ProductIDs = append([]string(nil), p.ProductIDs.Value...)
	}
	if p.EligibilityRule.Set {
		next.EligibilityRule = p.EligibilityRule.Value
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
