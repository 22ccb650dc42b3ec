// internal/service/promotion/domain/coupon.go
package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DiscountType 决定折扣的计算方式
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

var hundred = decimal.NewFromInt(100)

// Coupon 是一条带有适用条件和使用次数限制的优惠规则。
// 可选字段用指针表示未设置；ValidFrom/ValidUntil 为零值表示该端不设限。
type Coupon struct {
	ID                uint64
	Code              string
	Name              string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MinPurchaseAmount *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        *int
	UserUsageLimit    *int
	ValidFrom         time.Time
	ValidUntil        time.Time
	IsActive          bool
	// ProductIDs 为空表示全部商品适用
	ProductIDs []string
	// EligibilityRule 是可选的 CEL 布尔表达式
	EligibilityRule   string
	CurrentUsageCount int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LineItem 是参与优惠计算的购物车行
type LineItem struct {
	ProductID string
	Title     string
	Price     decimal.Decimal
	Quantity  int
}

// Total 返回该行小计
func (li LineItem) Total() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Validate 检查管理员录入的数据是否自洽
func (c *Coupon) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return errors.Wrap(ErrInvalidCoupon, "code is required")
	}
	switch c.DiscountType {
	case DiscountPercentage:
		if c.DiscountValue.GreaterThan(hundred) {
			return errors.Wrap(ErrInvalidCoupon, "percentage discount cannot exceed 100")
		}
	case DiscountFixed:
	default:
		return errors.Wrapf(ErrInvalidCoupon, "unknown discount type %q", c.DiscountType)
	}
	if !c.DiscountValue.IsPositive() {
		return errors.Wrap(ErrInvalidCoupon, "discount value must be positive")
	}
	if c.MinPurchaseAmount != nil && c.MinPurchaseAmount.IsNegative() {
		return errors.Wrap(ErrInvalidCoupon, "minimum purchase must not be negative")
	}
	if c.MaxDiscountAmount != nil && !c.MaxDiscountAmount.IsPositive() {
		return errors.Wrap(ErrInvalidCoupon, "maximum discount must be positive")
	}
	if c.UsageLimit != nil && *c.UsageLimit < 0 {
		return errors.Wrap(ErrInvalidCoupon, "usage limit must not be negative")
	}
	if c.UserUsageLimit != nil && *c.UserUsageLimit < 0 {
		return errors.Wrap(ErrInvalidCoupon, "user usage limit must not be negative")
	}
	if !c.ValidFrom.IsZero() && !c.ValidUntil.IsZero() && !c.ValidUntil.After(c.ValidFrom) {
		return errors.Wrap(ErrInvalidCoupon, "validUntil must be after validFrom")
	}
	return nil
}

// CheckAvailability 检查启用状态、有效期与全局使用次数
func (c *Coupon) CheckAvailability(now time.Time) error {
	if !c.IsActive {
		return reject(ErrCouponInactive)
	}
	if !c.ValidFrom.IsZero() && now.Before(c.ValidFrom) {
		return reject(ErrCouponNotYetValid)
	}
	if !c.ValidUntil.IsZero() && now.After(c.ValidUntil) {
		return reject(ErrCouponExpired)
	}
	if c.UsageLimit != nil && c.CurrentUsageCount >= *c.UsageLimit {
		return reject(ErrUsageLimitReached)
	}
	return nil
}

// CheckUserLimit 检查某个用户的历史使用次数
func (c *Coupon) CheckUserLimit(userUses int64) error {
	if c.UserUsageLimit != nil && userUses >= int64(*c.UserUsageLimit) {
		return reject(ErrUserUsageLimitReached)
	}
	return nil
}

// DiscountBase 检查最低消费并返回折扣基数：限定商品时为适用商品小计，否则为整单小计
func (c *Coupon) DiscountBase(items []LineItem, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if c.MinPurchaseAmount != nil && subtotal.LessThan(*c.MinPurchaseAmount) {
		return decimal.Zero, rejectf(ErrMinPurchaseNotMet, "Minimum purchase of %s required", c.MinPurchaseAmount.StringFixed(2))
	}
	if len(c.ProductIDs) == 0 {
		return subtotal, nil
	}

	eligible := make(map[string]struct{}, len(c.ProductIDs))
	for _, id := range c.ProductIDs {
		eligible[id] = struct{}{}
	}
	base := decimal.Zero
	matched := 0
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		if _, ok := eligible[item.ProductID]; ok {
			base = base.Add(item.Total())
			matched++
		}
	}
	if matched == 0 {
		return decimal.Zero, reject(ErrNotApplicable)
	}
	return base, nil
}

// ComputeDiscount 计算折扣并按最高优惠封顶，结果四舍五入到分
func (c *Coupon) ComputeDiscount(base decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = base.Mul(c.DiscountValue).Div(hundred)
	case DiscountFixed:
		discount = decimal.Min(c.DiscountValue, base)
	}
	if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
		discount = *c.MaxDiscountAmount
	}
	if discount.GreaterThan(base) {
		discount = base
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2)
}

// RuleFacts 是提供给 CEL 规则的事实
type RuleFacts struct {
	Subtotal   decimal.Decimal
	ItemCount  int
	ProductIDs []string
	UserID     string
}

// NewRuleFacts 从购物车构造规则事实，ItemCount 为商品总件数
func NewRuleFacts(items []LineItem, subtotal decimal.Decimal, userID string) RuleFacts {
	facts := RuleFacts{Subtotal: subtotal, UserID: userID, ProductIDs: make([]string, 0, len(items))}
	for _, item := range items {
		facts.ItemCount += item.Quantity
		if item.ProductID != "" {
			facts.ProductIDs = append(facts.ProductIDs, item.ProductID)
		}
	}
	return facts
}

// Decision 是一次成功校验的结果
type Decision struct {
	Coupon         *Coupon
	DiscountAmount decimal.Decimal
}
