package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"storefront/internal/service/order/domain/port"
	promotionapp "storefront/internal/service/promotion/application"
	promotion "storefront/internal/service/promotion/domain"
)

// CouponPromotionAdapter 实现了 port.CouponService，进程内调用优惠服务
type CouponPromotionAdapter struct {
	svc *promotionapp.PromotionService
}

func NewCouponPromotionAdapter(svc *promotionapp.PromotionService) *CouponPromotionAdapter {
	return &CouponPromotionAdapter{svc: svc}
}

func (a *CouponPromotionAdapter) Validate(ctx context.Context, code string, lines []port.CouponLine, subtotal decimal.Decimal, userID string) (*port.CouponDecision, error) {
	items := make([]promotion.LineItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, promotion.LineItem{ProductID: l.ProductID, Title: l.Title, Price: l.Price, Quantity: l.Quantity})
	}
	decision, err := a.svc.Validate(ctx, code, items, subtotal, userID)
	if err != nil {
		if promotion.IsRejection(err) {
			return nil, &port.CouponRejectedError{Message: err.Error()}
		}
		return nil, err
	}
	return &port.CouponDecision{
		CouponID: decision.Coupon.ID,
		Code:     decision.Coupon.Code,
		Discount: decision.DiscountAmount,
	}, nil
}

func (a *CouponPromotionAdapter) Apply(ctx context.Context, couponID uint64, userID, orderID string) error {
	return a.svc.ApplyCoupon(ctx, couponID, userID, orderID)
}

func (a *CouponPromotionAdapter) Release(ctx context.Context, couponID uint64, orderID string) error {
	return a.svc.ReleaseCoupon(ctx, couponID, orderID)
}
