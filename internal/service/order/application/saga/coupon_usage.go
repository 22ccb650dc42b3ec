package saga

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
)

// CouponUsageHandler 记录优惠券使用次数。失败不影响已支付的订单。
type CouponUsageHandler struct {
	NextHandler
}

func (h *CouponUsageHandler) Handle(c *CheckoutContext) error {
	if c.Order.CouponID == nil {
		return h.executeNext(c)
	}

	ctx, span := c.Tracer.Start(c.Ctx, "saga.CouponUsage")
	defer span.End()

	couponID := *c.Order.CouponID
	span.SetAttributes(attribute.Int64("coupon.id", int64(couponID)))

	if err := c.Coupons.Apply(ctx, couponID, c.Order.UserID, c.Order.ID); err != nil {
		span.RecordError(err)
		metrics.RecordNonFatalFailure("coupon_usage")
		logger.Ctx(ctx).Warn().Err(err).Uint64("coupon_id", couponID).Str("order_id", c.Order.ID).
			Msg("failed to record coupon usage, continuing checkout")
		return h.executeNext(c)
	}

	c.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := c.Tracer.Start(compCtx, "saga.compensation.ReleaseCoupon")
		defer compSpan.End()

		if err := c.Coupons.Release(compCtx, couponID, c.Order.ID); err != nil {
			compSpan.RecordError(err)
			metrics.RecordNonFatalFailure("release_coupon")
			logger.Ctx(compCtx).Error().Err(err).Uint64("coupon_id", couponID).Str("order_id", c.Order.ID).
				Msg("compensation: failed to release coupon usage")
		}
	})

	span.AddEvent("coupon usage recorded")
	return h.executeNext(c)
}
