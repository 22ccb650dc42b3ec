package saga

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// amountTolerance 是客户端金额与服务端金额允许的差值
var amountTolerance = decimal.NewFromFloat(0.01)

// PricingHandler 生成订单项快照并确定扣款金额。
// 默认按权威价格和重新校验后的优惠重新计算总价，客户端金额只用于比对；
// TrustClientAmount 为 true 时直接使用客户端金额。
type PricingHandler struct {
	NextHandler
}

func (h *PricingHandler) Handle(c *CheckoutContext) error {
	ctx, span := c.Tracer.Start(c.Ctx, "saga.Pricing")
	defer span.End()

	logger.Ctx(ctx).Debug().Str("order_id", c.Order.ID).Msg("saga step 2: computing order amount")

	if c.ClientAmount.IsNegative() {
		return domain.NewValidationError("Order amount must not be negative")
	}

	// 有 productId 的行以商品表的标题和价格为准
	items := make([]domain.OrderItem, 0, len(c.Cart))
	for _, it := range c.Cart {
		snap := it
		if p, ok := c.products[it.ProductID]; ok {
			snap.Title = p.Title
			snap.Price = p.Price
		}
		items = append(items, snap)
	}
	c.Order.Items = items

	if c.TrustClientAmount {
		c.orderAmount = c.ClientAmount
		if c.Coupon != nil {
			c.Order.CouponID = c.Coupon.ID
			c.Order.CouponCode = c.Coupon.Code
			c.Order.DiscountAmount = c.Coupon.Discount
		}
		span.AddEvent("client supplied amount trusted")
	} else {
		expected, err := h.expectedTotal(ctx, c)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "amount verification failed")
			return err
		}
		span.SetAttributes(
			attribute.String("order.expected_amount", expected.StringFixed(2)),
			attribute.String("order.client_amount", c.ClientAmount.StringFixed(2)),
		)
		if expected.Sub(c.ClientAmount).Abs().GreaterThan(amountTolerance) {
			err := domain.NewValidationError("Order amount does not match cart total")
			span.RecordError(err)
			span.SetStatus(codes.Error, "amount mismatch")
			return err
		}
		c.orderAmount = expected
	}

	c.Order.TotalAmount = c.orderAmount
	c.isFree = c.orderAmount.IsZero()
	span.SetAttributes(attribute.Bool("order.is_free", c.isFree))
	return h.executeNext(c)
}

// expectedTotal 计算 小计 - 优惠，优惠通过重新校验优惠券得到，并写入订单的优惠字段
func (h *PricingHandler) expectedTotal(ctx context.Context, c *CheckoutContext) (decimal.Decimal, error) {
	subtotal := c.Order.Subtotal()
	discount := decimal.Zero

	if c.Coupon != nil && (c.Coupon.ID != nil || c.Coupon.Code != "") {
		if c.Coupon.Code == "" {
			return decimal.Zero, domain.NewValidationError("Coupon code is required")
		}
		lines := make([]port.CouponLine, 0, len(c.Order.Items))
		for _, it := range c.Order.Items {
			lines = append(lines, port.CouponLine{ProductID: it.ProductID, Title: it.Title, Price: it.Price, Quantity: it.Quantity})
		}
		decision, err := c.Coupons.Validate(ctx, c.Coupon.Code, lines, subtotal, c.Order.UserID)
		if err != nil {
			var rejected *port.CouponRejectedError
			if errors.As(err, &rejected) {
				return decimal.Zero, domain.NewValidationError("Coupon is no longer valid: %s", rejected.Message)
			}
			return decimal.Zero, errors.Wrap(err, "revalidate coupon")
		}
		if c.Coupon.ID != nil && *c.Coupon.ID != decision.CouponID {
			return decimal.Zero, domain.NewValidationError("Coupon does not match coupon code")
		}
		discount = decision.Discount
		id := decision.CouponID
		c.Order.CouponID = &id
		c.Order.CouponCode = decision.Code
		c.Order.DiscountAmount = &discount
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2), nil
}
