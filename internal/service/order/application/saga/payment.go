package saga

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/order/domain"
)

// PaymentHandler 对非免费订单发起立即结算的扣款
type PaymentHandler struct {
	NextHandler
}

func (h *PaymentHandler) Handle(c *CheckoutContext) error {
	ctx, span := c.Tracer.Start(c.Ctx, "saga.Payment")
	defer span.End()

	if c.isFree {
		span.AddEvent("free order, payment skipped")
		logger.Ctx(ctx).Info().Str("order_id", c.Order.ID).Msg("free order, skipping payment gateway")
		return h.executeNext(c)
	}

	logger.Ctx(ctx).Debug().Str("order_id", c.Order.ID).Msg("saga step 4: charging payment gateway")

	if strings.TrimSpace(c.PaymentNonce) == "" {
		return domain.NewValidationError("Payment method is required")
	}
	span.SetAttributes(attribute.String("payment.amount", c.orderAmount.StringFixed(2)))

	tx, err := c.Payments.Sale(ctx, c.Order.ID, c.orderAmount, c.PaymentNonce)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment failed")
		var payErr *domain.PaymentError
		if errors.As(err, &payErr) {
			return payErr
		}
		return &domain.PaymentError{Message: "Payment processing failed", Err: err}
	}
	c.Transaction = tx
	span.SetAttributes(attribute.String("payment.transaction_id", tx.ID))

	c.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := c.Tracer.Start(compCtx, "saga.compensation.VoidPayment")
		defer compSpan.End()
		compSpan.SetAttributes(attribute.String("payment.transaction_id", tx.ID))

		if err := c.Payments.Void(compCtx, tx.ID); err != nil {
			compSpan.RecordError(err)
			metrics.RecordNonFatalFailure("void_payment")
			logger.Ctx(compCtx).Error().Err(err).Str("order_id", c.Order.ID).Str("transaction_id", tx.ID).
				Msg("compensation: failed to void payment")
		}
	})

	span.AddEvent("payment settled")
	return h.executeNext(c)
}
