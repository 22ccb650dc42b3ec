package saga

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/order/domain"
)

// NotificationHandler 是 Saga 流程的最后一步，异步发布订单确认消息。
// 发布不受请求 context 取消影响，失败只记录日志。
type NotificationHandler struct {
	NextHandler
	wg      *sync.WaitGroup
	timeout time.Duration
}

func NewNotificationHandler(wg *sync.WaitGroup, timeout time.Duration) *NotificationHandler {
	return &NotificationHandler{wg: wg, timeout: timeout}
}

func (h *NotificationHandler) Handle(c *CheckoutContext) error {
	if c.Notifier == nil {
		return h.executeNext(c)
	}
	ctx, span := c.Tracer.Start(c.Ctx, "saga.Notification")
	defer span.End()

	evt := domain.NewOrderConfirmation(uuid.NewString(), span.SpanContext().TraceID().String(), c.Order)
	span.SetAttributes(attribute.String("event.id", evt.EventID))

	pubCtx := context.WithoutCancel(ctx)
	notifier, orderID := c.Notifier, c.Order.ID
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		pubCtx, cancel := context.WithTimeout(pubCtx, h.timeout)
		defer cancel()

		if err := notifier.PublishOrderConfirmation(pubCtx, evt); err != nil {
			metrics.RecordNonFatalFailure("notification")
			logger.Ctx(pubCtx).Error().Err(err).Str("order_id", orderID).Msg("failed to publish order confirmation")
			return
		}
		logger.Ctx(pubCtx).Info().Str("order_id", orderID).Msg("order confirmation published")
	}()

	span.AddEvent("order confirmation dispatched")
	return h.executeNext(c)
}
