// internal/service/notification/application/service.go
package application

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/notification/domain"
)

// NotificationService 把订单确认事件渲染成邮件并发送
type NotificationService struct {
	mailer domain.Mailer
	tracer trace.Tracer
}

func NewNotificationService(mailer domain.Mailer, tracer trace.Tracer) *NotificationService {
	return &NotificationService{mailer: mailer, tracer: tracer}
}

// HandleOrderConfirmation 处理一条原始消息。返回 ErrMalformedMessage 的消息不应重试。
func (s *NotificationService) HandleOrderConfirmation(ctx context.Context, payload []byte) error {
	ctx, span := s.tracer.Start(ctx, "notification.HandleOrderConfirmation")
	defer span.End()

	var evt domain.OrderConfirmation
	if err := json.Unmarshal(payload, &evt); err != nil {
		err = errors.Wrap(domain.ErrMalformedMessage, err.Error())
		s.fail(ctx, span, err)
		return err
	}
	span.SetAttributes(
		attribute.String("order.id", evt.OrderID),
		attribute.String("event.id", evt.EventID),
	)

	email, err := domain.RenderConfirmation(&evt)
	if err != nil {
		s.fail(ctx, span, err)
		return err
	}
	if err := s.mailer.Send(ctx, email); err != nil {
		err = errors.Wrapf(err, "send confirmation for order %s", evt.OrderID)
		s.fail(ctx, span, err)
		return err
	}

	metrics.RecordNotificationHandled(true)
	span.AddEvent("confirmation email sent")
	logger.Ctx(ctx).Info().Str("order_id", evt.OrderID).Msg("order confirmation email sent")
	return nil
}

func (s *NotificationService) fail(ctx context.Context, span trace.Span, err error) {
	metrics.RecordNotificationHandled(false)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Ctx(ctx).Error().Err(err).Msg("failed to handle order confirmation")
}
