package interfaces

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
	"storefront/internal/service/notification/application"
)

// RabbitMQConsumer 从 RabbitMQ 队列消费订单确认消息
type RabbitMQConsumer struct {
	deliveries <-chan amqp.Delivery
	queue      string
	appSvc     *application.NotificationService
	tracer     trace.Tracer
}

func NewRabbitMQConsumer(deliveries <-chan amqp.Delivery, queue string, appSvc *application.NotificationService, tracer trace.Tracer) *RabbitMQConsumer {
	return &RabbitMQConsumer{deliveries: deliveries, queue: queue, appSvc: appSvc, tracer: tracer}
}

// Run 阻塞消费直到 ctx 取消或通道关闭。处理失败的消息不重新入队。
func (c *RabbitMQConsumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("queue", c.queue).Msg("rabbitmq consumer started")
	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("rabbitmq consumer shutting down")
			return nil
		case d, ok := <-c.deliveries:
			if !ok {
				logger.Ctx(ctx).Warn().Msg("rabbitmq delivery channel closed")
				return nil
			}
			c.processDelivery(ctx, d)
		}
	}
}

func (c *RabbitMQConsumer) processDelivery(parent context.Context, d amqp.Delivery) {
	ctx := mq.ExtractAMQPTraceContext(parent, d.Headers)
	ctx, span := c.tracer.Start(ctx, "notification-worker.ConsumeRabbitMQ",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination", c.queue),
			attribute.String("messaging.message_id", d.MessageId),
		),
	)
	defer span.End()

	if err := c.appSvc.HandleOrderConfirmation(ctx, d.Body); err != nil {
		if nackErr := d.Nack(false, false); nackErr != nil {
			logger.Ctx(ctx).Error().Err(nackErr).Msg("failed to nack delivery")
		}
		return
	}
	if err := d.Ack(false); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to ack delivery")
	}
}
