// internal/service/notification/interfaces/kafka_consumer.go
package interfaces

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
	"storefront/internal/service/notification/application"
)

// MessageReader 是 kafka.Reader 中消费者用到的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer 是一个驱动适配器，它监听 Kafka 消息并驱动应用服务。
type KafkaConsumer struct {
	reader MessageReader
	topic  string
	appSvc *application.NotificationService
	tracer trace.Tracer
}

func NewKafkaConsumer(reader MessageReader, topic string, appSvc *application.NotificationService, tracer trace.Tracer) *KafkaConsumer {
	return &KafkaConsumer{reader: reader, topic: topic, appSvc: appSvc, tracer: tracer}
}

// Run 阻塞消费直到 ctx 取消。每条消息处理完（成功或跳过）后提交 offset。
func (c *KafkaConsumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("topic", c.topic).Msg("kafka consumer started")
	defer c.reader.Close()

	for {
		// 使用 FetchMessage 而不是 ReadMessage，以便手动控制提交
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Msg("kafka consumer shutting down")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not read message, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.processMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

// processMessage 恢复上游追踪上下文后交给应用服务，错误只记录
func (c *KafkaConsumer) processMessage(parent context.Context, msg kafka.Message) {
	ctx := mq.ExtractTraceContext(parent, msg.Headers)
	ctx, span := c.tracer.Start(ctx, "notification-worker.ConsumeKafka",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		),
	)
	defer span.End()

	// 失败已在应用服务中记录，这里不重试
	_ = c.appSvc.HandleOrderConfirmation(ctx, msg.Value)
}
