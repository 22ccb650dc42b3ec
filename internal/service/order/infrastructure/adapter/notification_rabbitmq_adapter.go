package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/pkg/mq"
	"storefront/internal/service/order/domain"
)

// NotificationRabbitMQAdapter 是 port.NotificationProducer 的 RabbitMQ 实现，
// 通过 notification.transport=rabbitmq 启用
type NotificationRabbitMQAdapter struct {
	mq *mq.RabbitMQ
}

func NewNotificationRabbitMQAdapter(r *mq.RabbitMQ) *NotificationRabbitMQAdapter {
	return &NotificationRabbitMQAdapter{mq: r}
}

func (a *NotificationRabbitMQAdapter) PublishOrderConfirmation(ctx context.Context, evt *domain.OrderConfirmation) error {
	eventBytes, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal order confirmation: %w", err)
	}
	return a.mq.Publish(ctx, evt.EventID, eventBytes)
}

func (a *NotificationRabbitMQAdapter) Close() error {
	a.mq.Close()
	return nil
}
