package port

import (
	"context"

	"storefront/internal/service/order/domain"
)

// NotificationProducer 是订单确认消息的出站端口。
type NotificationProducer interface {
	PublishOrderConfirmation(ctx context.Context, evt *domain.OrderConfirmation) error
}
