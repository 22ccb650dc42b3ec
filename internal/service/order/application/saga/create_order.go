package saga

import (
	"time"

	"go.opentelemetry.io/otel/codes"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
)

// CreateOrderHandler 负责持久化订单
type CreateOrderHandler struct {
	NextHandler
	repo domain.OrderRepository
	now  func() time.Time
}

func NewCreateOrderHandler(repo domain.OrderRepository, now func() time.Time) *CreateOrderHandler {
	return &CreateOrderHandler{repo: repo, now: now}
}

func (h *CreateOrderHandler) Handle(c *CheckoutContext) error {
	ctx, span := c.Tracer.Start(c.Ctx, "saga.CreateOrder")
	defer span.End()

	logger.Ctx(ctx).Debug().Str("order_id", c.Order.ID).Msg("saga step 6: persisting order")

	now := h.now()
	var txID string
	if c.Transaction != nil {
		txID = c.Transaction.ID
	}
	c.Order.CreatedAt = now
	c.Order.MarkAsPaid(txID, now)

	if err := h.repo.Create(ctx, c.Order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save order")
		return &domain.PersistenceError{Err: err}
	}
	span.AddEvent("paid order saved to DB")

	return h.executeNext(c)
}
