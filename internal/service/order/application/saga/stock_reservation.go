package saga

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// StockReservationHandler 负责库存预占步骤，条件扣减失败即视为被并发订单抢走
type StockReservationHandler struct {
	NextHandler
}

func (h *StockReservationHandler) Handle(c *CheckoutContext) error {
	ctx, span := c.Tracer.Start(c.Ctx, "saga.StockReservation")
	defer span.End()

	logger.Ctx(ctx).Debug().Str("order_id", c.Order.ID).Msg("saga step 3: reserving stock")

	lines := reservationLines(c.Order.Items)
	if len(lines) == 0 {
		return h.executeNext(c)
	}

	if err := c.Inventory.ReserveStock(ctx, lines); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inventory reservation failed")

		var conflict *port.ReservationConflictError
		if errors.As(err, &conflict) {
			metrics.RecordStockConflict()
			return &domain.StockError{Issues: []domain.StockIssue{h.conflictIssue(c, conflict.ProductID)}}
		}
		return errors.Wrap(err, "reserve stock")
	}
	c.reserved = lines

	c.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := c.Tracer.Start(compCtx, "saga.compensation.RestoreStock")
		defer compSpan.End()

		// 补偿失败需要人工介入，这里只记录
		if err := c.Inventory.RestoreStock(compCtx, lines); err != nil {
			compSpan.RecordError(err)
			metrics.RecordNonFatalFailure("restore_stock")
			logger.Ctx(compCtx).Error().Err(err).Str("order_id", c.Order.ID).Msg("compensation: failed to restore stock")
		}
	})

	span.AddEvent("all items reserved")
	return h.executeNext(c)
}

func (h *StockReservationHandler) conflictIssue(c *CheckoutContext, productID string) domain.StockIssue {
	issue := domain.StockIssue{ProductID: productID, Title: productID}
	for _, it := range c.Order.Items {
		if it.ProductID == productID {
			issue.Title = it.Title
			issue.Requested += it.Quantity
		}
	}
	issue.Message = fmt.Sprintf("%s is no longer available in the requested quantity", issue.Title)
	return issue
}

// reservationLines 按商品合并数量，并按 id 排序，保证并发事务以相同顺序加行锁
func reservationLines(items []domain.OrderItem) []port.StockLine {
	qty := make(map[string]int)
	for _, it := range items {
		if it.ProductID != "" {
			qty[it.ProductID] += it.Quantity
		}
	}
	lines := make([]port.StockLine, 0, len(qty))
	for id, q := range qty {
		lines = append(lines, port.StockLine{ProductID: id, Quantity: q})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

