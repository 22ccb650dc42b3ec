package saga

import (
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
)

// StockValidationHandler 读取权威商品信息并检查库存，一次收集所有问题
type StockValidationHandler struct {
	NextHandler
}

func (h *StockValidationHandler) Handle(c *CheckoutContext) error {
	ctx, span := c.Tracer.Start(c.Ctx, "saga.StockValidation")
	defer span.End()

	logger.Ctx(ctx).Debug().Str("order_id", c.Order.ID).Msg("saga step 1: validating stock")

	if len(c.Cart) == 0 {
		return domain.NewValidationError("Cart is empty")
	}
	ids := make([]string, 0, len(c.Cart))
	for _, it := range c.Cart {
		if it.Quantity < 1 {
			return domain.NewValidationError("Quantity for %s must be at least 1", it.Title)
		}
		if it.Price.IsNegative() {
			return domain.NewValidationError("Price for %s must not be negative", it.Title)
		}
		if it.ProductID != "" {
			ids = append(ids, it.ProductID)
		}
	}
	span.SetAttributes(attribute.StringSlice("product.ids", ids))

	products, err := c.Inventory.GetProducts(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "product lookup failed")
		return errors.Wrap(err, "load products")
	}

	// 同一商品出现在多行时按合计数量判断
	requested := make(map[string]int, len(ids))
	for _, it := range c.Cart {
		if it.ProductID != "" {
			requested[it.ProductID] += it.Quantity
		}
	}

	var issues []domain.StockIssue
	seen := make(map[string]bool, len(ids))
	for _, it := range c.Cart {
		if it.ProductID == "" || seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		qty := requested[it.ProductID]

		p, ok := products[it.ProductID]
		switch {
		case !ok:
			issues = append(issues, domain.StockIssue{
				ProductID: it.ProductID,
				Title:     it.Title,
				Message:   fmt.Sprintf("Product %s no longer exists", it.Title),
				Requested: qty,
			})
		case p.StockQuantity == nil:
		case *p.StockQuantity == 0:
			issues = append(issues, domain.StockIssue{
				ProductID: p.ID,
				Title:     p.Title,
				Message:   fmt.Sprintf("%s is out of stock", p.Title),
				Requested: qty,
			})
		case *p.StockQuantity < qty:
			issues = append(issues, domain.StockIssue{
				ProductID: p.ID,
				Title:     p.Title,
				Message:   fmt.Sprintf("Only %d of %s available", *p.StockQuantity, p.Title),
				Requested: qty,
				Available: *p.StockQuantity,
			})
		}
	}
	if len(issues) > 0 {
		err := &domain.StockError{Issues: issues}
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock validation failed")
		return err
	}

	c.products = products
	span.AddEvent("stock validated")
	return h.executeNext(c)
}
