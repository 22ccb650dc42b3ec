package saga

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// CouponClaim 是客户端提交的优惠券结果，服务端按配置决定是否重新校验
type CouponClaim struct {
	ID       *uint64
	Code     string
	Discount *decimal.Decimal
}

// CheckoutContext 在 Saga 流程中传递上下文数据。
// 所有外部依赖都是出站端口。
type CheckoutContext struct {
	Ctx    context.Context
	Tracer trace.Tracer

	// 输入
	Order             *domain.Order       // ID、UserID、Shipping 在进入链之前已填好
	Cart              []domain.OrderItem // 客户端提交的购物车
	ClientAmount      decimal.Decimal
	PaymentNonce      string
	Coupon            *CouponClaim
	TrustClientAmount bool

	// 依赖出站端口
	Inventory port.InventoryService
	Coupons   port.CouponService
	Payments  port.PaymentGateway
	Notifier  port.NotificationProducer

	// 各步骤写入的中间结果
	products    map[string]port.Product
	reserved    []port.StockLine
	orderAmount decimal.Decimal
	isFree      bool
	Transaction *port.Transaction

	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddCompensation 把补偿压栈，TriggerCompensation 按后进先出执行
func (c *CheckoutContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

func (c *CheckoutContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	logger.Ctx(ctx).Info().Str("order_id", c.Order.ID).Int("count", len(c.compensations)).Msg("executing compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

// OrderAmount 是最终扣款金额，在 PricingHandler 之后有效
func (c *CheckoutContext) OrderAmount() decimal.Decimal {
	return c.orderAmount
}

func (c *CheckoutContext) IsFree() bool {
	return c.isFree
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(checkoutCtx *CheckoutContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(checkoutCtx *CheckoutContext) error {
	if h.next != nil {
		return h.next.Handle(checkoutCtx)
	}
	return nil
}
