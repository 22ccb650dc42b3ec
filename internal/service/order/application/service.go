// internal/service/order/application/service.go
package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/order/application/saga"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

const (
	compensationTimeout = 30 * time.Second
	maxPageSize         = 100
)

// Options 是结账流程的可调参数
type Options struct {
	// TrustClientAmount 为 true 时直接按客户端金额扣款，不与购物车核对
	TrustClientAmount   bool
	Timeout             time.Duration
	NotificationTimeout time.Duration
}

// OrderApplicationService 只关注业务流程编排。
type OrderApplicationService struct {
	orderRepo   domain.OrderRepository
	tracer      trace.Tracer
	inventory   port.InventoryService
	coupons     port.CouponService
	payments    port.PaymentGateway
	notifier    port.NotificationProducer
	idempotency port.IdempotencyStore // 可为 nil
	opts        Options
	now         func() time.Time

	notifications sync.WaitGroup
}

func NewOrderApplicationService(
	orderRepo domain.OrderRepository,
	tracer trace.Tracer,
	inventory port.InventoryService,
	coupons port.CouponService,
	payments port.PaymentGateway,
	notifier port.NotificationProducer,
	idempotency port.IdempotencyStore,
	opts Options,
) *OrderApplicationService {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.NotificationTimeout <= 0 {
		opts.NotificationTimeout = 5 * time.Second
	}
	return &OrderApplicationService{
		orderRepo: orderRepo, tracer: tracer,
		inventory: inventory, coupons: coupons, payments: payments,
		notifier: notifier, idempotency: idempotency,
		opts: opts, now: time.Now,
	}
}

// WithClock 替换时间源（测试用）
func (s *OrderApplicationService) WithClock(now func() time.Time) *OrderApplicationService {
	s.now = now
	return s
}

// Checkout 是结账入口。idempotencyKey 非空时，同一用户用相同请求体重试会拿到第一次成功的结果，
// 请求体不同则返回 domain.ErrIdempotencyKeyReused。
func (s *OrderApplicationService) Checkout(ctx context.Context, req *CheckoutRequest, userID, idempotencyKey string) (*CheckoutResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.Checkout")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("cart.items", len(req.Items)),
		attribute.Bool("checkout.idempotent", idempotencyKey != ""),
	)

	if idempotencyKey == "" || s.idempotency == nil {
		resp, err := s.checkout(ctx, req, userID)
		s.finish(ctx, span, err)
		return resp, err
	}

	fingerprint, err := requestFingerprint(req)
	if err != nil {
		return nil, err
	}
	key := idempotencyScope(userID, idempotencyKey, fingerprint)
	stored, err := s.idempotency.Claim(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCheckoutInProgress) {
			err = errors.Wrap(err, "claim idempotency key")
		}
		s.finish(ctx, span, err)
		return nil, err
	}
	if stored != nil {
		var rec idempotencyRecord
		if err := json.Unmarshal(stored, &rec); err != nil {
			return nil, errors.Wrap(err, "decode stored checkout response")
		}
		if rec.Response == nil {
			return nil, errors.New("stored checkout response is empty")
		}
		if rec.Fingerprint != fingerprint {
			s.finish(ctx, span, domain.ErrIdempotencyKeyReused)
			return nil, domain.ErrIdempotencyKeyReused
		}
		span.AddEvent("replayed stored checkout response")
		metrics.RecordCheckout("replayed")
		return rec.Response, nil
	}

	resp, err := s.checkout(ctx, req, userID)
	s.finish(ctx, span, err)

	// 占位的读写不应受客户端断开影响
	bg := context.WithoutCancel(ctx)
	if err != nil {
		if relErr := s.idempotency.Release(bg, key); relErr != nil {
			logger.Ctx(ctx).Error().Err(relErr).Msg("failed to release idempotency key")
		}
		return nil, err
	}
	if raw, mErr := json.Marshal(idempotencyRecord{Fingerprint: fingerprint, Response: resp}); mErr == nil {
		if cErr := s.idempotency.Complete(bg, key, raw); cErr != nil {
			logger.Ctx(ctx).Error().Err(cErr).Str("order_id", resp.OrderID).Msg("failed to store checkout response")
		}
	}
	return resp, nil
}

func (s *OrderApplicationService) checkout(ctx context.Context, req *CheckoutRequest, userID string) (*CheckoutResponse, error) {
	processingCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	shipping := req.shipping()
	if err := shipping.Validate(); err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:       uuid.NewString(),
		UserID:   userID,
		Shipping: shipping,
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("order.id", order.ID))

	checkoutCtx := &saga.CheckoutContext{
		Ctx:               processingCtx,
		Tracer:            s.tracer,
		Order:             order,
		Cart:              req.cart(),
		ClientAmount:      decimal.NewFromFloat(req.Amount).Round(2),
		PaymentNonce:      req.PaymentMethodNonce,
		Coupon:            couponClaim(req),
		TrustClientAmount: s.opts.TrustClientAmount,
		Inventory:         s.inventory,
		Coupons:           s.coupons,
		Payments:          s.payments,
		Notifier:          s.notifier,
	}

	logger.Ctx(ctx).Info().Str("order_id", order.ID).Str("user_id", userID).Msg("starting checkout")

	if err := s.buildChain().Handle(checkoutCtx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID).Msg("checkout chain failed, compensation triggered")
		compCtx, compCancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
		checkoutCtx.TriggerCompensation(compCtx)
		compCancel()
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("order_id", order.ID).Str("total", order.TotalAmount.StringFixed(2)).Msg("checkout completed")
	return &CheckoutResponse{
		Success:     true,
		OrderID:     order.ID,
		Transaction: toTransactionDTO(checkoutCtx.Transaction),
	}, nil
}

func (s *OrderApplicationService) buildChain() saga.Handler {
	chain := new(saga.StockValidationHandler)
	chain.
		SetNext(new(saga.PricingHandler)).
		SetNext(new(saga.StockReservationHandler)).
		SetNext(new(saga.PaymentHandler)).
		SetNext(new(saga.CouponUsageHandler)).
		SetNext(saga.NewCreateOrderHandler(s.orderRepo, s.now)).
		SetNext(saga.NewNotificationHandler(&s.notifications, s.opts.NotificationTimeout))
	return chain
}

func (s *OrderApplicationService) finish(ctx context.Context, span trace.Span, err error) {
	outcome := checkoutOutcome(err)
	metrics.RecordCheckout(outcome)
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	if outcome == "internal_error" || outcome == "persistence_error" {
		logger.Ctx(ctx).Error().Err(err).Msg("checkout failed")
	}
}

// WaitForNotifications 等待所有异步通知发完，用于优雅退出
func (s *OrderApplicationService) WaitForNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.notifications.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetOrder 只对订单所有者和管理员可见，其它情况按不存在处理
func (s *OrderApplicationService) GetOrder(ctx context.Context, id, userID string, isAdmin bool) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id))

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !order.VisibleTo(userID, isAdmin) {
		return nil, domain.ErrOrderNotFound
	}
	return toOrderResponse(order), nil
}

func (s *OrderApplicationService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOrders")
	defer span.End()

	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	orders, err := s.orderRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out, nil
}

// UpdateStatus 是管理员的状态流转，条件更新保证并发修改时只有一个成功
func (s *OrderApplicationService) UpdateStatus(ctx context.Context, id, status string) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id), attribute.String("order.status.next", status))

	next, err := domain.ParseStatus(status)
	if err != nil {
		return nil, domain.NewValidationError("%s", err.Error())
	}
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	from := order.Status
	if err := order.TransitionTo(next, s.now()); err != nil {
		return nil, errors.Wrapf(err, "%s -> %s", from, next)
	}
	if err := s.orderRepo.UpdateStatus(ctx, id, from, next); err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("order_id", id).Str("from", string(from)).Str("to", string(next)).Msg("order status updated")
	return toOrderResponse(order), nil
}

func couponClaim(req *CheckoutRequest) *saga.CouponClaim {
	if req.CouponID == nil && req.CouponCode == "" {
		return nil
	}
	claim := &saga.CouponClaim{ID: req.CouponID, Code: req.CouponCode}
	if req.DiscountAmount != nil {
		d := decimal.NewFromFloat(*req.DiscountAmount).Round(2)
		claim.Discount = &d
	}
	return claim
}

// idempotencyRecord 是幂等键下保存的内容，重放前先核对请求指纹
type idempotencyRecord struct {
	Fingerprint string            `json:"fingerprint"`
	Response    *CheckoutResponse `json:"response"`
}

// requestFingerprint 对请求体做 sha256，字段顺序由结构体固定
func requestFingerprint(req *CheckoutRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "fingerprint checkout request")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// 访客没有身份可区分，键里带上请求指纹，不同访客的同名 key 不会互相命中
func idempotencyScope(userID, key, fingerprint string) string {
	if userID == "" {
		return "guest:" + fingerprint + ":" + key
	}
	return "user:" + userID + ":" + key
}

func checkoutOutcome(err error) string {
	var (
		stockErr   *domain.StockError
		validErr   *domain.ValidationError
		payErr     *domain.PaymentError
		persistErr *domain.PersistenceError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &stockErr):
		return "stock_error"
	case errors.As(err, &validErr):
		return "validation_error"
	case errors.As(err, &payErr):
		return "payment_error"
	case errors.As(err, &persistErr):
		return "persistence_error"
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return "in_progress"
	case errors.Is(err, domain.ErrIdempotencyKeyReused):
		return "idempotency_mismatch"
	default:
		return "internal_error"
	}
}
