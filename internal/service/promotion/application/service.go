package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/metrics"
	"storefront/internal/service/promotion/domain"
)

// ErrInvalidRequest 表示请求体本身不合法（而不是优惠券不可用）
var ErrInvalidRequest = errors.New("invalid request")

// PromotionService 定义了优惠服务提供的所有业务用例
type PromotionService struct {
	couponRepo domain.CouponRepository
	rules      domain.RuleEngine
	tracer     trace.Tracer
	now        func() time.Time
}

func NewPromotionService(repo domain.CouponRepository, rules domain.RuleEngine, tracer trace.Tracer) *PromotionService {
	return &PromotionService{
		couponRepo: repo,
		rules:      rules,
		tracer:     tracer,
		now:        time.Now,
	}
}

// WithClock 替换时间源（测试用）
func (s *PromotionService) WithClock(now func() time.Time) *PromotionService {
	s.now = now
	return s
}

// Validate 是优惠券校验的核心逻辑，只读不写。
// 校验不通过返回 *domain.RejectionError，其它错误为系统错误。
func (s *PromotionService) Validate(ctx context.Context, code string, items []domain.LineItem, subtotal decimal.Decimal, userID string) (*domain.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.ValidateCoupon")
	defer span.End()

	span.SetAttributes(
		attribute.String("coupon.code", code),
		attribute.String("user.id", userID),
		attribute.String("cart.subtotal", subtotal.String()),
	)

	// 1. 精确匹配券码
	coupon, err := s.couponRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrCouponNotFound) {
			return nil, reject(span, &domain.RejectionError{Reason: domain.ErrCouponNotFound, Message: domain.ErrCouponNotFound.Error()})
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "coupon lookup failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("coupon.id", int64(coupon.ID)))

	// 2-3. 状态、有效期、全局次数
	if err := coupon.CheckAvailability(s.now()); err != nil {
		return nil, reject(span, err)
	}

	// 4. 用户维度次数，访客跳过
	if coupon.UserUsageLimit != nil && userID != "" {
		uses, err := s.couponRepo.CountUserUsages(ctx, coupon.ID, userID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "count user usages failed")
			return nil, err
		}
		if err := coupon.CheckUserLimit(uses); err != nil {
			return nil, reject(span, err)
		}
	}

	// 5-6. 最低消费与适用商品
	base, err := coupon.DiscountBase(items, subtotal)
	if err != nil {
		return nil, reject(span, err)
	}

	// 附加 CEL 规则
	if coupon.EligibilityRule != "" {
		ok, err := s.rules.Evaluate(ctx, coupon.EligibilityRule, domain.NewRuleFacts(items, subtotal, userID))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "eligibility rule failed")
			return nil, errors.Wrapf(err, "coupon %s", coupon.Code)
		}
		if !ok {
			return nil, reject(span, &domain.RejectionError{Reason: domain.ErrConditionsNotMet, Message: domain.ErrConditionsNotMet.Error()})
		}
	}

	// 7-9. 计算、封顶、取整
	discount := coupon.ComputeDiscount(base)
	span.SetAttributes(attribute.String("coupon.discount", discount.StringFixed(2)))
	metrics.RecordCouponValidation("valid")
	return &domain.Decision{Coupon: coupon, DiscountAmount: discount}, nil
}

func reject(span trace.Span, err error) error {
	code := domain.ReasonCode(err)
	span.AddEvent("coupon rejected", trace.WithAttributes(attribute.String("reason", code)))
	metrics.RecordCouponValidation(code)
	return err
}

// ValidateCoupon 是 HTTP 用例：校验不通过以 valid=false 返回，不作为错误
func (s *PromotionService) ValidateCoupon(ctx context.Context, req *ValidateCouponRequest, userID string) (*ValidateCouponResponse, error) {
	if req.Code == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "code is required")
	}
	if req.Subtotal < 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "subtotal must not be negative")
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, errors.Wrapf(ErrInvalidRequest, "quantity for %q must be at least 1", it.Title)
		}
		if it.Price < 0 {
			return nil, errors.Wrapf(ErrInvalidRequest, "price for %q must not be negative", it.Title)
		}
	}
	subtotal := decimal.NewFromFloat(req.Subtotal).Round(2)
	decision, err := s.Validate(ctx, req.Code, ToLineItems(req.Items), subtotal, userID)
	if err != nil {
		if domain.IsRejection(err) {
			return &ValidateCouponResponse{Valid: false, Error: err.Error(), Reason: domain.ReasonCode(err)}, nil
		}
		logger.Ctx(ctx).Error().Err(err).Str("coupon_code", req.Code).Msg("coupon validation failed")
		return nil, err
	}
	amount := decision.DiscountAmount.InexactFloat64()
	return &ValidateCouponResponse{
		Valid:          true,
		Coupon:         toSummary(decision.Coupon),
		DiscountAmount: &amount,
	}, nil
}

// ApplyCoupon 在结账时记录一次使用。同一订单重复调用不会重复计数。
func (s *PromotionService) ApplyCoupon(ctx context.Context, couponID uint64, userID, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "promotion.ApplyCoupon")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("coupon.id", int64(couponID)),
		attribute.String("order.id", orderID),
	)

	applied, err := s.couponRepo.ApplyUsage(ctx, couponID, userID, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply coupon failed")
		return err
	}
	if !applied {
		span.AddEvent("usage already recorded for order")
		logger.Ctx(ctx).Info().Uint64("coupon_id", couponID).Str("order_id", orderID).Msg("coupon usage already recorded")
		return nil
	}
	logger.Ctx(ctx).Info().Uint64("coupon_id", couponID).Str("order_id", orderID).Msg("coupon usage recorded")
	return nil
}

// ReleaseCoupon 是 ApplyCoupon 的补偿：订单最终没有落库时撤销使用记录
func (s *PromotionService) ReleaseCoupon(ctx context.Context, couponID uint64, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "promotion.ReleaseCoupon (Compensation)")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("coupon.id", int64(couponID)),
		attribute.String("order.id", orderID),
	)

	released, err := s.couponRepo.ReleaseUsage(ctx, couponID, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release coupon failed")
		return errors.Wrap(err, "compensation failed")
	}
	if released {
		span.AddEvent("coupon usage rolled back")
		logger.Ctx(ctx).Info().Uint64("coupon_id", couponID).Str("order_id", orderID).Msg("compensation: coupon usage rolled back")
	}
	return nil
}

func (s *PromotionService) CreateCoupon(ctx context.Context, req *CreateCouponRequest) (*CouponResponse, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.CreateCoupon")
	defer span.End()

	coupon := &domain.Coupon{
		Code:              req.Code,
		Name:              req.Name,
		DiscountType:      domain.DiscountType(req.DiscountType),
		DiscountValue:     req.DiscountValue,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		UsageLimit:        req.UsageLimit,
		UserUsageLimit:    req.UserUsageLimit,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		IsActive:          req.IsActive,
		ProductIDs:        req.ProductIDs,
		EligibilityRule:   req.EligibilityRule,
	}
	if err := s.checkCoupon(coupon); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if _, err := s.couponRepo.FindByCode(ctx, coupon.Code); err == nil {
		return nil, domain.ErrCouponCodeTaken
	} else if !errors.Is(err, domain.ErrCouponNotFound) {
		span.RecordError(err)
		return nil, err
	}

	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create coupon failed")
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("coupon_code", coupon.Code).Uint64("coupon_id", coupon.ID).Msg("coupon created")
	return toCouponResponse(coupon), nil
}

func (s *PromotionService) GetCoupon(ctx context.Context, id uint64) (*CouponResponse, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.GetCoupon")
	defer span.End()

	coupon, err := s.couponRepo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return toCouponResponse(coupon), nil
}

// UpdateCoupon 读取、合并补丁、校验后写回
func (s *PromotionService) UpdateCoupon(ctx context.Context, id uint64, p domain.CouponPatch) (*CouponResponse, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.UpdateCoupon")
	defer span.End()
	span.SetAttributes(attribute.Int64("coupon.id", int64(id)))

	coupon, err := s.couponRepo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := coupon.ApplyPatch(p); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.checkCoupon(coupon); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.couponRepo.Update(ctx, coupon); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update coupon failed")
		return nil, err
	}
	return toCouponResponse(coupon), nil
}

func (s *PromotionService) checkCoupon(c *domain.Coupon) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.EligibilityRule != "" {
		if err := s.rules.Compile(c.EligibilityRule); err != nil {
			return errors.Wrap(domain.ErrInvalidCoupon, err.Error())
		}
	}
	return nil
}
