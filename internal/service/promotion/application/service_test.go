package application

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront/internal/pkg/patch"
	"storefront/internal/service/promotion/domain"
	"storefront/internal/service/promotion/infrastructure"
	"storefront/internal/service/promotion/infrastructure/rule"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *PromotionService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infrastructure.AutoMigrate(db))

	rules, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	tracer := noop.NewTracerProvider().Tracer("test")
	return NewPromotionService(infrastructure.NewGormCouponRepository(db), rules, tracer).
		WithClock(func() time.Time { return fixedNow })
}

func intPtr(v int) *int { return &v }

func createCoupon(t *testing.T, svc *PromotionService, req CreateCouponRequest) *CouponResponse {
	t.Helper()
	resp, err := svc.CreateCoupon(context.Background(), &req)
	require.NoError(t, err)
	return resp
}

func TestValidateCoupon_PercentageDiscount(t *testing.T) {
	svc := newTestService(t)
	createCoupon(t, svc, CreateCouponRequest{
		Code: "HALF", Name: "Save", DiscountType: "percentage",
		DiscountValue: decimal.NewFromInt(5), IsActive: true,
	})

	resp, err := svc.ValidateCoupon(context.Background(), &ValidateCouponRequest{
		Code:     "HALF",
		Items:    []LineItemDTO{{ProductID: "p1", Title: "Mug", Price: 50, Quantity: 2}},
		Subtotal: 100,
	}, "u1")
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	require.NotNil(t, resp.DiscountAmount)
	assert.Equal(t, 5.0, *resp.DiscountAmount)
	assert.Equal(t, "HALF", resp.Coupon.Code)
}

func TestValidateCoupon_CappedPercentageWithMinimum(t *testing.T) {
	svc := newTestService(t)
	maxDiscount, minPurchase := decimal.NewFromInt(5), decimal.NewFromInt(20)
	createCoupon(t, svc, CreateCouponRequest{
		Code: "SAVE10", Name: "Ten percent", DiscountType: "percentage",
		DiscountValue: decimal.NewFromInt(10), MaxDiscountAmount: &maxDiscount,
		MinPurchaseAmount: &minPurchase, IsActive: true,
	})

	tests := []struct {
		name     string
		subtotal float64
		valid    bool
		discount float64
		errMsg   string
	}{
		{name: "capped at maximum", subtotal: 100, valid: true, discount: 5},
		{name: "below cap", subtotal: 30, valid: true, discount: 3},
		{name: "below minimum", subtotal: 15, errMsg: "Minimum purchase of 20.00 required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.ValidateCoupon(context.Background(), &ValidateCouponRequest{
				Code:     "SAVE10",
				Items:    []LineItemDTO{{ProductID: "p1", Title: "Mug", Price: tt.subtotal, Quantity: 1}},
				Subtotal: tt.subtotal,
			}, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.valid, resp.Valid)
			if !tt.valid {
				assert.Equal(t, tt.errMsg, resp.Error)
				assert.Nil(t, resp.DiscountAmount)
				return
			}
			require.NotNil(t, resp.DiscountAmount)
			assert.Equal(t, tt.discount, *resp.DiscountAmount)
		})
	}
}

func TestValidateCoupon_RejectionsAreNotErrors(t *testing.T) {
	svc := newTestService(t)
	minPurchase := decimal.NewFromInt(50)
	createCoupon(t, svc, CreateCouponRequest{
		Code: "BIG", DiscountType: "fixed", DiscountValue: decimal.NewFromInt(10),
		MinPurchaseAmount: &minPurchase, IsActive: true,
	})

	resp, err := svc.ValidateCoupon(context.Background(), &ValidateCouponRequest{Code: "BIG", Subtotal: 20}, "")
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, "Minimum purchase of 50.00 required", resp.Error)
	assert.Equal(t, "min_purchase", resp.Reason)
	assert.Nil(t, resp.DiscountAmount)

	resp, err = svc.ValidateCoupon(context.Background(), &ValidateCouponRequest{Code: "big", Subtotal: 100}, "")
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, "Coupon not found", resp.Error)
}

func TestValidateCoupon_InvalidRequest(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateCoupon(context.Background(), &ValidateCouponRequest{Subtotal: 10}, "")
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = svc.ValidateCoupon(context.Background(), &ValidateCouponRequest{Code: "X", Subtotal: -1}, "")
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = svc.ValidateCoupon(context.Background(), &ValidateCouponRequest{
		Code:     "X",
		Items:    []LineItemDTO{{Title: "credit", Price: -50, Quantity: 1}},
		Subtotal: 0,
	}, "")
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestValidate_UserLimitSkippedForGuests(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	c := createCoupon(t, svc, CreateCouponRequest{
		Code: "ONCE", DiscountType: "fixed", DiscountValue: decimal.NewFromInt(5),
		UserUsageLimit: intPtr(1), IsActive: true,
	})
	require.NoError(t, svc.ApplyCoupon(ctx, c.ID, "u1", "order-1"))

	_, err := svc.Validate(ctx, "ONCE", nil, decimal.NewFromInt(20), "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUserUsageLimitReached))

	decision, err := svc.Validate(ctx, "ONCE", nil, decimal.NewFromInt(20), "")
	require.NoError(t, err)
	assert.True(t, decision.DiscountAmount.Equal(decimal.NewFromInt(5)))
}

func TestValidate_DoesNotConsumeUsage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	c := createCoupon(t, svc, CreateCouponRequest{
		Code: "LIMITED", DiscountType: "fixed", DiscountValue: decimal.NewFromInt(5),
		UsageLimit: intPtr(1), IsActive: true,
	})

	var amounts []decimal.Decimal
	for i := 0; i < 3; i++ {
		decision, err := svc.Validate(ctx, "LIMITED", nil, decimal.NewFromInt(20), "u1")
		require.NoError(t, err)
		amounts = append(amounts, decision.DiscountAmount)
	}
	for _, a := range amounts {
		assert.True(t, a.Equal(decimal.NewFromInt(5)), "got %s", a)
	}

	require.NoError(t, svc.ApplyCoupon(ctx, c.ID, "u1", "order-1"))
	require.NoError(t, svc.ApplyCoupon(ctx, c.ID, "u1", "order-1"))

	got, err := svc.GetCoupon(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentUsageCount)

	_, err = svc.Validate(ctx, "LIMITED", nil, decimal.NewFromInt(20), "u2")
	assert.True(t, errors.Is(err, domain.ErrUsageLimitReached))

	require.NoError(t, svc.ReleaseCoupon(ctx, c.ID, "order-1"))
	_, err = svc.Validate(ctx, "LIMITED", nil, decimal.NewFromInt(20), "u2")
	assert.NoError(t, err)
}

func TestValidate_EligibilityRule(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	createCoupon(t, svc, CreateCouponRequest{
		Code: "BULK", DiscountType: "percentage", DiscountValue: decimal.NewFromInt(10),
		EligibilityRule: "item_count >= 3", IsActive: true,
	})

	items := []domain.LineItem{{ProductID: "p1", Price: decimal.NewFromInt(10), Quantity: 2}}
	_, err := svc.Validate(ctx, "BULK", items, decimal.NewFromInt(20), "")
	assert.True(t, errors.Is(err, domain.ErrConditionsNotMet))

	items[0].Quantity = 3
	decision, err := svc.Validate(ctx, "BULK", items, decimal.NewFromInt(30), "")
	require.NoError(t, err)
	assert.True(t, decision.DiscountAmount.Equal(decimal.NewFromInt(3)))
}

func TestValidate_ExpiredCoupon(t *testing.T) {
	svc := newTestService(t)
	createCoupon(t, svc, CreateCouponRequest{
		Code: "OLD", DiscountType: "fixed", DiscountValue: decimal.NewFromInt(5),
		ValidUntil: fixedNow.Add(-24 * time.Hour), IsActive: true,
	})

	_, err := svc.Validate(context.Background(), "OLD", nil, decimal.NewFromInt(20), "")
	assert.True(t, errors.Is(err, domain.ErrCouponExpired))
}

func TestCreateCoupon_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	createCoupon(t, svc, CreateCouponRequest{
		Code: "SAVE10", DiscountType: "percentage", DiscountValue: decimal.NewFromInt(10), IsActive: true,
	})

	_, err := svc.CreateCoupon(ctx, &CreateCouponRequest{
		Code: "SAVE10", DiscountType: "percentage", DiscountValue: decimal.NewFromInt(10),
	})
	assert.True(t, errors.Is(err, domain.ErrCouponCodeTaken))

	_, err = svc.CreateCoupon(ctx, &CreateCouponRequest{
		Code: "BAD", DiscountType: "percentage", DiscountValue: decimal.NewFromInt(10),
		EligibilityRule: "subtotal +",
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidCoupon))
}

func TestUpdateCoupon(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	c := createCoupon(t, svc, CreateCouponRequest{
		Code: "SAVE10", Name: "Old", DiscountType: "percentage",
		DiscountValue: decimal.NewFromInt(10), UsageLimit: intPtr(5), IsActive: true,
	})

	resp, err := svc.UpdateCoupon(ctx, c.ID, domain.CouponPatch{
		Name:       patch.Of("New"),
		UsageLimit: patch.Null[int](),
	})
	require.NoError(t, err)
	assert.Equal(t, "New", resp.Name)
	assert.Nil(t, resp.UsageLimit)
	assert.Equal(t, "SAVE10", resp.Code)

	_, err = svc.UpdateCoupon(ctx, c.ID+1, domain.CouponPatch{Name: patch.Of("x")})
	assert.True(t, errors.Is(err, domain.ErrCouponNotFound))
}
