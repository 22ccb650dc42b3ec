package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/pkg/patch"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func newPercentCoupon() *Coupon {
	return &Coupon{
		ID:            1,
		Code:          "SAVE10",
		Name:          "10% off",
		DiscountType:  DiscountPercentage,
		DiscountValue: dec("10"),
		IsActive:      true,
	}
}

func TestComputeDiscount_Percentage(t *testing.T) {
	c := newPercentCoupon()
	c.DiscountValue = dec("5")

	assert.True(t, c.ComputeDiscount(dec("100")).Equal(dec("5")))
	// 按分四舍五入
	assert.Equal(t, "1.67", c.ComputeDiscount(dec("33.33")).StringFixed(2))
}

func TestComputeDiscount_FixedNeverExceedsBase(t *testing.T) {
	c := &Coupon{Code: "FLAT20", DiscountType: DiscountFixed, DiscountValue: dec("20"), IsActive: true}

	assert.True(t, c.ComputeDiscount(dec("100")).Equal(dec("20")))
	assert.True(t, c.ComputeDiscount(dec("12.5")).Equal(dec("12.5")))
}

func TestComputeDiscount_Cap(t *testing.T) {
	c := newPercentCoupon()
	c.DiscountValue = dec("50")
	c.MaxDiscountAmount = decPtr("15")

	assert.True(t, c.ComputeDiscount(dec("100")).Equal(dec("15")))
	assert.True(t, c.ComputeDiscount(dec("20")).Equal(dec("10")))
}

func TestDiscountBase_MinPurchase(t *testing.T) {
	c := newPercentCoupon()
	c.MinPurchaseAmount = decPtr("50")

	_, err := c.DiscountBase(nil, dec("49.99"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMinPurchaseNotMet))
	assert.Equal(t, "Minimum purchase of 50.00 required", err.Error())
	assert.Equal(t, "min_purchase", ReasonCode(err))

	base, err := c.DiscountBase(nil, dec("50"))
	require.NoError(t, err)
	assert.True(t, base.Equal(dec("50")))
}

func TestDiscountBase_RestrictedProducts(t *testing.T) {
	c := newPercentCoupon()
	c.ProductIDs = []string{"p1", "p3"}

	items := []LineItem{
		{ProductID: "p1", Title: "Mug", Price: dec("10"), Quantity: 2},
		{ProductID: "p2", Title: "Shirt", Price: dec("25"), Quantity: 1},
		{Title: "Custom item", Price: dec("5"), Quantity: 1},
	}
	base, err := c.DiscountBase(items, dec("50"))
	require.NoError(t, err)
	assert.True(t, base.Equal(dec("20")))

	_, err = c.DiscountBase(items[1:], dec("30"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotApplicable))
	assert.Equal(t, "not_applicable", ReasonCode(err))
}

func TestCheckAvailability(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(c *Coupon)
		want   error
	}{
		{name: "available", mutate: func(c *Coupon) {}},
		{name: "inactive", mutate: func(c *Coupon) { c.IsActive = false }, want: ErrCouponInactive},
		{name: "not yet valid", mutate: func(c *Coupon) { c.ValidFrom = now.Add(time.Hour) }, want: ErrCouponNotYetValid},
		{name: "expired", mutate: func(c *Coupon) { c.ValidUntil = now.Add(-time.Hour) }, want: ErrCouponExpired},
		{name: "usage limit", mutate: func(c *Coupon) {
			c.UsageLimit = intPtr(3)
			c.CurrentUsageCount = 3
		}, want: ErrUsageLimitReached},
		{name: "usage limit not reached", mutate: func(c *Coupon) {
			c.UsageLimit = intPtr(3)
			c.CurrentUsageCount = 2
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newPercentCoupon()
			tt.mutate(c)
			err := c.CheckAvailability(now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, IsRejection(err))
			assert.Equal(t, tt.want.Error(), err.Error())
		})
	}
}

func TestCheckUserLimit(t *testing.T) {
	c := newPercentCoupon()
	assert.NoError(t, c.CheckUserLimit(10))

	c.UserUsageLimit = intPtr(1)
	assert.NoError(t, c.CheckUserLimit(0))
	err := c.CheckUserLimit(1)
	require.Error(t, err)
	assert.Equal(t, "user_usage_limit", ReasonCode(err))
}

func TestValidate(t *testing.T) {
	c := newPercentCoupon()
	require.NoError(t, c.Validate())

	c.DiscountValue = dec("120")
	assert.True(t, errors.Is(c.Validate(), ErrInvalidCoupon))

	c = newPercentCoupon()
	c.DiscountType = "bogo"
	assert.True(t, errors.Is(c.Validate(), ErrInvalidCoupon))

	c = newPercentCoupon()
	c.ValidFrom = time.Now()
	c.ValidUntil = c.ValidFrom.Add(-time.Minute)
	assert.True(t, errors.Is(c.Validate(), ErrInvalidCoupon))
}

func TestNewRuleFacts_CountsQuantities(t *testing.T) {
	facts := NewRuleFacts([]LineItem{
		{ProductID: "p1", Quantity: 2},
		{Title: "custom", Quantity: 3},
	}, dec("40"), "u1")

	assert.Equal(t, 5, facts.ItemCount)
	assert.Equal(t, []string{"p1"}, facts.ProductIDs)
	assert.Equal(t, "u1", facts.UserID)
}

func TestApplyPatch_MergesOnlyPresentFields(t *testing.T) {
	c := newPercentCoupon()
	c.MinPurchaseAmount = decPtr("50")
	c.UsageLimit = intPtr(10)

	var p CouponPatch
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Summer","minPurchaseAmount":null,"usageLimit":20}`), &p))
	require.NoError(t, c.ApplyPatch(p))

	assert.Equal(t, "Summer", c.Name)
	assert.Equal(t, "SAVE10", c.Code)
	assert.Nil(t, c.MinPurchaseAmount)
	require.NotNil(t, c.UsageLimit)
	assert.Equal(t, 20, *c.UsageLimit)
	assert.True(t, c.DiscountValue.Equal(dec("10")))
}

func TestApplyPatch_RejectsInvalidResultWithoutMutating(t *testing.T) {
	c := newPercentCoupon()

	err := c.ApplyPatch(CouponPatch{
		Name:          patch.Of("Broken"),
		DiscountValue: patch.Of(dec("150")),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCoupon))
	assert.Equal(t, "10% off", c.Name)

	err = c.ApplyPatch(CouponPatch{IsActive: patch.Null[bool]()})
	assert.True(t, errors.Is(err, ErrInvalidCoupon))
	assert.True(t, c.IsActive)
}
