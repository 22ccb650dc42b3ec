package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// CouponLine 是交给优惠券校验的购物车行
type CouponLine struct {
	ProductID string
	Title     string
	Price     decimal.Decimal
	Quantity  int
}

// CouponDecision 是一次通过的校验结果
type CouponDecision struct {
	CouponID uint64
	Code     string
	Discount decimal.Decimal
}

// CouponRejectedError 表示优惠券在结账时已不可用
type CouponRejectedError struct {
	Message string
}

func (e *CouponRejectedError) Error() string { return e.Message }

// CouponService 是优惠服务的出站端口。
type CouponService interface {
	// Validate 只读校验，不可用时返回 *CouponRejectedError
	Validate(ctx context.Context, code string, lines []CouponLine, subtotal decimal.Decimal, userID string) (*CouponDecision, error)

	// Apply 记录一次使用，同一订单重复调用只计一次
	Apply(ctx context.Context, couponID uint64, userID, orderID string) error

	// Release 是 Apply 的补偿操作
	Release(ctx context.Context, couponID uint64, orderID string) error
}
