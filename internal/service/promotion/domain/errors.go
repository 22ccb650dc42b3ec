// internal/service/promotion/domain/errors.go
package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// 校验失败的原因。调用方用 errors.Is 判断原因，用 Error() 取面向用户的提示。
var (
	ErrCouponNotFound        = errors.New("Coupon not found")
	ErrCouponInactive        = errors.New("Coupon is not active")
	ErrCouponNotYetValid     = errors.New("Coupon is not yet valid")
	ErrCouponExpired         = errors.New("Coupon has expired")
	ErrUsageLimitReached     = errors.New("Coupon usage limit reached")
	ErrUserUsageLimitReached = errors.New("You have already used this coupon the maximum number of times")
	ErrMinPurchaseNotMet     = errors.New("Minimum purchase not met")
	ErrNotApplicable         = errors.New("Coupon is not applicable to items in cart")
	ErrConditionsNotMet      = errors.New("Coupon conditions not met")
)

// 管理端错误
var (
	ErrInvalidCoupon   = errors.New("invalid coupon")
	ErrCouponCodeTaken = errors.New("coupon code already exists")
)

// RejectionError 是带有具体提示文案的校验失败，Unwrap 返回原因 sentinel
type RejectionError struct {
	Reason  error
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

func (e *RejectionError) Unwrap() error {
	return e.Reason
}

func reject(reason error) error {
	return &RejectionError{Reason: reason, Message: reason.Error()}
}

func rejectf(reason error, format string, args ...interface{}) error {
	return &RejectionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// IsRejection 判断 err 是否为优惠券校验不通过（而不是系统错误）
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

var reasonCodes = map[error]string{
	ErrCouponNotFound:        "not_found",
	ErrCouponInactive:        "inactive",
	ErrCouponNotYetValid:     "not_yet_valid",
	ErrCouponExpired:         "expired",
	ErrUsageLimitReached:     "usage_limit",
	ErrUserUsageLimitReached: "user_usage_limit",
	ErrMinPurchaseNotMet:     "min_purchase",
	ErrNotApplicable:         "not_applicable",
	ErrConditionsNotMet:      "conditions_not_met",
}

// ReasonCode 返回稳定的机器可读原因码，用于指标和响应体
func ReasonCode(err error) string {
	for sentinel, code := range reasonCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "internal"
}
