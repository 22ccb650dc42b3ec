package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrCheckoutInProgress      = errors.New("checkout already in progress")
	ErrIdempotencyKeyReused    = errors.New("idempotency key was already used for a different request")
)

// ValidationError 表示请求本身不合法，包括金额与购物车不一致
type ValidationError struct {
	Message string
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.Message }

// StockIssue 描述一个商品的库存问题
type StockIssue struct {
	ProductID string
	Title     string
	Message   string
	Requested int
	Available int
}

// StockError 汇总所有库存问题，一次返回给客户端
type StockError struct {
	Issues []StockIssue
}

func (e *StockError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.Message)
	}
	return "Insufficient stock: " + strings.Join(msgs, "; ")
}

// PaymentError 表示支付网关失败。Declined 为 true 时是卡被拒等用户可修正的错误，否则是网关或配置问题
type PaymentError struct {
	Message  string
	Declined bool
	Err      error
}

func (e *PaymentError) Error() string {
	if e.Err != nil && !e.Declined {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *PaymentError) Unwrap() error { return e.Err }

// PersistenceError 表示订单落库失败
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "failed to persist order: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
