// internal/service/order/domain/state.go
package domain

import "github.com/pkg/errors"

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending   Status = "pending" // 保留在枚举中，结账流程不会产生
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// transitions 列出管理员可以执行的状态流转
var transitions = map[Status][]Status{
	StatusPaid:    {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

// ParseStatus 把外部输入转换为 Status
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", errors.Errorf("unknown order status %q", s)
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
