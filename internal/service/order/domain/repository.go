// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 在一个事务里写入订单和全部订单项
	Create(ctx context.Context, order *Order) error

	FindByID(ctx context.Context, id string) (*Order, error)

	// ListByUser 按创建时间倒序返回用户的订单
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Order, error)

	// UpdateStatus 仅当当前状态仍为 from 时更新，否则返回 ErrInvalidStatusTransition
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
