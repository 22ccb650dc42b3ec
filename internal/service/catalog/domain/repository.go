// internal/service/catalog/domain/repository.go
package domain

import "context"

// ProductRepository 定义了商品的持久化接口，由基础设施层实现
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*Product, error)
	// FindByIDs 批量查询，不存在的 id 不会出现在结果中
	FindByIDs(ctx context.Context, ids []string) (map[string]*Product, error)
	List(ctx context.Context, limit, offset int) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error

	// ReserveStock 在一个事务内对所有行做条件扣减，任一行未命中则全部回滚并返回 *StockConflictError
	ReserveStock(ctx context.Context, lines []StockLine) error
	// RestoreStock 归还此前预占的库存，不限库存的商品忽略
	RestoreStock(ctx context.Context, lines []StockLine) error
}
