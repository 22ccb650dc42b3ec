package port

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product 是结账时读取的权威商品信息
type Product struct {
	ID            string
	Title         string
	Price         decimal.Decimal
	StockQuantity *int // nil 表示不限库存
}

// StockLine 是一行库存预占
type StockLine struct {
	ProductID string
	Quantity  int
}

// ReservationConflictError 表示条件扣减失败，库存已被并发订单占用
type ReservationConflictError struct {
	ProductID string
}

func (e *ReservationConflictError) Error() string {
	return fmt.Sprintf("stock for product %s was taken by a concurrent order", e.ProductID)
}

// InventoryService 是库存的出站端口。
type InventoryService interface {
	// GetProducts 批量读取商品，不存在的商品不在结果中
	GetProducts(ctx context.Context, ids []string) (map[string]Product, error)

	// ReserveStock 原子地预占所有行，任一行失败则全部不扣并返回 *ReservationConflictError
	ReserveStock(ctx context.Context, lines []StockLine) error

	// RestoreStock 是 ReserveStock 的补偿操作
	RestoreStock(ctx context.Context, lines []StockLine) error
}
