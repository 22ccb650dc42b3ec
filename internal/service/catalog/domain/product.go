// internal/service/catalog/domain/product.go
package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/pkg/patch"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

// Product 是商品目录中的商品。StockQuantity 为 nil 表示不限库存。
type Product struct {
	ID            string
	Title         string
	Price         decimal.Decimal
	StockQuantity *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewProduct(id, title string, price decimal.Decimal, stock *int) (*Product, error) {
	p := &Product{ID: strings.TrimSpace(id), Title: strings.TrimSpace(title), Price: price, StockQuantity: stock}
	if p.ID == "" {
		return nil, errors.Wrap(ErrInvalidProduct, "id is required")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Product) validate() error {
	if p.Title == "" {
		return errors.Wrap(ErrInvalidProduct, "title is required")
	}
	if p.Price.IsNegative() {
		return errors.Wrap(ErrInvalidProduct, "price must not be negative")
	}
	if p.StockQuantity != nil && *p.StockQuantity < 0 {
		return errors.Wrap(ErrInvalidProduct, "stock quantity must not be negative")
	}
	return nil
}

// Unlimited 表示该商品不做库存控制
func (p *Product) Unlimited() bool {
	return p.StockQuantity == nil
}

// ProductPatch 是商品的部分更新，StockQuantity 可以显式置空改为不限库存
type ProductPatch struct {
	Title         patch.Field[string]          `json:"title"`
	Price         patch.Field[decimal.Decimal] `json:"price"`
	StockQuantity patch.Field[int]             `json:"stockQuantity"`
}

// ApplyPatch 把补丁合并到商品上，合并后整体校验，失败时商品保持原样
func (p *Product) ApplyPatch(pp ProductPatch) error {
	next := *p
	if pp.Title.Set {
		if pp.Title.Null {
			return errors.Wrap(ErrInvalidProduct, "title cannot be null")
		}
		next.Title = strings.TrimSpace(pp.Title.Value)
	}
	if pp.Price.Set {
		if pp.Price.Null {
			return errors.Wrap(ErrInvalidProduct, "price cannot be null")
		}
		next.Price = pp.Price.Value
	}
	pp.StockQuantity.ApplyTo(&next.StockQuantity)

	if err := next.validate(); err != nil {
		return err
	}
	*p = next
	return nil
}

// StockLine 是一次库存预占/归还中的一行
type StockLine struct {
	ProductID string
	Quantity  int
}

// StockConflictError 表示条件扣减没有命中任何行：库存已被并发订单占用或商品已不存在
type StockConflictError struct {
	ProductID string
}

func (e *StockConflictError) Error() string {
	return "insufficient stock for product " + e.ProductID
}
