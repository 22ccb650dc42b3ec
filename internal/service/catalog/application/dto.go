package application

import (
	"github.com/shopspring/decimal"

	"storefront/internal/service/catalog/domain"
)

// CreateProductRequest 是管理员创建商品的请求体，stockQuantity 省略表示不限库存
type CreateProductRequest struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	StockQuantity *int    `json:"stockQuantity"`
}

// ProductResponse 是商品的对外表示
type ProductResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	StockQuantity *int    `json:"stockQuantity"`
}

func toProductResponse(p *domain.Product) *ProductResponse {
	return &ProductResponse{
		ID:            p.ID,
		Title:         p.Title,
		Price:         p.Price.InexactFloat64(),
		StockQuantity: p.StockQuantity,
	}
}

func (r *CreateProductRequest) price() decimal.Decimal {
	return decimal.NewFromFloat(r.Price).Round(2)
}
