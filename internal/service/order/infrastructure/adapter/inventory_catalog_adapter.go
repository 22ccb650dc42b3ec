package adapter

import (
	"context"

	"github.com/pkg/errors"

	catalog "storefront/internal/service/catalog/domain"
	"storefront/internal/service/order/domain/port"
)

// InventoryCatalogAdapter 实现了 port.InventoryService，直接使用商品仓储的条件扣减
type InventoryCatalogAdapter struct {
	products catalog.ProductRepository
}

func NewInventoryCatalogAdapter(products catalog.ProductRepository) *InventoryCatalogAdapter {
	return &InventoryCatalogAdapter{products: products}
}

func (a *InventoryCatalogAdapter) GetProducts(ctx context.Context, ids []string) (map[string]port.Product, error) {
	found, err := a.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]port.Product, len(found))
	for id, p := range found {
		out[id] = port.Product{ID: p.ID, Title: p.Title, Price: p.Price, StockQuantity: p.StockQuantity}
	}
	return out, nil
}

func (a *InventoryCatalogAdapter) ReserveStock(ctx context.Context, lines []port.StockLine) error {
	err := a.products.ReserveStock(ctx, toCatalogLines(lines))
	var conflict *catalog.StockConflictError
	if errors.As(err, &conflict) {
		return &port.ReservationConflictError{ProductID: conflict.ProductID}
	}
	return err
}

func (a *InventoryCatalogAdapter) RestoreStock(ctx context.Context, lines []port.StockLine) error {
	return a.products.RestoreStock(ctx, toCatalogLines(lines))
}

func toCatalogLines(lines []port.StockLine) []catalog.StockLine {
	out := make([]catalog.StockLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, catalog.StockLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}
