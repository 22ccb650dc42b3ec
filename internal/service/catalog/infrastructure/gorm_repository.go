// internal/service/catalog/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/service/catalog/domain"
)

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "find product %s", id)
	}
	return toDomainProduct(&model), nil
}

func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	result := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var models []ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	for i := range models {
		result[models[i].ID] = toDomainProduct(&models[i])
	}
	return result, nil
}

func (r *GormProductRepository) List(ctx context.Context, limit, offset int) ([]*domain.Product, error) {
	var models []ProductModel
	err := r.db.WithContext(ctx).Order("id").Limit(limit).Offset(offset).Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products := make([]*domain.Product, 0, len(models))
	for i := range models {
		products = append(products, toDomainProduct(&models[i]))
	}
	return products, nil
}

func (r *GormProductRepository) Create(ctx context.Context, p *domain.Product) error {
	model := fromDomainProduct(p)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrapf(err, "create product %s", p.ID)
	}
	p.CreatedAt, p.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

// Update 只更新可编辑字段，stock_quantity 为 nil 时写入 NULL
func (r *GormProductRepository) Update(ctx context.Context, p *domain.Product) error {
	updateData := map[string]interface{}{
		"title":          p.Title,
		"price":          p.Price,
		"stock_quantity": p.StockQuantity,
	}
	res := r.db.WithContext(ctx).Model(&ProductModel{}).Where("id = ?", p.ID).Updates(updateData)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update product %s", p.ID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// ReserveStock 使用 UPDATE ... WHERE stock_quantity >= ? 做原子条件扣减，依赖受影响行数判断是否成功
func (r *GormProductRepository) ReserveStock(ctx context.Context, lines []domain.StockLine) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			res := tx.Model(&ProductModel{}).
				Where("id = ? AND (stock_quantity IS NULL OR stock_quantity >= ?)", line.ProductID, line.Quantity).
				Update("stock_quantity", gorm.Expr("stock_quantity - ?", line.Quantity))
			if res.Error != nil {
				return errors.Wrapf(res.Error, "reserve stock for product %s", line.ProductID)
			}
			if res.RowsAffected == 0 {
				return &domain.StockConflictError{ProductID: line.ProductID}
			}
		}
		return nil
	})
}

func (r *GormProductRepository) RestoreStock(ctx context.Context, lines []domain.StockLine) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			err := tx.Model(&ProductModel{}).
				Where("id = ? AND stock_quantity IS NOT NULL", line.ProductID).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", line.Quantity)).Error
			if err != nil {
				return errors.Wrapf(err, "restore stock for product %s", line.ProductID)
			}
		}
		return nil
	})
}

// AutoMigrate 创建或更新 products 表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProductModel{})
}
