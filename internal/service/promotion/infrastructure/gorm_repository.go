package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/service/promotion/domain"
)

// GormCouponRepository 是 CouponRepository 的 GORM 实现
type GormCouponRepository struct {
	db *gorm.DB
}

func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// FindByCode 在数据库中查找后再做一次精确比较，保证在大小写不敏感的排序规则下也区分大小写
func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var model CouponModel
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, errors.Wrapf(err, "find coupon by code")
	}
	if model.Code != code {
		return nil, domain.ErrCouponNotFound
	}
	return ToDomainCoupon(&model), nil
}

func (r *GormCouponRepository) FindByID(ctx context.Context, id uint64) (*domain.Coupon, error) {
	var model CouponModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %d", id)
	}
	return ToDomainCoupon(&model), nil
}

func (r *GormCouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	model := FromDomainCoupon(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrapf(err, "create coupon %s", c.Code)
	}
	c.ID, c.CreatedAt, c.UpdatedAt = model.ID, model.CreatedAt, model.UpdatedAt
	return nil
}

// Update 只写回管理端可编辑的字段，current_usage_count 只能通过 ApplyUsage/ReleaseUsage 变更
func (r *GormCouponRepository) Update(ctx context.Context, c *domain.Coupon) error {
	model := FromDomainCoupon(c)
	updateData := map[string]interface{}{
		"name":                model.Name,
		"discount_type":       model.DiscountType,
		"discount_value":      model.DiscountValue,
		"min_purchase_amount": model.MinPurchaseAmount,
		"max_discount_amount": model.MaxDiscountAmount,
		"usage_limit":         model.UsageLimit,
		"user_usage_limit":    model.UserUsageLimit,
		"valid_from":          model.ValidFrom,
		"valid_until":         model.ValidUntil,
		"is_active":           model.IsActive,
		"product_ids":         model.ProductIDs,
		"eligibility_rule":    model.EligibilityRule,
	}
	res := r.db.WithContext(ctx).Model(&CouponModel{}).Where("id = ?", c.ID).Updates(updateData)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update coupon %d", c.ID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCouponNotFound
	}
	return nil
}

func (r *GormCouponRepository) CountUserUsages(ctx context.Context, couponID uint64, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&CouponUsageModel{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count coupon usages")
	}
	return count, nil
}

func (r *GormCouponRepository) ApplyUsage(ctx context.Context, couponID uint64, userID, orderID string) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&CouponUsageModel{}).
			Where("coupon_id = ? AND order_id = ?", couponID, orderID).
			Count(&existing).Error; err != nil {
			return errors.Wrap(err, "check existing usage")
		}
		if existing > 0 {
			return nil
		}

		usage := &CouponUsageModel{CouponID: couponID, OrderID: orderID}
		if userID != "" {
			usage.UserID = &userID
		}
		if err := tx.Create(usage).Error; err != nil {
			return errors.Wrap(err, "insert coupon usage")
		}
		res := tx.Model(&CouponModel{}).Where("id = ?", couponID).
			Update("current_usage_count", gorm.Expr("current_usage_count + 1"))
		if res.Error != nil {
			return errors.Wrap(res.Error, "increment usage count")
		}
		if res.RowsAffected == 0 {
			return domain.ErrCouponNotFound
		}
		applied = true
		return nil
	})
	return applied, err
}

func (r *GormCouponRepository) ReleaseUsage(ctx context.Context, couponID uint64, orderID string) (bool, error) {
	released := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("coupon_id = ? AND order_id = ?", couponID, orderID).Delete(&CouponUsageModel{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete coupon usage")
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&CouponModel{}).
			Where("id = ? AND current_usage_count > 0", couponID).
			Update("current_usage_count", gorm.Expr("current_usage_count - 1")).Error; err != nil {
			return errors.Wrap(err, "decrement usage count")
		}
		released = true
		return nil
	})
	return released, err
}

// AutoMigrate 创建或更新优惠券相关表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CouponModel{}, &CouponUsageModel{})
}
