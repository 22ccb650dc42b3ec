package domain

import "context"

// CouponRepository 定义了优惠券及其使用记录的持久化接口
type CouponRepository interface {
	// FindByCode 精确匹配（区分大小写），不存在时返回 ErrCouponNotFound
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	FindByID(ctx context.Context, id uint64) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error

	// CountUserUsages 返回用户对该券的历史使用次数
	CountUserUsages(ctx context.Context, couponID uint64, userID string) (int64, error)
	// ApplyUsage 写入使用记录并递增计数；同一订单重复调用返回 applied=false
	ApplyUsage(ctx context.Context, couponID uint64, userID, orderID string) (applied bool, err error)
	// ReleaseUsage 删除使用记录并递减计数；记录不存在时返回 released=false
	ReleaseUsage(ctx context.Context, couponID uint64, orderID string) (released bool, err error)
}

// RuleEngine 评估优惠券的附加适用规则
type RuleEngine interface {
	// Compile 检查表达式能否编译且结果为 bool
	Compile(expr string) error
	Evaluate(ctx context.Context, expr string, facts RuleFacts) (bool, error)
}
