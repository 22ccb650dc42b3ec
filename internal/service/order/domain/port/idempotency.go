package port

import "context"

// IdempotencyStore 记录带 Idempotency-Key 的结账请求
type IdempotencyStore interface {
	// Claim 占位成功返回 (nil, nil)；已完成的请求返回保存的响应；
	// 仍在处理中的请求返回 domain.ErrCheckoutInProgress
	Claim(ctx context.Context, key string) ([]byte, error)

	// Complete 保存成功的响应，供重放使用
	Complete(ctx context.Context, key string, response []byte) error

	// Release 删除占位，让客户端可以重试
	Release(ctx context.Context, key string) error
}
