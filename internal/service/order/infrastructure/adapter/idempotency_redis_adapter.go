package adapter

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/pkg/redis"
	"storefront/internal/service/order/domain"
)

const (
	claimScriptName   = "idempotency_claim"
	releaseScriptName = "idempotency_release"

	pendingMarker = "__pending__"
	keyPrefix     = "checkout:idempotency:"
)

// IdempotencyRedisAdapter 是 port.IdempotencyStore 的 Redis 实现。
// 占位和查询在同一个 Lua 脚本里完成，同一个 key 只有一个请求能拿到处理权。
type IdempotencyRedisAdapter struct {
	redisClient *redis.Client
	pendingTTL  time.Duration // 处理中占位的存活时间，进程崩溃后自动释放
	resultTTL   time.Duration // 成功结果保留多久
}

// NewIdempotencyRedisAdapter 在创建时加载需要的 Lua 脚本
func NewIdempotencyRedisAdapter(ctx context.Context, redisClient *redis.Client, pendingTTL, resultTTL time.Duration) (*IdempotencyRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(ctx, claimScriptName, claimScript); err != nil {
		return nil, fmt.Errorf("failed to load idempotency claim script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(ctx, releaseScriptName, releaseScript); err != nil {
		return nil, fmt.Errorf("failed to load idempotency release script: %w", err)
	}
	return &IdempotencyRedisAdapter{
		redisClient: redisClient,
		pendingTTL:  pendingTTL,
		resultTTL:   resultTTL,
	}, nil
}

func (a *IdempotencyRedisAdapter) Claim(ctx context.Context, key string) ([]byte, error) {
	result, err := a.redisClient.RunScript(ctx, claimScriptName, []string{keyPrefix + key}, pendingMarker, a.pendingTTL.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("idempotency adapter failed to run claim script: %w", err)
	}
	value, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	switch value {
	case "":
		return nil, nil
	case pendingMarker:
		return nil, domain.ErrCheckoutInProgress
	default:
		return []byte(value), nil
	}
}

func (a *IdempotencyRedisAdapter) Complete(ctx context.Context, key string, response []byte) error {
	if err := a.redisClient.GetClient().Set(ctx, keyPrefix+key, response, a.resultTTL).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

// Release 只删除仍处于处理中的占位，不会误删已保存的结果
func (a *IdempotencyRedisAdapter) Release(ctx context.Context, key string) error {
	if _, err := a.redisClient.RunScript(ctx, releaseScriptName, []string{keyPrefix + key}, pendingMarker); err != nil {
		return fmt.Errorf("idempotency adapter failed to run release script: %w", err)
	}
	return nil
}

var claimScript = `
-- KEYS[1]: 幂等键, 例如: checkout:idempotency:user:42:abc
-- ARGV[1]: 处理中标记
-- ARGV[2]: 占位过期时间(毫秒)

local value = redis.call('get', KEYS[1])
if value then
    return value -- 处理中标记或已保存的响应
end

redis.call('set', KEYS[1], ARGV[1], 'PX', ARGV[2])
return '' -- 占位成功
`

var releaseScript = `
-- KEYS[1]: 幂等键
-- ARGV[1]: 处理中标记

if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`
