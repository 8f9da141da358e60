package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// 只有 value 与 token 一致时才删除/续期，避免误删他人持有的锁
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

// RedisProvider 基于 SET NX PX 的锁
type RedisProvider struct {
	client *redis.Client
	prefix string
}

// NewRedisProvider 创建 Redis 锁，prefix 为空时直接使用锁 key
func NewRedisProvider(client *redis.Client, prefix string) *RedisProvider {
	return &RedisProvider{client: client, prefix: strings.TrimSpace(prefix)}
}

func (p *RedisProvider) buildKey(key string) string {
	if p.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", p.prefix, key)
}

// TryAcquire 尝试获取锁
func (p *RedisProvider) TryAcquire(ctx context.Context, key, token string, lease time.Duration) (bool, error) {
	return p.client.SetNX(ctx, p.buildKey(key), token, lease).Result()
}

// Refresh 续期
func (p *RedisProvider) Refresh(ctx context.Context, key, token string, lease time.Duration) error {
	res, err := refreshScript.Run(ctx, p.client, []string{p.buildKey(key)}, token, lease.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Release 释放
func (p *RedisProvider) Release(ctx context.Context, key, token string) error {
	res, err := releaseScript.Run(ctx, p.client, []string{p.buildKey(key)}, token).Int64()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}
