package lock

import (
	"context"
	"time"
)

// Provider 单 key 锁原语，由协调器组合成多资源锁
// token 标识持有者，只有持有者可以续期和释放
type Provider interface {
	TryAcquire(ctx context.Context, key, token string, lease time.Duration) (bool, error)
	Refresh(ctx context.Context, key, token string, lease time.Duration) error
	Release(ctx context.Context, key, token string) error
}
