// Package lock 提供多资源分布式锁
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultWait  = 3 * time.Second
	defaultLease = 10 * time.Second
	defaultSpin  = 50 * time.Millisecond
)

var tracer = otel.Tracer("couponflow/lock")

// Options 协调器默认参数
type Options struct {
	Wait  time.Duration // 整组 key 的等待上限
	Lease time.Duration // 单个 key 的租约
	Spin  time.Duration // 自旋间隔
}

// Coordinator 按全序依次获取多个 key，执行后逆序释放
// 协调器本身不保存跨调用状态，持有信息记在调用方 context 的 ledger 上
type Coordinator struct {
	provider Provider
	opts     Options
}

// NewCoordinator 创建锁协调器
func NewCoordinator(provider Provider, opts Options) *Coordinator {
	if opts.Wait <= 0 {
		opts.Wait = defaultWait
	}
	if opts.Lease <= 0 {
		opts.Lease = defaultLease
	}
	if opts.Spin <= 0 {
		opts.Spin = defaultSpin
	}
	return &Coordinator{provider: provider, opts: opts}
}

// Options 返回生效的默认参数
func (c *Coordinator) Options() Options {
	return c.opts
}

// Execute 使用默认等待时间与租约执行
func (c *Coordinator) Execute(ctx context.Context, keys []string, action func(ctx context.Context) error) error {
	return c.ExecuteWithLock(ctx, keys, action, c.opts.Wait, c.opts.Lease)
}

// ExecuteWithLock 获取全部 key 后执行 action
// keys 需已规范化；为空时不加锁直接执行
func (c *Coordinator) ExecuteWithLock(ctx context.Context, keys []string, action func(ctx context.Context) error, wait, lease time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(keys) == 0 {
		logger.Warnw("lock_keys_empty_run_unlocked")
		return action(ctx)
	}
	if wait < 0 {
		wait = 0
	}
	if lease <= 0 {
		lease = c.opts.Lease
	}

	ctx, span := tracer.Start(ctx, "lock.execute")
	span.SetAttributes(attribute.Int("lock.key_count", len(keys)))
	defer span.End()

	ctx, l := withLedger(ctx)
	start := time.Now()
	deadline := start.Add(wait)
	acquired := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := c.acquire(ctx, l, key, deadline, lease); err != nil {
			c.releaseAll(ctx, l, acquired)
			acqErr := &AcquisitionError{Key: key, Waited: time.Since(start)}
			reason := "timeout"
			if !errors.Is(err, errWaitExhausted) {
				acqErr.Err = err
				reason = "provider"
			}
			metrics.LockAcquireFailures.WithLabelValues(reason).Inc()
			metrics.LockWaitSeconds.WithLabelValues("failed").Observe(acqErr.Waited.Seconds())
			span.RecordError(acqErr)
			span.SetStatus(codes.Error, "lock acquisition failed")
			logger.Warnw("lock_acquire_failed",
				"key", key,
				"acquired", len(acquired),
				"waited_ms", acqErr.Waited.Milliseconds(),
				"error", acqErr,
			)
			return acqErr
		}
		acquired = append(acquired, key)
	}
	metrics.LockWaitSeconds.WithLabelValues("acquired").Observe(time.Since(start).Seconds())

	defer c.releaseAll(ctx, l, acquired)
	return action(ctx)
}

var errWaitExhausted = errors.New("lock wait exhausted")

func (c *Coordinator) acquire(ctx context.Context, l *ledger, key string, deadline time.Time, lease time.Duration) error {
	if l.enter(key) {
		if err := c.provider.Refresh(ctx, key, l.token, lease); err != nil {
			logger.Warnw("lock_refresh_failed", "key", key, "error", err)
		}
		return nil
	}
	for {
		ok, err := c.provider.TryAcquire(ctx, key, l.token, lease)
		if err != nil {
			return err
		}
		if ok {
			l.record(key)
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errWaitExhausted
		}
		sleep := c.opts.Spin
		if remaining < sleep {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Coordinator) releaseAll(ctx context.Context, l *ledger, keys []string) {
	releaseCtx := context.WithoutCancel(ctx)
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		if !l.leave(key) {
			continue
		}
		if err := c.provider.Release(releaseCtx, key, l.token); err != nil {
			logger.Warnw("lock_release_failed", "key", key, "error", err)
		}
	}
}

// WithLock 带返回值的加锁执行
func WithLock[T any](ctx context.Context, c *Coordinator, keys []string, wait, lease time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := c.ExecuteWithLock(ctx, keys, func(ctx context.Context) error {
		value, err := fn(ctx)
		if err != nil {
			return err
		}
		result = value
		return nil
	}, wait, lease)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
