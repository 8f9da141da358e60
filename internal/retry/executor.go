// Package retry 提供乐观锁冲突重试执行器
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/couponflow/internal/apperr"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/metrics"
	"github.com/couponflow/internal/models"

	"gorm.io/gorm"
)

const defaultMaxAttempts = 5

// ErrRetryExhausted 冲突重试次数耗尽
var ErrRetryExhausted = apperr.New(apperr.KindConflict, "optimistic_retry_exhausted", "optimistic retry attempts exhausted")

// Transactor 事务边界，每次尝试都在新事务中执行
type Transactor interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Operation 单次尝试，tx 为本次尝试的事务句柄
type Operation func(ctx context.Context, tx *gorm.DB) error

// Executor 仅对 models.ErrVersionConflict 重试
type Executor struct {
	tx          Transactor
	maxAttempts int
	backoff     Backoff
}

// Option 执行器选项
type Option func(*Executor)

// WithMaxAttempts 设置最大尝试次数
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBackoff 设置退避策略
func WithBackoff(b Backoff) Option {
	return func(e *Executor) {
		if b != nil {
			e.backoff = b
		}
	}
}

// NewExecutor 创建重试执行器
func NewExecutor(tx Transactor, opts ...Option) *Executor {
	e := &Executor{tx: tx, maxAttempts: defaultMaxAttempts, backoff: NoBackoff{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxAttempts 返回最大尝试次数
func (e *Executor) MaxAttempts() int {
	return e.maxAttempts
}

// Execute 执行操作，冲突时在新事务中重试
func (e *Executor) Execute(ctx context.Context, op Operation) error {
	var lastConflict error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err := e.tx.InTx(ctx, func(tx *gorm.DB) error {
			return op(ctx, tx)
		})
		if err == nil {
			if attempt > 1 {
				metrics.OptimisticRetries.WithLabelValues("recovered").Inc()
			}
			return nil
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			return err
		}
		lastConflict = err
		metrics.OptimisticRetries.WithLabelValues("conflict").Inc()
		logger.Debugw("optimistic_retry_conflict", "attempt", attempt, "max_attempts", e.maxAttempts)
		if attempt == e.maxAttempts {
			break
		}
		if delay := e.backoff.Delay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
	metrics.OptimisticRetries.WithLabelValues("exhausted").Inc()
	logger.Warnw("optimistic_retry_exhausted", "max_attempts", e.maxAttempts, "error", lastConflict)
	return &apperr.Error{
		Kind:    apperr.KindConflict,
		Code:    ErrRetryExhausted.Code,
		Message: ErrRetryExhausted.Message,
		Err:     lastConflict,
	}
}

// Do 带返回值的重试执行，返回最后一次成功尝试的结果
func Do[T any](ctx context.Context, e *Executor, fn func(ctx context.Context, tx *gorm.DB) (T, error)) (T, error) {
	var result T
	err := e.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		value, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
