package retry

import (
	"math/rand/v2"
	"time"
)

// Backoff 决定第 attempt 次冲突后的等待时间（attempt 从 1 开始）
type Backoff interface {
	Delay(attempt int) time.Duration
}

// NoBackoff 立即重试
type NoBackoff struct{}

// Delay 始终为 0
func (NoBackoff) Delay(int) time.Duration { return 0 }

// ExponentialBackoff 指数退避，实际等待落在 [delay/2, delay) 区间
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay 计算退避时间
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 || attempt <= 0 {
		return 0
	}
	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			delay = b.Max
			break
		}
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	if half := int64(delay / 2); half > 0 {
		delay = delay/2 + time.Duration(rand.Int64N(half))
	}
	return delay
}
