package lock

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type ledgerKey struct{}

// ledger 记录一次调用链持有的锁及重入次数
// 同一 context 链上的嵌套调用共享 ledger，从而实现重入
type ledger struct {
	mu    sync.Mutex
	token string
	holds map[string]int
}

func newLedger() *ledger {
	return &ledger{
		token: uuid.NewString(),
		holds: make(map[string]int),
	}
}

func ledgerFrom(ctx context.Context) *ledger {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(ledgerKey{}).(*ledger)
	return l
}

// withLedger 保证 ctx 上挂有 ledger
func withLedger(ctx context.Context) (context.Context, *ledger) {
	if l := ledgerFrom(ctx); l != nil {
		return ctx, l
	}
	l := newLedger()
	return context.WithValue(ctx, ledgerKey{}, l), l
}

// enter 已持有时增加计数并返回 true
func (l *ledger) enter(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holds[key] > 0 {
		l.holds[key]++
		return true
	}
	return false
}

func (l *ledger) record(key string) {
	l.mu.Lock()
	l.holds[key] = 1
	l.mu.Unlock()
}

// leave 减少计数，返回是否应真正释放
func (l *ledger) leave(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := l.holds[key]
	if count <= 1 {
		delete(l.holds, key)
		return count == 1
	}
	l.holds[key] = count - 1
	return false
}

// Holds 返回当前 context 对 key 的持有次数
func Holds(ctx context.Context, key string) int {
	l := ledgerFrom(ctx)
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holds[key]
}
