package lock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryProvider 单进程锁，适用于单节点部署与测试
type MemoryProvider struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryProvider 创建内存锁
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{entries: make(map[string]memoryEntry), now: time.Now}
}

func (p *MemoryProvider) live(key string, now time.Time) (memoryEntry, bool) {
	entry, ok := p.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expires.After(now) {
		delete(p.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

// TryAcquire 尝试获取锁
func (p *MemoryProvider) TryAcquire(ctx context.Context, key, token string, lease time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if entry, ok := p.live(key, now); ok {
		return entry.token == token, nil
	}
	p.entries[key] = memoryEntry{token: token, expires: now.Add(lease)}
	return true, nil
}

// Refresh 续期
func (p *MemoryProvider) Refresh(_ context.Context, key, token string, lease time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	entry, ok := p.live(key, now)
	if !ok || entry.token != token {
		return ErrLockNotHeld
	}
	entry.expires = now.Add(lease)
	p.entries[key] = entry
	return nil
}

// Release 释放
func (p *MemoryProvider) Release(_ context.Context, key, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.live(key, p.now())
	if !ok || entry.token != token {
		return ErrLockNotHeld
	}
	delete(p.entries, key)
	return nil
}
