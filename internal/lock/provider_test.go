package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-zookeeper/zk"
	"github.com/redis/go-redis/v9"
)

func newTestRedisProvider(t *testing.T) (*RedisProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisProvider(client, "cf"), mr
}

func TestRedisProviderOwnership(t *testing.T) {
	provider, mr := newTestRedisProvider(t)
	ctx := context.Background()

	ok, err := provider.TryAcquire(ctx, "lock:product:1", "owner-a", time.Second)
	if err != nil || !ok {
		t.Fatalf("first acquire failed: %v %v", ok, err)
	}
	ok, err = provider.TryAcquire(ctx, "lock:product:1", "owner-b", time.Second)
	if err != nil || ok {
		t.Fatalf("second owner must not acquire: %v %v", ok, err)
	}
	if got, _ := mr.Get("cf:lock:product:1"); got != "owner-a" {
		t.Fatalf("unexpected stored token %q", got)
	}
	if err := provider.Release(ctx, "lock:product:1", "owner-b"); !errors.Is(err, ErrLockNotHeld) {
		t.Fatalf("foreign release must fail, got %v", err)
	}
	if err := provider.Refresh(ctx, "lock:product:1", "owner-a", 5*time.Second); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if ttl := mr.TTL("cf:lock:product:1"); ttl != 5*time.Second {
		t.Fatalf("unexpected ttl after refresh: %s", ttl)
	}
	if err := provider.Release(ctx, "lock:product:1", "owner-a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if mr.Exists("cf:lock:product:1") {
		t.Fatalf("key must be deleted after release")
	}
}

func TestRedisProviderLeaseExpires(t *testing.T) {
	provider, mr := newTestRedisProvider(t)
	ctx := context.Background()

	if ok, _ := provider.TryAcquire(ctx, "lock:user_point:1", "owner-a", time.Second); !ok {
		t.Fatalf("acquire failed")
	}
	mr.FastForward(2 * time.Second)
	ok, err := provider.TryAcquire(ctx, "lock:user_point:1", "owner-b", time.Second)
	if err != nil || !ok {
		t.Fatalf("expired lease must be acquirable: %v %v", ok, err)
	}
}

func TestCoordinatorWithRedisProviderTimesOut(t *testing.T) {
	provider, _ := newTestRedisProvider(t)
	ctx := context.Background()
	if ok, _ := provider.TryAcquire(ctx, "lock:product:2", "someone-else", time.Minute); !ok {
		t.Fatalf("pre-acquire failed")
	}

	coordinator := NewCoordinator(provider, Options{Wait: 30 * time.Millisecond, Lease: time.Second, Spin: 5 * time.Millisecond})
	err := coordinator.Execute(ctx, []string{"lock:product:1", "lock:product:2"}, func(ctx context.Context) error {
		t.Fatalf("action must not run")
		return nil
	})
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) || acqErr.Key != "lock:product:2" {
		t.Fatalf("expected acquisition error on product 2, got %v", err)
	}
	if acqErr.Waited < 30*time.Millisecond {
		t.Fatalf("must wait out the budget, waited %s", acqErr.Waited)
	}
	ok, err := provider.TryAcquire(ctx, "lock:product:1", "probe", time.Second)
	if err != nil || !ok {
		t.Fatalf("partially acquired key must be released: %v %v", ok, err)
	}
}

func TestMemoryProviderExpiry(t *testing.T) {
	provider := NewMemoryProvider()
	now := time.Unix(1700000000, 0)
	provider.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := provider.TryAcquire(ctx, "k", "a", time.Second); !ok {
		t.Fatalf("acquire failed")
	}
	if ok, _ := provider.TryAcquire(ctx, "k", "b", time.Second); ok {
		t.Fatalf("held key must not be acquired by another owner")
	}
	now = now.Add(2 * time.Second)
	if err := provider.Refresh(ctx, "k", "a", time.Second); !errors.Is(err, ErrLockNotHeld) {
		t.Fatalf("expired lease cannot be refreshed, got %v", err)
	}
	if ok, _ := provider.TryAcquire(ctx, "k", "b", time.Second); !ok {
		t.Fatalf("expired key must be acquirable")
	}
}

type fakeZKConn struct {
	nodes map[string][]byte
}

func (c *fakeZKConn) Create(path string, data []byte, _ int32, _ []zk.ACL) (string, error) {
	if _, ok := c.nodes[path]; ok {
		return "", zk.ErrNodeExists
	}
	c.nodes[path] = data
	return path, nil
}

func (c *fakeZKConn) Get(path string) ([]byte, *zk.Stat, error) {
	data, ok := c.nodes[path]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return data, &zk.Stat{Version: 0}, nil
}

func (c *fakeZKConn) Delete(path string, _ int32) error {
	if _, ok := c.nodes[path]; !ok {
		return zk.ErrNoNode
	}
	delete(c.nodes, path)
	return nil
}

func (c *fakeZKConn) Close() {}

func TestZooKeeperProviderOwnership(t *testing.T) {
	conn := &fakeZKConn{nodes: map[string][]byte{}}
	provider := newZooKeeperProvider(conn, "/locks/")
	if err := provider.ensureRoot(); err != nil {
		t.Fatalf("ensure root failed: %v", err)
	}
	ctx := context.Background()

	ok, err := provider.TryAcquire(ctx, "lock:product:1", "a", 0)
	if err != nil || !ok {
		t.Fatalf("acquire failed: %v %v", ok, err)
	}
	if _, exists := conn.nodes["/locks/lock:product:1"]; !exists {
		t.Fatalf("expected node under root, have %v", conn.nodes)
	}
	if ok, _ := provider.TryAcquire(ctx, "lock:product:1", "b", 0); ok {
		t.Fatalf("foreign owner must not acquire")
	}
	if err := provider.Release(ctx, "lock:product:1", "b"); !errors.Is(err, ErrLockNotHeld) {
		t.Fatalf("foreign release must fail, got %v", err)
	}
	if err := provider.Refresh(ctx, "lock:product:1", "a", 0); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if err := provider.Release(ctx, "lock:product:1", "a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if ok, _ := provider.TryAcquire(ctx, "lock:product:1", "b", 0); !ok {
		t.Fatalf("released key must be acquirable")
	}
}
