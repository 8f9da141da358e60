package lock

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/couponflow/internal/logger"

	"github.com/go-zookeeper/zk"
)

const defaultZKRoot = "/couponflow_locks"

type zkConn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Delete(path string, version int32) error
	Close()
}

// ZooKeeperProvider 基于临时节点的锁，租约等同于会话超时
type ZooKeeperProvider struct {
	conn zkConn
	root string
}

type zkLogger struct{}

func (zkLogger) Printf(format string, args ...interface{}) {
	logger.S().Debugf(format, args...)
}

// NewZooKeeperProvider 连接 ZooKeeper 并创建锁提供者
func NewZooKeeperProvider(servers []string, sessionTimeout time.Duration, root string) (*ZooKeeperProvider, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, err
	}
	go func() {
		for ev := range events {
			if ev.Type == zk.EventSession {
				logger.Debugw("zookeeper_session_event", "state", ev.State.String())
			}
		}
	}()
	provider := newZooKeeperProvider(conn, root)
	if err := provider.ensureRoot(); err != nil {
		conn.Close()
		return nil, err
	}
	return provider, nil
}

func newZooKeeperProvider(conn zkConn, root string) *ZooKeeperProvider {
	root = strings.TrimRight(strings.TrimSpace(root), "/")
	if root == "" {
		root = defaultZKRoot
	}
	return &ZooKeeperProvider{conn: conn, root: root}
}

func (p *ZooKeeperProvider) ensureRoot() error {
	_, err := p.conn.Create(p.root, []byte{}, 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return err
	}
	return nil
}

func (p *ZooKeeperProvider) nodePath(key string) string {
	return path.Join(p.root, key)
}

// TryAcquire 创建临时节点，已存在即为他人持有
func (p *ZooKeeperProvider) TryAcquire(ctx context.Context, key, token string, _ time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	nodePath := p.nodePath(key)
	_, err := p.conn.Create(nodePath, []byte(token), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, zk.ErrNodeExists) {
		data, _, getErr := p.conn.Get(nodePath)
		if getErr != nil {
			if errors.Is(getErr, zk.ErrNoNode) {
				return false, nil
			}
			return false, getErr
		}
		return string(data) == token, nil
	}
	if errors.Is(err, zk.ErrNoNode) {
		if rootErr := p.ensureRoot(); rootErr != nil {
			return false, rootErr
		}
		return false, nil
	}
	return false, err
}

// Refresh 临时节点随会话存活，只校验归属
func (p *ZooKeeperProvider) Refresh(ctx context.Context, key, token string, _ time.Duration) error {
	data, _, err := p.conn.Get(p.nodePath(key))
	if err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			return ErrLockNotHeld
		}
		return err
	}
	if string(data) != token {
		return ErrLockNotHeld
	}
	return nil
}

// Release 按版本删除自己的节点
func (p *ZooKeeperProvider) Release(ctx context.Context, key, token string) error {
	nodePath := p.nodePath(key)
	data, stat, err := p.conn.Get(nodePath)
	if err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			return ErrLockNotHeld
		}
		return err
	}
	if string(data) != token {
		return ErrLockNotHeld
	}
	if err := p.conn.Delete(nodePath, stat.Version); err != nil && !errors.Is(err, zk.ErrNoNode) {
		return err
	}
	return nil
}

// Close 关闭会话，所有临时节点随之删除
func (p *ZooKeeperProvider) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}
