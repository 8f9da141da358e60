package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// 名额不存在时才写入，同时清掉残留的已准入集合
var seedIfAbsentScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[1]) == 1 then
	redis.call("DEL", KEYS[2])
	return 1
end
return 0
`)

// RedisIssueStore Redis 实现
type RedisIssueStore struct {
	client *redis.Client
	prefix string
}

// NewRedisIssueStore 创建 Redis 准入存储
func NewRedisIssueStore(client *redis.Client, prefix string) *RedisIssueStore {
	return &RedisIssueStore{client: client, prefix: strings.TrimSpace(prefix)}
}

func (s *RedisIssueStore) key(raw string) string {
	if s.prefix == "" {
		return raw
	}
	return fmt.Sprintf("%s:%s", s.prefix, raw)
}

// SeedStock 写入名额并清空已准入集合
func (s *RedisIssueStore) SeedStock(ctx context.Context, couponID uint, stock int64) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(issueStockKey(couponID)), stock, 0)
		pipe.Del(ctx, s.key(issueParticipantsKey(couponID)))
		return nil
	})
	return err
}

// SeedStockIfAbsent 仅在名额缺失时写入，已有计数原样保留
func (s *RedisIssueStore) SeedStockIfAbsent(ctx context.Context, couponID uint, stock int64) (bool, error) {
	keys := []string{s.key(issueStockKey(couponID)), s.key(issueParticipantsKey(couponID))}
	seeded, err := seedIfAbsentScript.Run(ctx, s.client, keys, stock).Int64()
	if err != nil {
		return false, err
	}
	return seeded == 1, nil
}

// Reset 删除名额与已准入集合
func (s *RedisIssueStore) Reset(ctx context.Context, couponID uint) error {
	return s.client.Del(ctx, s.key(issueStockKey(couponID)), s.key(issueParticipantsKey(couponID))).Err()
}

// AddParticipant SADD，返回是否新增
func (s *RedisIssueStore) AddParticipant(ctx context.Context, couponID, userID uint) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key(issueParticipantsKey(couponID)), userID).Result()
	if err != nil {
		return false, err
	}
	return added > 0, nil
}

// RemoveParticipant SREM
func (s *RedisIssueStore) RemoveParticipant(ctx context.Context, couponID, userID uint) error {
	return s.client.SRem(ctx, s.key(issueParticipantsKey(couponID)), userID).Err()
}

// ParticipantCount SCARD
func (s *RedisIssueStore) ParticipantCount(ctx context.Context, couponID uint) (int64, error) {
	return s.client.SCard(ctx, s.key(issueParticipantsKey(couponID))).Result()
}

// Stock 读取名额，未预热返回 false
func (s *RedisIssueStore) Stock(ctx context.Context, couponID uint) (int64, bool, error) {
	raw, err := s.client.Get(ctx, s.key(issueStockKey(couponID))).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	stock, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse issue stock %q: %w", raw, err)
	}
	return stock, true, nil
}

// SaveOutcome 以 JSON 记录处理结果
func (s *RedisIssueStore) SaveOutcome(ctx context.Context, requestID string, outcome interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(issueOutcomeKey(requestID)), payload, ttl).Err()
}

// GetOutcome 读取处理结果
func (s *RedisIssueStore) GetOutcome(ctx context.Context, requestID string, dest interface{}) (bool, error) {
	raw, err := s.client.Get(ctx, s.key(issueOutcomeKey(requestID))).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}
