package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryOutcome struct {
	payload []byte
	expires time.Time
}

// MemoryIssueStore 单进程实现，未启用 Redis 时使用
type MemoryIssueStore struct {
	mu           sync.Mutex
	stock        map[uint]int64
	participants map[uint]map[uint]struct{}
	outcomes     map[string]memoryOutcome
	now          func() time.Time
}

// NewMemoryIssueStore 创建内存准入存储
func NewMemoryIssueStore() *MemoryIssueStore {
	return &MemoryIssueStore{
		stock:        make(map[uint]int64),
		participants: make(map[uint]map[uint]struct{}),
		outcomes:     make(map[string]memoryOutcome),
		now:          time.Now,
	}
}

// SeedStock 写入名额并清空已准入集合
func (s *MemoryIssueStore) SeedStock(_ context.Context, couponID uint, stock int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[couponID] = stock
	delete(s.participants, couponID)
	return nil
}

// SeedStockIfAbsent 仅在名额缺失时写入
func (s *MemoryIssueStore) SeedStockIfAbsent(_ context.Context, couponID uint, stock int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stock[couponID]; ok {
		return false, nil
	}
	s.stock[couponID] = stock
	delete(s.participants, couponID)
	return true, nil
}

// Reset 删除名额与已准入集合
func (s *MemoryIssueStore) Reset(_ context.Context, couponID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stock, couponID)
	delete(s.participants, couponID)
	return nil
}

// AddParticipant 返回是否新增
func (s *MemoryIssueStore) AddParticipant(_ context.Context, couponID, userID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.participants[couponID]
	if !ok {
		set = make(map[uint]struct{})
		s.participants[couponID] = set
	}
	if _, exists := set[userID]; exists {
		return false, nil
	}
	set[userID] = struct{}{}
	return true, nil
}

// RemoveParticipant 移除用户
func (s *MemoryIssueStore) RemoveParticipant(_ context.Context, couponID, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.participants[couponID]; ok {
		delete(set, userID)
	}
	return nil
}

// ParticipantCount 已准入人数
func (s *MemoryIssueStore) ParticipantCount(_ context.Context, couponID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.participants[couponID])), nil
}

// Stock 读取名额
func (s *MemoryIssueStore) Stock(_ context.Context, couponID uint) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stock, ok := s.stock[couponID]
	return stock, ok, nil
}

// SaveOutcome 记录处理结果
func (s *MemoryIssueStore) SaveOutcome(_ context.Context, requestID string, outcome interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record := memoryOutcome{payload: payload}
	if ttl > 0 {
		record.expires = s.now().Add(ttl)
	}
	s.outcomes[requestID] = record
	return nil
}

// GetOutcome 读取处理结果
func (s *MemoryIssueStore) GetOutcome(_ context.Context, requestID string, dest interface{}) (bool, error) {
	s.mu.Lock()
	record, ok := s.outcomes[requestID]
	if ok && !record.expires.IsZero() && !record.expires.After(s.now()) {
		delete(s.outcomes, requestID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(record.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}
