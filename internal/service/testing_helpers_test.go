package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/lock"
	"github.com/couponflow/internal/models"
	"github.com/couponflow/internal/mq"
	"github.com/couponflow/internal/queue"
	"github.com/couponflow/internal/repository"
	"github.com/couponflow/internal/retry"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var serviceTestDBSeq int64

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), atomic.AddInt64(&serviceTestDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func money(raw string) models.Money {
	return models.NewMoneyFromDecimal(decimal.RequireFromString(raw))
}

func seedTestCoupon(t *testing.T, db *gorm.DB, total int, mutate func(c *models.Coupon)) *models.Coupon {
	t.Helper()
	now := time.Now()
	coupon := &models.Coupon{
		Name:              "满减券",
		TotalQuantity:     total,
		AvailableQuantity: total,
		DiscountAmount:    money("10.00"),
		Status:            constants.CouponStatusActive,
		StartDate:         now.Add(-time.Hour),
		EndDate:           now.Add(24 * time.Hour),
		IsActive:          true,
	}
	if mutate != nil {
		mutate(coupon)
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	return coupon
}

func seedTestProduct(t *testing.T, db *gorm.DB, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:     fmt.Sprintf("商品-%s", price),
		Price:    money(price),
		Stock:    stock,
		IsActive: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func seedTestPointAccount(t *testing.T, db *gorm.DB, userID uint, balance int64) *models.PointAccount {
	t.Helper()
	account := &models.PointAccount{UserID: userID, Balance: balance}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create point account failed: %v", err)
	}
	return account
}

func newTestCoordinator() *lock.Coordinator {
	return lock.NewCoordinator(lock.NewMemoryProvider(), lock.Options{
		Wait:  time.Second,
		Lease: 5 * time.Second,
		Spin:  time.Millisecond,
	})
}

func newTestExecutor(db *gorm.DB) *retry.Executor {
	return retry.NewExecutor(repository.NewTransactor(db), retry.WithMaxAttempts(3))
}

type publishedMessage struct {
	topic string
	key   string
	value []byte
}

// recordingPublisher 记录发布内容，可注入失败
type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{topic: topic, key: key, value: append([]byte(nil), value...)})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) requests(t *testing.T) []mq.IssueRequest {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]mq.IssueRequest, 0, len(p.messages))
	for _, msg := range p.messages {
		req, err := mq.DecodeIssueRequest(msg.value)
		if err != nil {
			t.Fatalf("decode request failed: %v", err)
		}
		result = append(result, req)
	}
	return result
}

type recordingEmitter struct {
	mu       sync.Mutex
	outcomes []mq.IssueOutcome
	err      error
}

func (e *recordingEmitter) Emit(_ context.Context, outcome mq.IssueOutcome) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outcomes = append(e.outcomes, outcome)
	return e.err
}

type redelivery struct {
	payload queue.CouponIssueRedeliverPayload
	delay   time.Duration
}

type recordingRedeliverer struct {
	mu    sync.Mutex
	calls []redelivery
	err   error
}

func (r *recordingRedeliverer) EnqueueIssueRedelivery(payload queue.CouponIssueRedeliverPayload, delay time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, redelivery{payload: payload, delay: delay})
	return nil
}

// failingTransactor 模拟数据库不可用
type failingTransactor struct {
	err error
}

func (f failingTransactor) InTx(_ context.Context, _ func(tx *gorm.DB) error) error {
	return f.err
}

var errTestDatabaseDown = errors.New("database down")
