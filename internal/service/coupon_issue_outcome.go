package service

import (
	"context"
	"errors"
	"time"

	"github.com/couponflow/internal/cache"
	"github.com/couponflow/internal/mq"
)

// IssueOutcomeRecorder 记录结果供轮询，并发布到结果主题
type IssueOutcomeRecorder struct {
	store     cache.IssueStore
	publisher mq.Publisher
	topic     string
	ttl       time.Duration
}

// NewIssueOutcomeRecorder 创建结果输出器，publisher 为空时只记录
func NewIssueOutcomeRecorder(store cache.IssueStore, publisher mq.Publisher, topic string, ttl time.Duration) *IssueOutcomeRecorder {
	return &IssueOutcomeRecorder{store: store, publisher: publisher, topic: topic, ttl: ttl}
}

// Emit 两个输出相互独立，任一失败不影响另一个
func (r *IssueOutcomeRecorder) Emit(ctx context.Context, outcome mq.IssueOutcome) error {
	var errs []error
	if r.store != nil {
		if err := r.store.SaveOutcome(ctx, outcome.RequestID, outcome, r.ttl); err != nil {
			errs = append(errs, err)
		}
	}
	if r.publisher != nil && r.topic != "" {
		if err := mq.PublishJSON(ctx, r.publisher, r.topic, outcome.Key(), outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
