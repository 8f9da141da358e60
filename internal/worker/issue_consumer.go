package worker

import (
	"context"
	"errors"

	"github.com/couponflow/internal/mq"
)

// IssueConsumer 发放请求分区消费服务
// 每个分区一个处理协程，同一券的请求串行处理
type IssueConsumer struct {
	name       string
	subscriber mq.Subscriber
	handler    mq.Handler
}

// NewIssueConsumer 创建分区消费服务
func NewIssueConsumer(subscriber mq.Subscriber, handler mq.Handler) (*IssueConsumer, error) {
	if subscriber == nil {
		return nil, errors.New("subscriber is nil")
	}
	if handler == nil {
		return nil, errors.New("handler is nil")
	}
	return &IssueConsumer{name: "issue_consumer", subscriber: subscriber, handler: handler}, nil
}

// Name 服务名称
func (s *IssueConsumer) Name() string {
	if s == nil || s.name == "" {
		return "issue_consumer"
	}
	return s.name
}

// Start 阻塞消费直到 ctx 结束
func (s *IssueConsumer) Start(ctx context.Context) error {
	if s == nil || s.subscriber == nil {
		return errors.New("issue consumer not initialized")
	}
	err := s.subscriber.Run(ctx, s.handler)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, mq.ErrClosed) {
		return nil
	}
	return err
}

// Stop 关闭订阅
func (s *IssueConsumer) Stop(ctx context.Context) error {
	if s == nil || s.subscriber == nil {
		return nil
	}
	_ = ctx
	return s.subscriber.Close()
}
