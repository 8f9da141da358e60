package mq

import (
	"context"
	"encoding/json"

	"github.com/couponflow/internal/apperr"
)

// ErrClosed 日志已关闭
var ErrClosed = apperr.New(apperr.KindInfrastructure, "mq_closed", "message log closed")

// Message 日志中的一条消息
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Partition int
	Offset    int64
}

// Handler 处理单条消息；同一分区内串行调用
type Handler func(ctx context.Context, msg Message) error

// Publisher 持久化发布接口
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// Subscriber 消费一个主题直到 ctx 结束
type Subscriber interface {
	Run(ctx context.Context, handler Handler) error
	Close() error
}

// PublishJSON 序列化后发布
func PublishJSON(ctx context.Context, publisher Publisher, topic, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return publisher.Publish(ctx, topic, key, value)
}
