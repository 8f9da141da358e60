package mq

import (
	"context"
	"sync"

	"github.com/couponflow/internal/apperr"
	"github.com/couponflow/internal/logger"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMemoryPartitions = 4
	defaultMemoryBuffer     = 1024
)

// ErrTopicFull 内存分区缓冲已满
var ErrTopicFull = apperr.New(apperr.KindInfrastructure, "mq_partition_full", "memory partition buffer full")

type memoryTopic struct {
	partitions []chan Message
	offsets    []int64
}

// MemoryLog 进程内分区日志，分区路由与 Kafka Hash 分区器一致
// 仅保留已声明主题的消息，未声明主题的消息直接丢弃
type MemoryLog struct {
	mu         sync.Mutex
	partitions int
	buffer     int
	balancer   *kafka.Hash
	topics     map[string]*memoryTopic
	closed     bool
}

// NewMemoryLog 创建内存日志
func NewMemoryLog(partitions, buffer int) *MemoryLog {
	if partitions <= 0 {
		partitions = defaultMemoryPartitions
	}
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryLog{
		partitions: partitions,
		buffer:     buffer,
		balancer:   &kafka.Hash{},
		topics:     make(map[string]*memoryTopic),
	}
}

// Partitions 分区数
func (l *MemoryLog) Partitions() int {
	return l.partitions
}

// Declare 声明主题，之后发布的消息会被保留
func (l *MemoryLog) Declare(topic string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.declareLocked(topic)
}

func (l *MemoryLog) declareLocked(topic string) *memoryTopic {
	if t, ok := l.topics[topic]; ok {
		return t
	}
	t := &memoryTopic{
		partitions: make([]chan Message, l.partitions),
		offsets:    make([]int64, l.partitions),
	}
	for i := range t.partitions {
		t.partitions[i] = make(chan Message, l.buffer)
	}
	l.topics[topic] = t
	return t
}

// PartitionFor 计算 key 所在分区
func (l *MemoryLog) PartitionFor(key string) int {
	ids := make([]int, l.partitions)
	for i := range ids {
		ids[i] = i
	}
	return l.balancer.Balance(kafka.Message{Key: []byte(key)}, ids...)
}

// Publish 写入 key 对应分区，缓冲满时返回 ErrTopicFull
func (l *MemoryLog) Publish(ctx context.Context, topic, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	partition := l.PartitionFor(key)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	t, ok := l.topics[topic]
	if !ok {
		logger.Debugw("memory_log_topic_undeclared_drop", "topic", topic, "key", key)
		return nil
	}
	msg := Message{
		Topic:     topic,
		Key:       key,
		Value:     append([]byte(nil), value...),
		Partition: partition,
		Offset:    t.offsets[partition],
	}
	select {
	case t.partitions[partition] <- msg:
		t.offsets[partition]++
		return nil
	default:
		return ErrTopicFull
	}
}

// Subscribe 声明主题并返回其订阅者，每个分区一个消费 goroutine
func (l *MemoryLog) Subscribe(topic string) Subscriber {
	l.mu.Lock()
	t := l.declareLocked(topic)
	l.mu.Unlock()
	return &memorySubscriber{topic: topic, t: t}
}

// Close 关闭日志，之后的发布返回 ErrClosed
func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

type memorySubscriber struct {
	topic string
	t     *memoryTopic
}

func (s *memorySubscriber) Run(ctx context.Context, handler Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range s.t.partitions {
		partition := i
		messages := ch
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case msg := <-messages:
					if err := handler(gctx, msg); err != nil {
						logger.Errorw("memory_log_message_handle_failed",
							"topic", s.topic,
							"partition", partition,
							"offset", msg.Offset,
							"error", err,
						)
					}
				}
			}
		})
	}
	return g.Wait()
}

func (s *memorySubscriber) Close() error {
	return nil
}
