package mq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/couponflow/internal/logger"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const (
	defaultKafkaConsumers = 1
	fetchRetryInterval    = time.Second
)

// KafkaPublisher 按 key 哈希分区写入 Kafka
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher 创建 Kafka 发布者
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

// Publish 同步写入，返回即已被 broker 确认
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	headers := HeaderCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, &headers)
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: []kafka.Header(headers),
	})
}

// Close 关闭写入器
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaSubscriberConfig 消费者配置
type KafkaSubscriberConfig struct {
	Brokers   []string
	Topic     string
	GroupID   string
	Consumers int
}

// KafkaSubscriber 同一消费组内的多个 reader，每个分区只会分给其中一个
type KafkaSubscriber struct {
	cfg     KafkaSubscriberConfig
	mu      sync.Mutex
	readers []*kafka.Reader
}

// NewKafkaSubscriber 创建 Kafka 订阅者
func NewKafkaSubscriber(cfg KafkaSubscriberConfig) *KafkaSubscriber {
	if cfg.Consumers <= 0 {
		cfg.Consumers = defaultKafkaConsumers
	}
	return &KafkaSubscriber{cfg: cfg}
}

// Run 启动消费者，任一消费者异常退出时整体返回
func (s *KafkaSubscriber) Run(ctx context.Context, handler Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.Consumers; i++ {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  s.cfg.Brokers,
			GroupID:  s.cfg.GroupID,
			Topic:    s.cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
		s.track(reader)
		worker := i
		g.Go(func() error {
			return s.consume(gctx, worker, reader, handler)
		})
	}
	logger.Infow("kafka_subscriber_started",
		"topic", s.cfg.Topic,
		"group_id", s.cfg.GroupID,
		"consumers", s.cfg.Consumers,
	)
	return g.Wait()
}

func (s *KafkaSubscriber) track(reader *kafka.Reader) {
	s.mu.Lock()
	s.readers = append(s.readers, reader)
	s.mu.Unlock()
}

func (s *KafkaSubscriber) consume(ctx context.Context, worker int, reader *kafka.Reader, handler Handler) error {
	propagator := otel.GetTextMapPropagator()
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Warnw("kafka_fetch_failed", "worker", worker, "topic", s.cfg.Topic, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryInterval):
			}
			continue
		}

		carrier := HeaderCarrier(msg.Headers)
		msgCtx := propagator.Extract(ctx, &carrier)
		if err := handler(msgCtx, Message{
			Topic:     msg.Topic,
			Key:       string(msg.Key),
			Value:     msg.Value,
			Partition: msg.Partition,
			Offset:    msg.Offset,
		}); err != nil {
			logger.Errorw("kafka_message_handle_failed",
				"worker", worker,
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warnw("kafka_commit_failed", "worker", worker, "offset", msg.Offset, "error", err)
		}
	}
}

// Close 关闭全部 reader
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	readers := s.readers
	s.readers = nil
	s.mu.Unlock()
	var errs []error
	for _, reader := range readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
