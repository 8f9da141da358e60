package provider

import (
	"context"
	"strings"
	"time"

	"github.com/couponflow/internal/cache"
	"github.com/couponflow/internal/config"
	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/lock"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/metrics"
	"github.com/couponflow/internal/models"
	"github.com/couponflow/internal/mq"
	"github.com/couponflow/internal/queue"
	"github.com/couponflow/internal/repository"
	"github.com/couponflow/internal/retry"
	"github.com/couponflow/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Infrastructure
	DB              *gorm.DB
	IssueStore      cache.IssueStore
	LockProvider    lock.Provider
	LockCoordinator *lock.Coordinator
	Transactor      repository.Transactor
	RetryExecutor   *retry.Executor
	IssuePublisher  mq.Publisher
	IssueSubscriber mq.Subscriber

	// Repositories
	CouponRepo     repository.CouponRepository
	CouponUserRepo repository.CouponUserRepository
	PointRepo      repository.PointRepository
	ProductRepo    repository.ProductRepository
	OrderRepo      repository.OrderRepository

	// Services
	CouponIssueService   *service.CouponIssueService
	CouponIssueProcessor *service.CouponIssueProcessor
	CouponStockWarmer    *service.CouponStockWarmer
	CouponAdminService   *service.CouponAdminService
	CouponQueryService   *service.CouponQueryService
	CheckoutService      *service.CheckoutService
	PointService         *service.PointService

	closers []func() error
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	return NewContainerWithDB(cfg, models.DB)
}

// NewContainerWithDB 使用指定数据库初始化容器
func NewContainerWithDB(cfg *config.Config, db *gorm.DB) *Container {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Warnw("provider_register_metrics_failed", "error", err)
	}

	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		DB:          db,
	}

	// 1. 初始化基础设施
	c.initInfrastructure()

	// 2. 初始化 Repositories
	c.initRepositories()

	// 3. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initInfrastructure() {
	cfg := c.Config
	if cache.Enabled() {
		c.IssueStore = cache.NewRedisIssueStore(cache.Client(), cache.Prefix())
	} else {
		logger.Warnw("provider_issue_store_memory", "reason", "redis_disabled")
		c.IssueStore = cache.NewMemoryIssueStore()
	}

	c.LockProvider = c.buildLockProvider()
	c.LockCoordinator = lock.NewCoordinator(c.LockProvider, lock.Options{
		Wait:  cfg.Lock.Wait(),
		Lease: cfg.Lock.Lease(),
		Spin:  cfg.Lock.Spin(),
	})

	c.Transactor = repository.NewTransactor(c.DB)
	opts := []retry.Option{retry.WithMaxAttempts(cfg.Retry.MaxAttempts)}
	if cfg.Retry.BackoffBaseMS > 0 {
		opts = append(opts, retry.WithBackoff(retry.ExponentialBackoff{
			Base: time.Duration(cfg.Retry.BackoffBaseMS) * time.Millisecond,
			Max:  time.Duration(cfg.Retry.BackoffMaxMS) * time.Millisecond,
		}))
	}
	c.RetryExecutor = retry.NewExecutor(c.Transactor, opts...)

	c.buildMessageLog()
}

func (c *Container) buildLockProvider() lock.Provider {
	cfg := c.Config.Lock
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case constants.LockBackendZooKeeper:
		zkProvider, err := lock.NewZooKeeperProvider(cfg.ZKServers, cfg.ZKSessionTimeout(), cfg.ZKRoot)
		if err != nil {
			logger.Errorw("provider_init_zookeeper_lock_failed", "servers", cfg.ZKServers, "error", err)
			panic(err)
		}
		c.closers = append(c.closers, func() error {
			zkProvider.Close()
			return nil
		})
		return zkProvider
	case constants.LockBackendMemory:
		return lock.NewMemoryProvider()
	default:
		if cache.Enabled() {
			return lock.NewRedisProvider(cache.Client(), cache.Prefix())
		}
		logger.Warnw("provider_lock_backend_fallback", "backend", backend, "fallback", constants.LockBackendMemory)
		return lock.NewMemoryProvider()
	}
}

func (c *Container) buildMessageLog() {
	cfg := c.Config.MQ
	requestTopic := c.RequestTopic()
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case constants.MQDriverKafka:
		publisher := mq.NewKafkaPublisher(cfg.Brokers)
		c.IssuePublisher = publisher
		c.IssueSubscriber = mq.NewKafkaSubscriber(mq.KafkaSubscriberConfig{
			Brokers:   cfg.Brokers,
			Topic:     requestTopic,
			GroupID:   cfg.GroupID,
			Consumers: cfg.Consumers,
		})
		c.closers = append(c.closers, c.IssueSubscriber.Close, publisher.Close)
	default:
		memoryLog := mq.NewMemoryLog(cfg.Partitions, cfg.Buffer)
		memoryLog.Declare(requestTopic)
		c.IssuePublisher = memoryLog
		c.IssueSubscriber = memoryLog.Subscribe(requestTopic)
		c.closers = append(c.closers, memoryLog.Close)
	}
}

func (c *Container) initRepositories() {
	db := c.DB
	c.CouponRepo = repository.NewCouponRepository(db)
	c.CouponUserRepo = repository.NewCouponUserRepository(db)
	c.PointRepo = repository.NewPointRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config
	c.CouponStockWarmer = service.NewCouponStockWarmer(c.CouponRepo, c.IssueStore)
	c.CouponIssueService = service.NewCouponIssueService(c.IssueStore, c.IssuePublisher, c.RequestTopic())

	emitter := service.NewIssueOutcomeRecorder(c.IssueStore, c.IssuePublisher, cfg.MQ.OutcomeTopic, cfg.CouponIssue.OutcomeTTL())
	var redeliverer service.Redeliverer
	if c.QueueClient.Enabled() {
		redeliverer = c.QueueClient
	}
	c.CouponIssueProcessor = service.NewCouponIssueProcessor(
		c.Transactor,
		c.CouponRepo,
		c.CouponUserRepo,
		c.IssueStore,
		emitter,
		redeliverer,
		service.RedeliveryPolicy{
			Enabled: cfg.CouponIssue.RedeliveryEnabled,
			Max:     cfg.CouponIssue.MaxRedeliveries,
			Delay:   cfg.CouponIssue.RedeliveryDelay(),
		},
	)

	c.CouponAdminService = service.NewCouponAdminService(
		c.Transactor,
		c.CouponRepo,
		c.CouponUserRepo,
		c.LockCoordinator,
		c.CouponStockWarmer,
	)
	c.CheckoutService = service.NewCheckoutService(
		c.LockCoordinator,
		c.RetryExecutor,
		c.ProductRepo,
		c.OrderRepo,
		c.CouponRepo,
		c.CouponUserRepo,
		c.PointRepo,
	)
	c.CouponQueryService = service.NewCouponQueryService(c.CouponRepo)
	c.PointService = service.NewPointService(c.RetryExecutor, c.PointRepo)
}

// RequestTopic 发放请求主题
func (c *Container) RequestTopic() string {
	if topic := strings.TrimSpace(c.Config.MQ.RequestTopic); topic != "" {
		return topic
	}
	return constants.TopicCouponIssueRequest
}

// Ping 检查外部依赖
func (c *Container) Ping(ctx context.Context) error {
	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
	}
	return cache.Ping(ctx)
}

// Close 释放外部连接，按创建的逆序关闭
func (c *Container) Close() error {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warnw("provider_close_failed", "error", err)
		}
	}
	c.closers = nil
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_queue_client_close_failed", "error", err)
		}
	}
	return cache.Close()
}
