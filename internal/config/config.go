package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/couponflow/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Queue       QueueConfig       `mapstructure:"queue"`
	MQ          MQConfig          `mapstructure:"mq"`
	Lock        LockConfig        `mapstructure:"lock"`
	Retry       RetryConfig       `mapstructure:"retry"`
	CouponIssue CouponIssueConfig `mapstructure:"coupon_issue"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	CORS        CORSConfig        `mapstructure:"cors"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres/mysql）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步任务队列配置（重投递）
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// MQConfig 有序分区日志配置
type MQConfig struct {
	Driver       string   `mapstructure:"driver"` // kafka / memory
	Brokers      []string `mapstructure:"brokers"`
	RequestTopic string   `mapstructure:"request_topic"`
	OutcomeTopic string   `mapstructure:"outcome_topic"`
	GroupID      string   `mapstructure:"group_id"`
	Partitions   int      `mapstructure:"partitions"` // memory 驱动分区数
	Buffer       int      `mapstructure:"buffer"`     // memory 驱动每分区缓冲
	Consumers    int      `mapstructure:"consumers"`  // kafka 消费者数量
}

// LockConfig 分布式锁配置
type LockConfig struct {
	Backend            string   `mapstructure:"backend"` // redis / zookeeper / memory
	WaitMS             int      `mapstructure:"wait_ms"`
	LeaseMS            int      `mapstructure:"lease_ms"`
	SpinMS             int      `mapstructure:"spin_ms"`
	ZKServers          []string `mapstructure:"zk_servers"`
	ZKRoot             string   `mapstructure:"zk_root"`
	ZKSessionTimeoutMS int      `mapstructure:"zk_session_timeout_ms"`
}

// Wait 等待时间
func (c LockConfig) Wait() time.Duration { return time.Duration(c.WaitMS) * time.Millisecond }

// Lease 租约
func (c LockConfig) Lease() time.Duration { return time.Duration(c.LeaseMS) * time.Millisecond }

// Spin 自旋间隔
func (c LockConfig) Spin() time.Duration { return time.Duration(c.SpinMS) * time.Millisecond }

// ZKSessionTimeout ZooKeeper 会话超时
func (c LockConfig) ZKSessionTimeout() time.Duration {
	return time.Duration(c.ZKSessionTimeoutMS) * time.Millisecond
}

// RetryConfig 乐观锁重试配置
type RetryConfig struct {
	MaxAttempts   int `mapstructure:"max_attempts"`
	BackoffBaseMS int `mapstructure:"backoff_base_ms"` // 0 表示不退避
	BackoffMaxMS  int `mapstructure:"backoff_max_ms"`
}

// CouponIssueConfig 优惠券异步发放配置
type CouponIssueConfig struct {
	OutcomeTTLSeconds      int  `mapstructure:"outcome_ttl_seconds"`
	RedeliveryEnabled      bool `mapstructure:"redelivery_enabled"`
	MaxRedeliveries        int  `mapstructure:"max_redeliveries"`
	RedeliveryDelaySeconds int  `mapstructure:"redelivery_delay_seconds"`
	WarmUpOnStart          bool `mapstructure:"warm_up_on_start"`
}

// OutcomeTTL 结果保留时间
func (c CouponIssueConfig) OutcomeTTL() time.Duration {
	return time.Duration(c.OutcomeTTLSeconds) * time.Second
}

// RedeliveryDelay 首次重投递延迟
func (c CouponIssueConfig) RedeliveryDelay() time.Duration {
	return time.Duration(c.RedeliveryDelaySeconds) * time.Second
}

// RateLimitConfig 领券接口频率限制
type RateLimitConfig struct {
	IssueWindowSeconds int `mapstructure:"issue_window_seconds"`
	IssueMaxRequests   int `mapstructure:"issue_max_requests"` // 0 表示不限制
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")     // 从当前目录查找
	v.AddConfigPath("./")    // 备用路径
	v.AddConfigPath("../")   // 如果从 cmd/server 运行
	v.AddConfigPath("./etc") // etc 文件夹
	return load(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "couponflow.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/couponflow.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "cf")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("mq.driver", "memory")
	v.SetDefault("mq.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("mq.request_topic", "coupon.issue.request")
	v.SetDefault("mq.outcome_topic", "coupon.issue.outcome")
	v.SetDefault("mq.group_id", "couponflow-issue")
	v.SetDefault("mq.partitions", 8)
	v.SetDefault("mq.buffer", 4096)
	v.SetDefault("mq.consumers", 4)
	v.SetDefault("lock.backend", "redis")
	v.SetDefault("lock.wait_ms", 3000)
	v.SetDefault("lock.lease_ms", 10000)
	v.SetDefault("lock.spin_ms", 50)
	v.SetDefault("lock.zk_servers", []string{"127.0.0.1:2181"})
	v.SetDefault("lock.zk_root", "/couponflow_locks")
	v.SetDefault("lock.zk_session_timeout_ms", 10000)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.backoff_base_ms", 0)
	v.SetDefault("retry.backoff_max_ms", 200)
	v.SetDefault("coupon_issue.outcome_ttl_seconds", 86400)
	v.SetDefault("coupon_issue.redelivery_enabled", true)
	v.SetDefault("coupon_issue.max_redeliveries", 3)
	v.SetDefault("coupon_issue.redelivery_delay_seconds", 5)
	v.SetDefault("coupon_issue.warm_up_on_start", true)
	v.SetDefault("rate_limit.issue_window_seconds", 1)
	v.SetDefault("rate_limit.issue_max_requests", 5)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
}

func load(v *viper.Viper) *Config {
	setDefaults(v)

	// 环境变量支持
	v.AutomaticEnv()                                   // 自动读取环境变量
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 server.port -> SERVER_PORT)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}
