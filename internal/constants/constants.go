package constants

// 优惠券状态常量
const (
	CouponStatusActive   = "ACTIVE"
	CouponStatusSoldOut  = "SOLD_OUT"
	CouponStatusExpired  = "EXPIRED"
	CouponStatusDisabled = "DISABLED"
)

// 发放结果状态常量
const (
	IssueStatusSuccess    = "SUCCESS"
	IssueStatusOutOfStock = "OUT_OF_STOCK"
	IssueStatusDuplicate  = "DUPLICATE"
	IssueStatusExpired    = "EXPIRED"
	IssueStatusNotFound   = "NOT_FOUND"
	IssueStatusFailed     = "FAILED"
)

// 订单状态常量
const (
	OrderStatusCreated  = "created"
	OrderStatusCanceled = "canceled"
)

// 锁资源域常量
const (
	LockDomainUserPoint  = "USER_POINT"
	LockDomainProduct    = "PRODUCT"
	LockDomainCouponUser = "COUPON_USER"
)

// 锁 key 前缀
const (
	LockKeyPrefix           = "lock"
	LockPrefixUserPoint     = "user_point"
	LockPrefixProduct       = "product"
	LockPrefixCouponUser    = "coupon_user"
	CouponIssueKeyNamespace = "coupon:issue:async"
)

// 消息主题常量
const (
	TopicCouponIssueRequest = "coupon.issue.request"
	TopicCouponIssueOutcome = "coupon.issue.outcome"
)

// 异步任务常量
const (
	QueueDefault             = "default"
	QueueCritical            = "critical"
	TaskCouponIssueRedeliver = "coupon:issue:redeliver"
)

// 消息队列驱动常量
const (
	MQDriverKafka  = "kafka"
	MQDriverMemory = "memory"
)

// 分布式锁后端常量
const (
	LockBackendRedis     = "redis"
	LockBackendZooKeeper = "zookeeper"
	LockBackendMemory    = "memory"
)
