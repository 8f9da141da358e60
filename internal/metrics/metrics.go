// Package metrics 汇总服务暴露的 Prometheus 指标
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "couponflow"

var (
	// AdmissionTotal 准入门结果计数
	AdmissionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "coupon_issue",
		Name:      "admission_total",
		Help:      "Admission gate results by outcome.",
	}, []string{"result"})

	// IssueOutcomeTotal 发放处理结果计数
	IssueOutcomeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "coupon_issue",
		Name:      "outcome_total",
		Help:      "Issuance processor outcomes by status.",
	}, []string{"status"})

	// IssueRedeliveryTotal 重投递计数
	IssueRedeliveryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "coupon_issue",
		Name:      "redelivery_total",
		Help:      "Redelivery scheduling results.",
	}, []string{"result"})

	// LockWaitSeconds 多资源加锁等待耗时
	LockWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "wait_seconds",
		Help:      "Time spent acquiring a multi-resource lock set.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"result"})

	// LockAcquireFailures 加锁失败计数
	LockAcquireFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "acquire_failures_total",
		Help:      "Lock acquisition failures by reason.",
	}, []string{"reason"})

	// OptimisticRetries 乐观锁冲突重试计数
	OptimisticRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "retry",
		Name:      "conflicts_total",
		Help:      "Version conflicts observed by the optimistic retry executor.",
	}, []string{"result"})

	// HTTPRequestSeconds 接口耗时
	HTTPRequestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

var registerOnce sync.Once

// Collectors 返回全部指标
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		AdmissionTotal,
		IssueOutcomeTotal,
		IssueRedeliveryTotal,
		LockWaitSeconds,
		LockAcquireFailures,
		OptimisticRetries,
		HTTPRequestSeconds,
	}
}

// Register 注册到指定 Registerer（重复调用只生效一次）
func Register(reg prometheus.Registerer) error {
	var err error
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		for _, collector := range Collectors() {
			if regErr := reg.Register(collector); regErr != nil {
				if _, ok := regErr.(prometheus.AlreadyRegisteredError); ok {
					continue
				}
				err = regErr
				return
			}
		}
	})
	return err
}
