package worker

import (
	"context"
	"errors"

	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/mq"
	"github.com/couponflow/internal/provider"
	"github.com/couponflow/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCouponIssueRedeliver, c.handleCouponIssueRedeliver)
}

// handleCouponIssueRedeliver 将失败的发放请求按原分区键重新写回日志
// 处理器按 (coupon, user) 幂等，重复投递只会得到 DUPLICATE
func (c *Consumer) handleCouponIssueRedeliver(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_coupon_issue_redeliver_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseCouponIssueRedeliverPayload(task.Payload())
	if err != nil {
		logger.Warnw("worker_coupon_issue_redeliver_unmarshal_failed", "error", err)
		return err
	}
	req := payload.Request
	if req.RequestID == "" || req.CouponID == 0 || req.UserID == 0 {
		logger.Debugw("worker_coupon_issue_redeliver_skip_invalid_payload",
			"request_id", req.RequestID,
			"coupon_id", req.CouponID,
			"user_id", req.UserID,
		)
		return nil
	}
	if c.Container == nil || c.IssuePublisher == nil {
		logger.Warnw("worker_coupon_issue_redeliver_skip_publisher_nil", "request_id", req.RequestID)
		return nil
	}
	if err := mq.PublishJSON(ctx, c.IssuePublisher, c.RequestTopic(), req.Key(), req); err != nil {
		if errors.Is(err, mq.ErrClosed) {
			logger.Debugw("worker_coupon_issue_redeliver_skip_log_closed", "request_id", req.RequestID)
			return nil
		}
		logger.Warnw("worker_coupon_issue_redeliver_publish_failed",
			"request_id", req.RequestID,
			"coupon_id", req.CouponID,
			"attempt", req.Attempt,
			"error", err,
		)
		return err
	}
	logger.Infow("worker_coupon_issue_redelivered",
		"request_id", req.RequestID,
		"coupon_id", req.CouponID,
		"user_id", req.UserID,
		"attempt", req.Attempt,
		"reason", payload.Reason,
	)
	return nil
}
