package queue

import (
	"encoding/json"

	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/mq"

	"github.com/hibiken/asynq"
)

const (
	// TaskCouponIssueRedeliver 发放请求重投递任务
	TaskCouponIssueRedeliver = constants.TaskCouponIssueRedeliver
)

// CouponIssueRedeliverPayload 重投递任务载荷，Request.Attempt 为下一次尝试序号
type CouponIssueRedeliverPayload struct {
	Request mq.IssueRequest `json:"request"`
	Reason  string          `json:"reason"`
}

// NewCouponIssueRedeliverTask 创建重投递任务
func NewCouponIssueRedeliverTask(payload CouponIssueRedeliverPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCouponIssueRedeliver, body), nil
}

// ParseCouponIssueRedeliverPayload 解析重投递任务载荷
func ParseCouponIssueRedeliverPayload(body []byte) (CouponIssueRedeliverPayload, error) {
	var payload CouponIssueRedeliverPayload
	err := json.Unmarshal(body, &payload)
	return payload, err
}
