// Package mq 封装优惠券发放使用的有序分区日志
package mq

import (
	"encoding/json"
	"strconv"
	"time"
)

// IssueRequest 发放请求，分区键为 couponId
type IssueRequest struct {
	RequestID   string    `json:"request_id"`
	UserID      uint      `json:"user_id"`
	CouponID    uint      `json:"coupon_id"`
	RequestedAt time.Time `json:"requested_at"`
	Attempt     int       `json:"attempt,omitempty"` // 重投递次数
}

// Key 分区键
func (r IssueRequest) Key() string {
	return CouponKey(r.CouponID)
}

// IssueOutcome 发放处理结果
type IssueOutcome struct {
	RequestID     string    `json:"request_id"`
	UserID        uint      `json:"user_id"`
	CouponID      uint      `json:"coupon_id"`
	CouponUserID  *uint     `json:"coupon_user_id"`
	Status        string    `json:"status"`
	FailureReason *string   `json:"failure_reason"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Key 分区键
func (o IssueOutcome) Key() string {
	return CouponKey(o.CouponID)
}

// CouponKey 以 couponId 作为分区键，保证同一券的请求进入同一分区
func CouponKey(couponID uint) string {
	return strconv.FormatUint(uint64(couponID), 10)
}

// DecodeIssueRequest 解析发放请求
func DecodeIssueRequest(value []byte) (IssueRequest, error) {
	var req IssueRequest
	err := json.Unmarshal(value, &req)
	return req, err
}
