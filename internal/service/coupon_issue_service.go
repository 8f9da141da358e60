package service

import (
	"context"
	"errors"
	"time"

	"github.com/couponflow/internal/cache"
	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/metrics"
	"github.com/couponflow/internal/mq"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var issueTracer = otel.Tracer("couponflow/coupon_issue")

// AdmissionResult 准入结果：Admitted 为 true 时携带 RequestID，否则携带拒绝原因
type AdmissionResult struct {
	Admitted  bool   `json:"admitted"`
	RequestID string `json:"request_id,omitempty"`
	Reason    string `json:"reason,omitempty"` // DUPLICATE / NOT_FOUND / OUT_OF_STOCK
}

// Admitted 准入成功
func Admitted(requestID string) AdmissionResult {
	return AdmissionResult{Admitted: true, RequestID: requestID}
}

// Rejected 准入被拒
func Rejected(reason string) AdmissionResult {
	return AdmissionResult{Reason: reason}
}

// CouponIssueService 优惠券异步发放准入门
// 只做计数与入队，真正的发放由分区消费者完成
type CouponIssueService struct {
	store     cache.IssueStore
	publisher mq.Publisher
	topic     string
	now       func() time.Time
	newID     func() string
}

// NewCouponIssueService 创建发放准入服务
func NewCouponIssueService(store cache.IssueStore, publisher mq.Publisher, topic string) *CouponIssueService {
	if topic == "" {
		topic = constants.TopicCouponIssueRequest
	}
	return &CouponIssueService{
		store:     store,
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Admit 尝试为用户占用一个发放名额并投递发放请求
// 业务拒绝通过结果返回，error 只表示输入非法或基础设施故障
func (s *CouponIssueService) Admit(ctx context.Context, userID, couponID uint) (AdmissionResult, error) {
	if userID == 0 {
		return AdmissionResult{}, ErrUserIDRequired
	}
	if couponID == 0 {
		return AdmissionResult{}, ErrCouponIDRequired
	}
	ctx, span := issueTracer.Start(ctx, "coupon_issue.admit")
	span.SetAttributes(attribute.Int64("coupon.id", int64(couponID)), attribute.Int64("user.id", int64(userID)))
	defer span.End()

	added, err := s.store.AddParticipant(ctx, couponID, userID)
	if err != nil {
		return s.fail(ctx, couponID, userID, false, "coupon_issue_participant_add_failed", err)
	}
	if !added {
		return s.reject(couponID, userID, constants.IssueStatusDuplicate), nil
	}

	participants, err := s.store.ParticipantCount(ctx, couponID)
	if err != nil {
		return s.fail(ctx, couponID, userID, true, "coupon_issue_participant_count_failed", err)
	}
	stock, seeded, err := s.store.Stock(ctx, couponID)
	if err != nil {
		return s.fail(ctx, couponID, userID, true, "coupon_issue_stock_read_failed", err)
	}
	if !seeded {
		s.releaseSlot(ctx, couponID, userID)
		return s.reject(couponID, userID, constants.IssueStatusNotFound), nil
	}
	if participants > stock {
		s.releaseSlot(ctx, couponID, userID)
		return s.reject(couponID, userID, constants.IssueStatusOutOfStock), nil
	}

	req := mq.IssueRequest{
		RequestID:   s.newID(),
		UserID:      userID,
		CouponID:    couponID,
		RequestedAt: s.now(),
	}
	if err := mq.PublishJSON(ctx, s.publisher, s.topic, req.Key(), req); err != nil {
		return s.fail(ctx, couponID, userID, true, "coupon_issue_publish_failed", err)
	}

	metrics.AdmissionTotal.WithLabelValues("admitted").Inc()
	logger.Infow("coupon_issue_admitted",
		"request_id", req.RequestID,
		"coupon_id", couponID,
		"user_id", userID,
		"participants", participants,
		"stock", stock,
	)
	return Admitted(req.RequestID), nil
}

// GetOutcome 查询发放结果，未处理完成返回 nil
func (s *CouponIssueService) GetOutcome(ctx context.Context, requestID string) (*mq.IssueOutcome, error) {
	if requestID == "" {
		return nil, ErrRequestIDRequired
	}
	var outcome mq.IssueOutcome
	found, err := s.store.GetOutcome(ctx, requestID, &outcome)
	if err != nil {
		return nil, wrapInfra("coupon_issue_outcome_read_failed", err)
	}
	if !found {
		return nil, nil
	}
	return &outcome, nil
}

func (s *CouponIssueService) reject(couponID, userID uint, reason string) AdmissionResult {
	metrics.AdmissionTotal.WithLabelValues(reason).Inc()
	logger.Debugw("coupon_issue_rejected", "coupon_id", couponID, "user_id", userID, "reason", reason)
	return Rejected(reason)
}

func (s *CouponIssueService) fail(ctx context.Context, couponID, userID uint, release bool, event string, err error) (AdmissionResult, error) {
	if release {
		s.releaseSlot(ctx, couponID, userID)
	}
	metrics.AdmissionTotal.WithLabelValues("error").Inc()
	logger.Errorw(event, "coupon_id", couponID, "user_id", userID, "error", err)
	return AdmissionResult{}, errors.Join(ErrIssueUnavailable, err)
}

// releaseSlot 归还准入名额，不受请求取消影响
func (s *CouponIssueService) releaseSlot(ctx context.Context, couponID, userID uint) {
	if err := s.store.RemoveParticipant(context.WithoutCancel(ctx), couponID, userID); err != nil {
		logger.Warnw("coupon_issue_participant_release_failed", "coupon_id", couponID, "user_id", userID, "error", err)
	}
}
