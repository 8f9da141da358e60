package service

import (
	"context"
	"errors"
	"time"

	"github.com/couponflow/internal/apperr"
	"github.com/couponflow/internal/cache"
	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/metrics"
	"github.com/couponflow/internal/models"
	"github.com/couponflow/internal/mq"
	"github.com/couponflow/internal/queue"
	"github.com/couponflow/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

// errIssueDuplicated 唯一约束冲突时回滚本次扣减
var errIssueDuplicated = errors.New("coupon user already exists")

// OutcomeEmitter 发放结果输出
type OutcomeEmitter interface {
	Emit(ctx context.Context, outcome mq.IssueOutcome) error
}

// Redeliverer 延迟重投递
type Redeliverer interface {
	EnqueueIssueRedelivery(payload queue.CouponIssueRedeliverPayload, delay time.Duration) error
}

// RedeliveryPolicy 失败请求的有限次自动重投递
type RedeliveryPolicy struct {
	Enabled bool
	Max     int
	Delay   time.Duration
}

// delayFor 第 attempt 次重投递延迟：Delay * 2^attempt
func (p RedeliveryPolicy) delayFor(attempt int) time.Duration {
	delay := p.Delay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// CouponIssueProcessor 分区消费者调用的发放处理器
type CouponIssueProcessor struct {
	tx             repository.Transactor
	couponRepo     repository.CouponRepository
	couponUserRepo repository.CouponUserRepository
	store          cache.IssueStore
	emitter        OutcomeEmitter
	redeliverer    Redeliverer
	policy         RedeliveryPolicy
	now            func() time.Time
}

// NewCouponIssueProcessor 创建发放处理器
func NewCouponIssueProcessor(
	tx repository.Transactor,
	couponRepo repository.CouponRepository,
	couponUserRepo repository.CouponUserRepository,
	store cache.IssueStore,
	emitter OutcomeEmitter,
	redeliverer Redeliverer,
	policy RedeliveryPolicy,
) *CouponIssueProcessor {
	return &CouponIssueProcessor{
		tx:             tx,
		couponRepo:     couponRepo,
		couponUserRepo: couponUserRepo,
		store:          store,
		emitter:        emitter,
		redeliverer:    redeliverer,
		policy:         policy,
		now:            time.Now,
	}
}

// HandleMessage 消费日志消息
func (p *CouponIssueProcessor) HandleMessage(ctx context.Context, msg mq.Message) error {
	req, err := mq.DecodeIssueRequest(msg.Value)
	if err != nil {
		return err
	}
	p.Process(ctx, req)
	return nil
}

// Process 在单个事务内完成发放，返回结果而不是错误
func (p *CouponIssueProcessor) Process(ctx context.Context, req mq.IssueRequest) mq.IssueOutcome {
	ctx, span := issueTracer.Start(ctx, "coupon_issue.process")
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.Int64("coupon.id", int64(req.CouponID)),
		attribute.Int64("user.id", int64(req.UserID)),
		attribute.Int("request.attempt", req.Attempt),
	)
	defer span.End()

	now := p.now()
	var outcome mq.IssueOutcome
	err := p.tx.InTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		outcome, txErr = p.issue(tx, req, now)
		return txErr
	})
	switch {
	case err == nil:
		if outcome.Status == constants.IssueStatusFailed {
			// 券状态拒绝（未启用/未开始/已停用），原因码见 failure_reason
			p.releaseSlot(ctx, req)
		}
	case errors.Is(err, errIssueDuplicated):
		outcome = newOutcome(req, constants.IssueStatusDuplicate, now)
		outcome.FailureReason = reasonPtr("coupon_user_exists")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		outcome = newOutcome(req, constants.IssueStatusFailed, now)
		outcome.FailureReason = reasonPtr(err.Error())
		logger.Errorw("coupon_issue_process_failed",
			"request_id", req.RequestID,
			"coupon_id", req.CouponID,
			"user_id", req.UserID,
			"attempt", req.Attempt,
			"requested_at", req.RequestedAt,
			"error", err,
		)
		if p.scheduleRedelivery(req, err) {
			// 重投递后以新的尝试结果为准，这里不落最终结果
			metrics.IssueOutcomeTotal.WithLabelValues("REDELIVERING").Inc()
			return outcome
		}
		p.releaseSlot(ctx, req)
	}

	metrics.IssueOutcomeTotal.WithLabelValues(outcome.Status).Inc()
	if outcome.Status == constants.IssueStatusSuccess {
		invalidateCouponSnapshot(ctx, req.CouponID)
		logger.Infow("coupon_issue_succeeded",
			"request_id", req.RequestID,
			"coupon_id", req.CouponID,
			"user_id", req.UserID,
			"coupon_user_id", *outcome.CouponUserID,
		)
	} else if err == nil || outcome.Status != constants.IssueStatusFailed {
		logger.Infow("coupon_issue_rejected",
			"request_id", req.RequestID,
			"coupon_id", req.CouponID,
			"user_id", req.UserID,
			"status", outcome.Status,
		)
	}
	p.emit(ctx, outcome)
	return outcome
}

// issue 事务体，业务拒绝以 outcome 返回并提交空事务
func (p *CouponIssueProcessor) issue(tx *gorm.DB, req mq.IssueRequest, now time.Time) (mq.IssueOutcome, error) {
	couponRepo := p.couponRepo.WithTx(tx)
	couponUserRepo := p.couponUserRepo.WithTx(tx)

	existing, err := couponUserRepo.GetByCouponAndUser(req.CouponID, req.UserID)
	if err != nil {
		return mq.IssueOutcome{}, err
	}
	if existing != nil {
		outcome := newOutcome(req, constants.IssueStatusDuplicate, now)
		outcome.CouponUserID = &existing.ID
		outcome.FailureReason = reasonPtr("coupon_user_exists")
		return outcome, nil
	}

	coupon, err := couponRepo.GetByIDForUpdate(req.CouponID)
	if err != nil {
		return mq.IssueOutcome{}, err
	}
	if coupon == nil {
		return rejectedOutcome(req, constants.IssueStatusNotFound, ErrCouponNotFound, now), nil
	}
	if coupon.AvailableQuantity <= 0 {
		return rejectedOutcome(req, constants.IssueStatusOutOfStock, models.ErrCouponOutOfStock, now), nil
	}
	if coupon.IsExpiredAt(now) {
		return rejectedOutcome(req, constants.IssueStatusExpired, models.ErrCouponExpired, now), nil
	}
	if err := coupon.ValidateIssuable(now); err != nil {
		// 未启用/未开始/已停用：业务状态拒绝，不重投递
		return rejectedOutcome(req, constants.IssueStatusFailed, err, now), nil
	}

	if err := coupon.DecreaseQuantity(); err != nil {
		return rejectedOutcome(req, constants.IssueStatusOutOfStock, err, now), nil
	}
	if err := couponRepo.Update(coupon); err != nil {
		return mq.IssueOutcome{}, err
	}
	couponUser := &models.CouponUser{
		CouponID:   coupon.ID,
		UserID:     req.UserID,
		IssuedAt:   now,
		ExpireDate: coupon.EndDate,
		IsUsed:     false,
	}
	if err := couponUserRepo.Create(couponUser); err != nil {
		if repository.IsUniqueViolation(err) {
			return mq.IssueOutcome{}, errIssueDuplicated
		}
		return mq.IssueOutcome{}, err
	}

	outcome := newOutcome(req, constants.IssueStatusSuccess, now)
	outcome.CouponUserID = &couponUser.ID
	return outcome, nil
}

func (p *CouponIssueProcessor) scheduleRedelivery(req mq.IssueRequest, cause error) bool {
	if p.redeliverer == nil || !p.policy.Enabled {
		return false
	}
	if req.Attempt >= p.policy.Max {
		metrics.IssueRedeliveryTotal.WithLabelValues("exhausted").Inc()
		logger.Warnw("coupon_issue_redelivery_exhausted",
			"request_id", req.RequestID,
			"coupon_id", req.CouponID,
			"user_id", req.UserID,
			"attempt", req.Attempt,
		)
		return false
	}
	next := req
	next.Attempt = req.Attempt + 1
	delay := p.policy.delayFor(req.Attempt)
	err := p.redeliverer.EnqueueIssueRedelivery(queue.CouponIssueRedeliverPayload{
		Request: next,
		Reason:  cause.Error(),
	}, delay)
	if err != nil {
		metrics.IssueRedeliveryTotal.WithLabelValues("enqueue_failed").Inc()
		logger.Errorw("coupon_issue_redelivery_enqueue_failed",
			"request_id", req.RequestID,
			"attempt", next.Attempt,
			"error", err,
		)
		return false
	}
	metrics.IssueRedeliveryTotal.WithLabelValues("scheduled").Inc()
	logger.Infow("coupon_issue_redelivery_scheduled",
		"request_id", req.RequestID,
		"attempt", next.Attempt,
		"delay_ms", delay.Milliseconds(),
	)
	return true
}

// releaseSlot 终态失败时归还准入名额，允许用户重新申请
func (p *CouponIssueProcessor) releaseSlot(ctx context.Context, req mq.IssueRequest) {
	if p.store == nil {
		return
	}
	if err := p.store.RemoveParticipant(context.WithoutCancel(ctx), req.CouponID, req.UserID); err != nil {
		logger.Warnw("coupon_issue_participant_release_failed",
			"request_id", req.RequestID,
			"coupon_id", req.CouponID,
			"user_id", req.UserID,
			"error", err,
		)
	}
}

// emit 提交后输出结果，失败只记录日志
func (p *CouponIssueProcessor) emit(ctx context.Context, outcome mq.IssueOutcome) {
	if p.emitter == nil {
		return
	}
	if err := p.emitter.Emit(context.WithoutCancel(ctx), outcome); err != nil {
		logger.Warnw("coupon_issue_outcome_emit_failed",
			"request_id", outcome.RequestID,
			"status", outcome.Status,
			"error", err,
		)
	}
}

func newOutcome(req mq.IssueRequest, status string, now time.Time) mq.IssueOutcome {
	return mq.IssueOutcome{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		CouponID:  req.CouponID,
		Status:    status,
		IssuedAt:  now,
	}
}

func rejectedOutcome(req mq.IssueRequest, status string, cause error, now time.Time) mq.IssueOutcome {
	outcome := newOutcome(req, status, now)
	reason := apperr.CodeOf(cause)
	if reason == "" {
		reason = cause.Error()
	}
	outcome.FailureReason = &reason
	return outcome
}

func reasonPtr(reason string) *string {
	return &reason
}
