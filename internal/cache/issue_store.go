package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/couponflow/internal/constants"
)

// IssueStore 优惠券发放准入计数存储
// stock 为可准入名额，participants 为已准入用户集合
type IssueStore interface {
	SeedStock(ctx context.Context, couponID uint, stock int64) error
	SeedStockIfAbsent(ctx context.Context, couponID uint, stock int64) (bool, error)
	Reset(ctx context.Context, couponID uint) error
	AddParticipant(ctx context.Context, couponID, userID uint) (bool, error)
	RemoveParticipant(ctx context.Context, couponID, userID uint) error
	ParticipantCount(ctx context.Context, couponID uint) (int64, error)
	Stock(ctx context.Context, couponID uint) (int64, bool, error)
	SaveOutcome(ctx context.Context, requestID string, outcome interface{}, ttl time.Duration) error
	GetOutcome(ctx context.Context, requestID string, dest interface{}) (bool, error)
}

func issueStockKey(couponID uint) string {
	return fmt.Sprintf("%s:stock:%d", constants.CouponIssueKeyNamespace, couponID)
}

func issueParticipantsKey(couponID uint) string {
	return fmt.Sprintf("%s:participants:%d", constants.CouponIssueKeyNamespace, couponID)
}

func issueOutcomeKey(requestID string) string {
	return fmt.Sprintf("%s:outcome:%s", constants.CouponIssueKeyNamespace, requestID)
}
