package service

import (
	"context"
	"fmt"
	"time"

	"github.com/couponflow/internal/cache"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/models"
	"github.com/couponflow/internal/repository"
)

// couponSnapshotTTL 剩余数量允许短暂滞后，发放成功与后台变更会主动失效
const couponSnapshotTTL = 5 * time.Second

// CouponQueryService 优惠券只读查询（带 Redis 短缓存）
type CouponQueryService struct {
	couponRepo repository.CouponRepository
}

// NewCouponQueryService 创建优惠券查询服务
func NewCouponQueryService(couponRepo repository.CouponRepository) *CouponQueryService {
	return &CouponQueryService{couponRepo: couponRepo}
}

// Get 查询优惠券快照
func (s *CouponQueryService) Get(ctx context.Context, couponID uint) (*models.Coupon, error) {
	key := couponCacheKey(couponID)
	var cached models.Coupon
	hit, err := cache.GetJSON(ctx, key, &cached)
	if err != nil {
		logger.Debugw("coupon_snapshot_cache_read_failed", "coupon_id", couponID, "error", err)
	}
	if hit {
		return &cached, nil
	}

	coupon, err := s.couponRepo.GetByID(couponID)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	if err := cache.SetJSON(ctx, key, coupon, couponSnapshotTTL); err != nil {
		logger.Debugw("coupon_snapshot_cache_write_failed", "coupon_id", couponID, "error", err)
	}
	return coupon, nil
}

func couponCacheKey(couponID uint) string {
	return fmt.Sprintf("coupon:snapshot:%d", couponID)
}

// invalidateCouponSnapshot 数量或状态变化后清理缓存
func invalidateCouponSnapshot(ctx context.Context, couponID uint) {
	if err := cache.Del(ctx, couponCacheKey(couponID)); err != nil {
		logger.Debugw("coupon_snapshot_cache_del_failed", "coupon_id", couponID, "error", err)
	}
}
