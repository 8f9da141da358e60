package service

import (
	"context"
	"time"

	"github.com/couponflow/internal/cache"
	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/models"
	"github.com/couponflow/internal/repository"
)

// CouponStockWarmer 以数据库剩余量初始化准入计数
// WarmUp 会清空已准入集合，应在发放窗口开始前或停发后执行；进程启动走 WarmUpMissing
type CouponStockWarmer struct {
	couponRepo repository.CouponRepository
	store      cache.IssueStore
	now        func() time.Time
}

// NewCouponStockWarmer 创建预热器
func NewCouponStockWarmer(couponRepo repository.CouponRepository, store cache.IssueStore) *CouponStockWarmer {
	return &CouponStockWarmer{couponRepo: couponRepo, store: store, now: time.Now}
}

// WarmUp 预热全部可发放优惠券，返回预热数量
func (w *CouponStockWarmer) WarmUp(ctx context.Context) (int, error) {
	return w.warmAll(ctx, true)
}

// WarmUpMissing 只补齐缺失的计数（如 Redis 数据丢失），已有名额与已准入集合不动
// 队列中已准入未处理的请求仍占用名额
func (w *CouponStockWarmer) WarmUpMissing(ctx context.Context) (int, error) {
	return w.warmAll(ctx, false)
}

func (w *CouponStockWarmer) warmAll(ctx context.Context, overwrite bool) (int, error) {
	coupons, err := w.couponRepo.ListIssuable(w.now())
	if err != nil {
		return 0, err
	}
	seeded := 0
	for i := range coupons {
		ok, err := w.warm(ctx, &coupons[i], overwrite)
		if err != nil {
			return seeded, err
		}
		if ok {
			seeded++
		}
	}
	logger.Infow("coupon_stock_warmed", "coupons", len(coupons), "seeded", seeded, "overwrite", overwrite)
	return seeded, nil
}

// WarmCoupon 可发放则写入剩余量，否则清除计数（准入门随即返回 NOT_FOUND）
func (w *CouponStockWarmer) WarmCoupon(ctx context.Context, coupon *models.Coupon) error {
	_, err := w.warm(ctx, coupon, true)
	return err
}

func (w *CouponStockWarmer) warm(ctx context.Context, coupon *models.Coupon, overwrite bool) (bool, error) {
	if coupon == nil {
		return false, nil
	}
	if !warmable(coupon, w.now()) {
		if err := w.store.Reset(ctx, coupon.ID); err != nil {
			return false, wrapInfra("coupon_stock_reset_failed", err)
		}
		logger.Debugw("coupon_stock_reset", "coupon_id", coupon.ID, "status", coupon.Status)
		return false, nil
	}
	if !overwrite {
		seeded, err := w.store.SeedStockIfAbsent(ctx, coupon.ID, int64(coupon.AvailableQuantity))
		if err != nil {
			return false, wrapInfra("coupon_stock_seed_failed", err)
		}
		if seeded {
			logger.Debugw("coupon_stock_seeded", "coupon_id", coupon.ID, "stock", coupon.AvailableQuantity)
		}
		return seeded, nil
	}
	if err := w.store.SeedStock(ctx, coupon.ID, int64(coupon.AvailableQuantity)); err != nil {
		return false, wrapInfra("coupon_stock_seed_failed", err)
	}
	logger.Debugw("coupon_stock_seeded", "coupon_id", coupon.ID, "stock", coupon.AvailableQuantity)
	return true, nil
}

// warmable 启用且未过期的 ACTIVE/SOLD_OUT 券，售罄券以 0 名额预热
func warmable(coupon *models.Coupon, now time.Time) bool {
	if !coupon.IsActive || coupon.IsExpiredAt(now) {
		return false
	}
	return coupon.Status == constants.CouponStatusActive || coupon.Status == constants.CouponStatusSoldOut
}
