package service

import (
	"context"
	"strings"
	"time"

	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/lock"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/models"
	"github.com/couponflow/internal/repository"

	"gorm.io/gorm"
)

// CouponAdminService 优惠券管理：创建、停用、撤销用户券
type CouponAdminService struct {
	tx             repository.Transactor
	couponRepo     repository.CouponRepository
	couponUserRepo repository.CouponUserRepository
	coordinator    *lock.Coordinator
	warmer         *CouponStockWarmer
	now            func() time.Time
}

// CreateCouponInput 创建优惠券输入
type CreateCouponInput struct {
	Name           string
	TotalQuantity  int
	DiscountAmount models.Money
	StartDate      time.Time
	EndDate        time.Time
}

// NewCouponAdminService 创建优惠券管理服务
func NewCouponAdminService(
	tx repository.Transactor,
	couponRepo repository.CouponRepository,
	couponUserRepo repository.CouponUserRepository,
	coordinator *lock.Coordinator,
	warmer *CouponStockWarmer,
) *CouponAdminService {
	return &CouponAdminService{
		tx:             tx,
		couponRepo:     couponRepo,
		couponUserRepo: couponUserRepo,
		coordinator:    coordinator,
		warmer:         warmer,
		now:            time.Now,
	}
}

// Create 创建优惠券并预热准入名额
func (s *CouponAdminService) Create(ctx context.Context, input CreateCouponInput) (*models.Coupon, error) {
	coupon := &models.Coupon{
		Name:              strings.TrimSpace(input.Name),
		TotalQuantity:     input.TotalQuantity,
		AvailableQuantity: input.TotalQuantity,
		DiscountAmount:    input.DiscountAmount,
		Status:            constants.CouponStatusActive,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		IsActive:          true,
	}
	if err := coupon.Validate(); err != nil {
		return nil, err
	}
	if coupon.DiscountAmount.IsNegative() {
		return nil, models.ErrCouponQuantityInvalid
	}
	if err := s.couponRepo.Create(coupon); err != nil {
		return nil, err
	}
	logger.Infow("coupon_created", "coupon_id", coupon.ID, "total_quantity", coupon.TotalQuantity)
	s.rewarm(ctx, coupon)
	return coupon, nil
}

// Disable 停用优惠券，准入门随即拒绝新请求
func (s *CouponAdminService) Disable(ctx context.Context, couponID uint) (*models.Coupon, error) {
	if couponID == 0 {
		return nil, ErrCouponIDRequired
	}
	var disabled *models.Coupon
	err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		couponRepo := s.couponRepo.WithTx(tx)
		coupon, err := couponRepo.GetByIDForUpdate(couponID)
		if err != nil {
			return err
		}
		if coupon == nil {
			return ErrCouponNotFound
		}
		coupon.Status = constants.CouponStatusDisabled
		if err := couponRepo.Update(coupon); err != nil {
			return err
		}
		disabled = coupon
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("coupon_disabled", "coupon_id", couponID)
	s.rewarm(ctx, disabled)
	return disabled, nil
}

// RevokeCouponUser 撤销未使用的用户券并回补一张库存
// 记录保留，(coupon, user) 再次申请仍判重
func (s *CouponAdminService) RevokeCouponUser(ctx context.Context, couponUserID uint) (*models.CouponUser, error) {
	keys, err := lock.CouponUserResource(couponUserID)
	if err != nil {
		return nil, err
	}
	return lock.WithLock(ctx, s.coordinator, keys, s.coordinator.Options().Wait, s.coordinator.Options().Lease,
		func(ctx context.Context) (*models.CouponUser, error) {
			var revoked *models.CouponUser
			err := s.tx.InTx(ctx, func(tx *gorm.DB) error {
				couponUserRepo := s.couponUserRepo.WithTx(tx)
				couponRepo := s.couponRepo.WithTx(tx)
				couponUser, err := couponUserRepo.GetByIDForUpdate(couponUserID)
				if err != nil {
					return err
				}
				if couponUser == nil {
					return ErrCouponUserNotFound
				}
				if err := couponUser.Revoke(s.now()); err != nil {
					return err
				}
				coupon, err := couponRepo.GetByIDForUpdate(couponUser.CouponID)
				if err != nil {
					return err
				}
				if coupon == nil {
					return ErrCouponNotFound
				}
				if err := coupon.IncreaseQuantity(); err != nil {
					return err
				}
				if err := couponUserRepo.Update(couponUser); err != nil {
					return err
				}
				if err := couponRepo.Update(coupon); err != nil {
					return err
				}
				revoked = couponUser
				return nil
			})
			if err != nil {
				return nil, err
			}
			invalidateCouponSnapshot(ctx, revoked.CouponID)
			logger.Infow("coupon_user_revoked",
				"coupon_user_id", revoked.ID,
				"coupon_id", revoked.CouponID,
				"user_id", revoked.UserID,
			)
			return revoked, nil
		})
}

// ListCouponUsers 分页查询某券的发放记录
func (s *CouponAdminService) ListCouponUsers(couponID uint, page, pageSize int) ([]models.CouponUser, int64, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return s.couponUserRepo.ListByCoupon(couponID, page, pageSize)
}

// WarmUp 重新预热全部可发放优惠券
func (s *CouponAdminService) WarmUp(ctx context.Context) (int, error) {
	if s.warmer == nil {
		return 0, nil
	}
	return s.warmer.WarmUp(ctx)
}

func (s *CouponAdminService) rewarm(ctx context.Context, coupon *models.Coupon) {
	invalidateCouponSnapshot(ctx, coupon.ID)
	if s.warmer == nil {
		return
	}
	if err := s.warmer.WarmCoupon(ctx, coupon); err != nil {
		logger.Warnw("coupon_stock_rewarm_failed", "coupon_id", coupon.ID, "error", err)
	}
}
