package service

import (
	"context"

	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/models"
	"github.com/couponflow/internal/repository"
	"github.com/couponflow/internal/retry"

	"gorm.io/gorm"
)

// PointService 积分账户服务（版本号乐观锁）
type PointService struct {
	executor  *retry.Executor
	pointRepo repository.PointRepository
}

// NewPointService 创建积分服务
func NewPointService(executor *retry.Executor, pointRepo repository.PointRepository) *PointService {
	return &PointService{executor: executor, pointRepo: pointRepo}
}

// GetAccount 查询积分账户
func (s *PointService) GetAccount(userID uint) (*models.PointAccount, error) {
	if userID == 0 {
		return nil, ErrUserIDRequired
	}
	account, err := s.pointRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrPointAccountNotFound
	}
	return account, nil
}

// Adjust 调整积分余额，delta 为正增加、为负扣减
// 正向调整在账户不存在时自动开户
func (s *PointService) Adjust(ctx context.Context, userID uint, delta int64) (*models.PointAccount, error) {
	if userID == 0 {
		return nil, ErrUserIDRequired
	}
	if delta == 0 {
		return nil, ErrPointsInvalid
	}
	account, err := retry.Do(ctx, s.executor, func(ctx context.Context, tx *gorm.DB) (*models.PointAccount, error) {
		repo := s.pointRepo.WithTx(tx)
		account, err := repo.GetByUserID(userID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			if delta < 0 {
				return nil, ErrPointAccountNotFound
			}
			account = &models.PointAccount{UserID: userID, Balance: delta}
			if err := repo.Create(account); err != nil {
				if repository.IsUniqueViolation(err) {
					// 并发开户，按版本冲突重试
					return nil, models.ErrVersionConflict
				}
				return nil, err
			}
			return account, nil
		}
		if delta > 0 {
			err = account.Credit(delta)
		} else {
			err = account.Deduct(-delta)
		}
		if err != nil {
			return nil, err
		}
		if err := repo.UpdateWithVersion(account); err != nil {
			return nil, err
		}
		return account, nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("point_account_adjusted", "user_id", userID, "delta", delta, "balance", account.Balance)
	return account, nil
}
