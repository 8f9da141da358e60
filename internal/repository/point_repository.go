package repository

import (
	"errors"
	"time"

	"github.com/couponflow/internal/models"

	"gorm.io/gorm"
)

// PointRepository 积分账户数据访问接口
type PointRepository interface {
	GetByUserID(userID uint) (*models.PointAccount, error)
	Create(account *models.PointAccount) error
	UpdateWithVersion(account *models.PointAccount) error
	WithTx(tx *gorm.DB) PointRepository
}

// GormPointRepository GORM 实现
type GormPointRepository struct {
	db *gorm.DB
}

// NewPointRepository 创建积分仓库
func NewPointRepository(db *gorm.DB) *GormPointRepository {
	return &GormPointRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPointRepository) WithTx(tx *gorm.DB) PointRepository {
	if tx == nil {
		return r
	}
	return &GormPointRepository{db: tx}
}

// GetByUserID 获取用户积分账户
func (r *GormPointRepository) GetByUserID(userID uint) (*models.PointAccount, error) {
	var account models.PointAccount
	if err := r.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Create 创建积分账户
func (r *GormPointRepository) Create(account *models.PointAccount) error {
	return r.db.Create(account).Error
}

// UpdateWithVersion 按读取时的版本号更新余额，版本不一致返回 ErrVersionConflict
func (r *GormPointRepository) UpdateWithVersion(account *models.PointAccount) error {
	now := time.Now()
	result := r.db.Model(&models.PointAccount{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"balance":    account.Balance,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrVersionConflict
	}
	account.Version++
	account.UpdatedAt = now
	return nil
}
