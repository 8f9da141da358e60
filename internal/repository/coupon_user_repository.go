package repository

import (
	"errors"

	"github.com/couponflow/internal/models"

	"gorm.io/gorm"
)

// CouponUserRepository 用户券数据访问接口
type CouponUserRepository interface {
	GetByID(id uint) (*models.CouponUser, error)
	GetByIDForUpdate(id uint) (*models.CouponUser, error)
	GetByCouponAndUser(couponID, userID uint) (*models.CouponUser, error)
	CountByCoupon(couponID uint) (int64, error)
	ListByCoupon(couponID uint, page, pageSize int) ([]models.CouponUser, int64, error)
	Create(couponUser *models.CouponUser) error
	Update(couponUser *models.CouponUser) error
	WithTx(tx *gorm.DB) CouponUserRepository
}

// GormCouponUserRepository GORM 实现
type GormCouponUserRepository struct {
	db *gorm.DB
}

// NewCouponUserRepository 创建用户券仓库
func NewCouponUserRepository(db *gorm.DB) *GormCouponUserRepository {
	return &GormCouponUserRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponUserRepository) WithTx(tx *gorm.DB) CouponUserRepository {
	if tx == nil {
		return r
	}
	return &GormCouponUserRepository{db: tx}
}

// GetByID 根据ID获取用户券
func (r *GormCouponUserRepository) GetByID(id uint) (*models.CouponUser, error) {
	var couponUser models.CouponUser
	if err := r.db.First(&couponUser, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &couponUser, nil
}

// GetByIDForUpdate 加行锁读取用户券
func (r *GormCouponUserRepository) GetByIDForUpdate(id uint) (*models.CouponUser, error) {
	var couponUser models.CouponUser
	if err := forUpdate(r.db).First(&couponUser, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &couponUser, nil
}

// GetByCouponAndUser 幂等检查，撤销记录同样返回
func (r *GormCouponUserRepository) GetByCouponAndUser(couponID, userID uint) (*models.CouponUser, error) {
	var couponUser models.CouponUser
	err := r.db.Where("coupon_id = ? AND user_id = ?", couponID, userID).First(&couponUser).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &couponUser, nil
}

// CountByCoupon 统计某券的发放记录数（含已撤销）
func (r *GormCouponUserRepository) CountByCoupon(couponID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.CouponUser{}).Where("coupon_id = ?", couponID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListByCoupon 分页列出某券的发放记录，按发放顺序
func (r *GormCouponUserRepository) ListByCoupon(couponID uint, page, pageSize int) ([]models.CouponUser, int64, error) {
	query := r.db.Model(&models.CouponUser{}).Where("coupon_id = ?", couponID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var couponUsers []models.CouponUser
	if err := applyPagination(query.Order("id asc"), page, pageSize).Find(&couponUsers).Error; err != nil {
		return nil, 0, err
	}
	return couponUsers, total, nil
}

// Create 创建用户券
func (r *GormCouponUserRepository) Create(couponUser *models.CouponUser) error {
	return r.db.Create(couponUser).Error
}

// Update 更新用户券
func (r *GormCouponUserRepository) Update(couponUser *models.CouponUser) error {
	return r.db.Save(couponUser).Error
}
