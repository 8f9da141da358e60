package repository

import (
	"errors"
	"time"

	"github.com/couponflow/internal/models"

	"gorm.io/gorm"
)

// ProductRepository 商品数据访问接口（仅库存相关）
type ProductRepository interface {
	GetByID(id uint) (*models.Product, error)
	ListByIDsForUpdate(ids []uint) ([]models.Product, error)
	Create(product *models.Product) error
	UpdateStockWithVersion(product *models.Product) error
	WithTx(tx *gorm.DB) ProductRepository
}

// GormProductRepository GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProductRepository) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &GormProductRepository{db: tx}
}

// GetByID 根据ID获取商品
func (r *GormProductRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// ListByIDsForUpdate 按ID升序加锁读取商品
func (r *GormProductRepository) ListByIDsForUpdate(ids []uint) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	var products []models.Product
	if err := forUpdate(r.db).Where("id IN ?", ids).Order("id asc").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Create 创建商品
func (r *GormProductRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}

// UpdateStockWithVersion 按版本号更新库存
func (r *GormProductRepository) UpdateStockWithVersion(product *models.Product) error {
	now := time.Now()
	result := r.db.Model(&models.Product{}).
		Where("id = ? AND version = ?", product.ID, product.Version).
		Updates(map[string]interface{}{
			"stock":      product.Stock,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrVersionConflict
	}
	product.Version++
	product.UpdatedAt = now
	return nil
}
