package repository

import (
	"context"

	"gorm.io/gorm"
)

// Transactor 显式事务边界
type Transactor interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormTransactor GORM 实现
type GormTransactor struct {
	db *gorm.DB
}

// NewTransactor 创建事务执行器
func NewTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// InTx 在新事务中执行 fn，fn 返回错误时回滚
func (t *GormTransactor) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return t.db.WithContext(ctx).Transaction(fn)
}
