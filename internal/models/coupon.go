package models

import (
	"time"

	"github.com/couponflow/internal/constants"
)

// Coupon 优惠券（库存型）
type Coupon struct {
	ID                uint      `gorm:"primarykey" json:"id"`                                              // 主键
	Name              string    `gorm:"type:varchar(120);not null" json:"name"`                            // 名称
	TotalQuantity     int       `gorm:"not null" json:"total_quantity"`                                    // 发放总量
	AvailableQuantity int       `gorm:"not null" json:"available_quantity"`                                // 剩余可发放量
	DiscountAmount    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"`      // 固定抵扣金额
	Status            string    `gorm:"type:varchar(20);not null;index" json:"status"`                     // 状态
	StartDate         time.Time `gorm:"index;not null" json:"start_date"`                                  // 生效时间
	EndDate           time.Time `gorm:"index;not null" json:"end_date"`                                    // 失效时间
	IsActive          bool      `gorm:"not null" json:"is_active"`                                         // 是否启用
	CreatedAt         time.Time `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt         time.Time `json:"updated_at"`                                                        // 更新时间
}

// TableName 指定表名
func (Coupon) TableName() string {
	return "coupons"
}

// DecreaseQuantity 扣减一张库存，归零时切换为售罄
func (c *Coupon) DecreaseQuantity() error {
	if c.AvailableQuantity <= 0 {
		return ErrCouponOutOfStock
	}
	c.AvailableQuantity--
	if c.AvailableQuantity == 0 && c.Status == constants.CouponStatusActive {
		c.Status = constants.CouponStatusSoldOut
	}
	return nil
}

// IncreaseQuantity 回补一张库存（撤销/补偿路径）
func (c *Coupon) IncreaseQuantity() error {
	if c.AvailableQuantity >= c.TotalQuantity {
		return ErrCouponQuantityFull
	}
	c.AvailableQuantity++
	if c.Status == constants.CouponStatusSoldOut && c.AvailableQuantity > 0 {
		c.Status = constants.CouponStatusActive
	}
	return nil
}

// IsExpiredAt 判断在给定时间是否已过期
func (c *Coupon) IsExpiredAt(now time.Time) bool {
	return c.Status == constants.CouponStatusExpired || now.After(c.EndDate)
}

// ValidateIssuable 校验当前是否可发放，每种不满足条件对应不同错误
func (c *Coupon) ValidateIssuable(now time.Time) error {
	if !c.IsActive {
		return ErrCouponInactive
	}
	if c.Status == constants.CouponStatusDisabled {
		return ErrCouponDisabled
	}
	if now.Before(c.StartDate) {
		return ErrCouponNotStarted
	}
	if c.IsExpiredAt(now) {
		return ErrCouponExpired
	}
	if c.AvailableQuantity <= 0 || c.Status == constants.CouponStatusSoldOut {
		return ErrCouponOutOfStock
	}
	if c.Status != constants.CouponStatusActive {
		return ErrCouponStatusInvalid
	}
	return nil
}

// Validate 校验创建参数
func (c *Coupon) Validate() error {
	if c.TotalQuantity <= 0 || c.AvailableQuantity < 0 || c.AvailableQuantity > c.TotalQuantity {
		return ErrCouponQuantityInvalid
	}
	if !c.StartDate.Before(c.EndDate) {
		return ErrCouponPeriodInvalid
	}
	return nil
}
