package models

import "time"

// CouponUser 用户持有的优惠券
// (coupon_id, user_id) 唯一，撤销记录保留并计入已回补
type CouponUser struct {
	ID         uint       `gorm:"primarykey" json:"id"`                                                  // 主键
	CouponID   uint       `gorm:"not null;uniqueIndex:idx_coupon_users_pair,priority:1" json:"coupon_id"` // 优惠券ID
	UserID     uint       `gorm:"not null;index;uniqueIndex:idx_coupon_users_pair,priority:2" json:"user_id"`
	OrderID    *uint      `gorm:"index" json:"order_id,omitempty"` // 使用订单ID
	IssuedAt   time.Time  `gorm:"not null" json:"issued_at"`       // 发放时间
	UsedAt     *time.Time `json:"used_at,omitempty"`               // 使用时间
	ExpireDate time.Time  `gorm:"not null" json:"expire_date"`     // 过期时间
	IsUsed     bool       `gorm:"not null;default:false" json:"is_used"`
	RevokedAt  *time.Time `gorm:"index" json:"revoked_at,omitempty"` // 撤销时间
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (CouponUser) TableName() string {
	return "coupon_users"
}

// Use 核销
func (u *CouponUser) Use(orderID uint, now time.Time) error {
	if u.IsUsed {
		return ErrCouponUserAlreadyUsed
	}
	if u.RevokedAt != nil {
		return ErrCouponUserRevoked
	}
	if now.After(u.ExpireDate) {
		return ErrCouponUserExpired
	}
	usedAt := now
	u.OrderID = &orderID
	u.UsedAt = &usedAt
	u.IsUsed = true
	return nil
}

// CancelUsage 取消核销（订单取消补偿）
func (u *CouponUser) CancelUsage() error {
	if !u.IsUsed {
		return ErrCouponUserNotUsed
	}
	u.OrderID = nil
	u.UsedAt = nil
	u.IsUsed = false
	return nil
}

// Revoke 撤销未使用的券
func (u *CouponUser) Revoke(now time.Time) error {
	if u.RevokedAt != nil {
		return ErrCouponUserRevoked
	}
	if u.IsUsed {
		return ErrCouponUserAlreadyUsed
	}
	revokedAt := now
	u.RevokedAt = &revokedAt
	return nil
}
