package models

import "time"

// PointAccount 用户积分账户（乐观锁）
type PointAccount struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"` // 用户ID
	Balance   int64     `gorm:"not null;default:0" json:"balance"`   // 积分余额
	Version   int64     `gorm:"not null;default:0" json:"-"`         // 版本号
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (PointAccount) TableName() string {
	return "point_accounts"
}

// Deduct 扣减积分
func (a *PointAccount) Deduct(points int64) error {
	if points <= 0 {
		return ErrPointAmountInvalid
	}
	if a.Balance < points {
		return ErrPointInsufficient
	}
	a.Balance -= points
	return nil
}

// Credit 增加积分
func (a *PointAccount) Credit(points int64) error {
	if points <= 0 {
		return ErrPointAmountInvalid
	}
	a.Balance += points
	return nil
}
