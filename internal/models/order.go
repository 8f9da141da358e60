package models

import "time"

// Order 结算订单
type Order struct {
	ID             uint       `gorm:"primarykey" json:"id"`                                               // 主键
	OrderNo        string     `gorm:"uniqueIndex;not null" json:"order_no"`                               // 订单编号
	UserID         uint       `gorm:"index;not null" json:"user_id"`                                      // 用户ID
	Status         string     `gorm:"index;not null" json:"status"`                                       // 订单状态
	SubtotalAmount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal_amount"`       // 商品小计
	CouponDiscount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"coupon_discount"`       // 优惠券抵扣
	PointsUsed     int64      `gorm:"not null;default:0" json:"points_used"`                              // 使用积分
	PointsDiscount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"points_discount"`       // 积分抵扣
	PayAmount      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"pay_amount"`            // 应付金额
	CouponUserID   *uint      `gorm:"index" json:"coupon_user_id,omitempty"`                              // 使用的用户券
	CanceledAt     *time.Time `gorm:"index" json:"canceled_at"`                                           // 取消时间
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                                            // 创建时间
	UpdatedAt      time.Time  `json:"updated_at"`                                                         // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// ProductIDs 返回订单项商品ID（可能重复）
func (o *Order) ProductIDs() []uint {
	ids := make([]uint, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
