package models

import "time"

// Product 商品（仅保留结算涉及的库存字段）
type Product struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                   // 主键
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`                 // 名称
	Price     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"price"`     // 单价
	Stock     int       `gorm:"not null;default:0" json:"stock"`                        // 库存
	IsActive  bool      `gorm:"not null;index" json:"is_active"`                        // 是否上架
	Version   int64     `gorm:"not null;default:0" json:"-"`                            // 版本号
	CreatedAt time.Time `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                             // 更新时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// DecreaseStock 扣减库存
func (p *Product) DecreaseStock(quantity int) error {
	if quantity <= 0 {
		return ErrProductQuantityInvalid
	}
	if !p.IsActive {
		return ErrProductInactive
	}
	if p.Stock < quantity {
		return ErrProductStockInsufficient
	}
	p.Stock -= quantity
	return nil
}

// IncreaseStock 回补库存
func (p *Product) IncreaseStock(quantity int) error {
	if quantity <= 0 {
		return ErrProductQuantityInvalid
	}
	p.Stock += quantity
	return nil
}
