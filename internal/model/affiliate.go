package model

import (
	"gorm.io/gorm"
)

// Affiliate 推广员
// 软删除：历史订单保留 affiliate_id，删除后不再参与折扣码匹配
type Affiliate struct {
	BaseModel
	MerchantID     int64          `gorm:"not null;uniqueIndex:idx_affiliate_merchant_code,priority:1" json:"merchant_id"`
	UserID         int64          `gorm:"index;not null" json:"user_id"`
	CommissionRate float64        `gorm:"not null" json:"commission_rate"`
	DiscountCode   string         `gorm:"size:64;not null;uniqueIndex:idx_affiliate_merchant_code,priority:2" json:"discount_code"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联
	Merchant *Merchant `gorm:"foreignKey:MerchantID" json:"-"`
}

func (Affiliate) TableName() string {
	return "affiliates"
}

// CommissionFor 按当前佣金率计算佣金（分），四舍五入到分
func (a *Affiliate) CommissionFor(subtotal int64) int64 {
	return MulRate(subtotal, a.CommissionRate)
}
