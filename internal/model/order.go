package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== 结算状态常量 ====================

// PayoutStatus 佣金结算状态，unpaid → paid 单向
const (
	PayoutStatusUnpaid = "unpaid" // 未结算
	PayoutStatusPaid   = "paid"   // 已结算
)

// ==================== Order 订单 ====================

// Order 订单
// (merchant_id, external_order_id) 唯一，用于 webhook 重投去重
type Order struct {
	ID              int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID      int64  `gorm:"not null;uniqueIndex:idx_order_merchant_external,priority:1;index" json:"merchant_id"`
	ExternalOrderID string `gorm:"size:128;not null;uniqueIndex:idx_order_merchant_external,priority:2" json:"order_id"`
	AffiliateID     *int64 `gorm:"index" json:"affiliate_id"`
	CustomerEmail   string `gorm:"size:255" json:"customer_email"`

	// 金额（分为单位存储）
	SubtotalAmount int64 `gorm:"not null;default:0" json:"-"`
	CommissionOwed int64 `gorm:"not null;default:0" json:"-"`

	// 结算
	PayoutStatus string     `gorm:"size:16;index;not null;default:unpaid" json:"payout_status"`
	DiscountCode *string    `gorm:"size:64" json:"discount_code"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`

	// Webhook 原始数据
	RawPayload datatypes.JSON `json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Merchant  *Merchant  `gorm:"foreignKey:MerchantID" json:"-"`
	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"-"`
}

func (*Order) TableName() string {
	return "orders"
}

// IsPaid 佣金是否已结算
func (o *Order) IsPaid() bool {
	return o.PayoutStatus == PayoutStatusPaid
}

// HasAffiliate 是否归属推广员
func (o *Order) HasAffiliate() bool {
	return o.AffiliateID != nil
}
