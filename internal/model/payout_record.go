package model

import "time"

// PayoutRecord 佣金发放记录
// order_id 唯一：同一订单只能发放一次，重复投递的任务在此处被挡住
type PayoutRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64     `gorm:"uniqueIndex;not null" json:"order_id"`
	AffiliateID int64     `gorm:"index;not null" json:"affiliate_id"`
	MerchantID  int64     `gorm:"index;not null" json:"merchant_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	TaskID      string    `gorm:"size:64" json:"task_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (PayoutRecord) TableName() string {
	return "payout_records"
}
