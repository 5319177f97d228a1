package dto

import (
	"time"

	"affiliate_order_v1/internal/model"
)

// ==================== 推广员 ====================

// CreateAffiliateRequest 创建推广员
// commission_rate 为小数，0.1 表示 10%
type CreateAffiliateRequest struct {
	CommissionRate *float64 `json:"commission_rate" binding:"required"`
	DiscountCode   string   `json:"discount_code"`
}

// AffiliateResponse 推广员
type AffiliateResponse struct {
	ID             int64     `json:"id"`
	MerchantID     int64     `json:"merchant_id"`
	UserID         int64     `json:"user_id"`
	CommissionRate float64   `json:"commission_rate"`
	DiscountCode   string    `json:"discount_code"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewAffiliateResponse model → 响应
func NewAffiliateResponse(a *model.Affiliate) *AffiliateResponse {
	if a == nil {
		return nil
	}
	return &AffiliateResponse{
		ID:             a.ID,
		MerchantID:     a.MerchantID,
		UserID:         a.UserID,
		CommissionRate: a.CommissionRate,
		DiscountCode:   a.DiscountCode,
		CreatedAt:      a.CreatedAt,
	}
}

// ==================== 结算 ====================

// PayoutResponse 结算请求结果
type PayoutResponse struct {
	AffiliateID     int64    `json:"affiliate_id"`
	Scheduled       int      `json:"scheduled"`
	TaskIDs         []string `json:"task_ids"`
	TotalCommission string   `json:"total_commission"`
}

// PayoutRecordResponse 佣金发放记录
type PayoutRecordResponse struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	AffiliateID int64     `json:"affiliate_id"`
	Amount      string    `json:"amount"`
	TaskID      string    `json:"task_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewPayoutRecordResponse model → 响应
func NewPayoutRecordResponse(r *model.PayoutRecord) *PayoutRecordResponse {
	return &PayoutRecordResponse{
		ID:          r.ID,
		OrderID:     r.OrderID,
		AffiliateID: r.AffiliateID,
		Amount:      model.FormatAmount(r.Amount),
		TaskID:      r.TaskID,
		CreatedAt:   r.CreatedAt,
	}
}
