package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"affiliate_order_v1/internal/model"
)

// ==================== Webhook ====================

// Amount 金额，JSON 中既可以是字符串 "12.34" 也可以是数字 12.34
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("subtotal_price must be a string or a number")
	}
	*a = Amount(n.String())
	return nil
}

// WebhookRequest 订单 webhook
// 字段校验在 OrderService 中完成，这里只做结构解析
type WebhookRequest struct {
	OrderID        string `json:"order_id"`
	MerchantDomain string `json:"merchant_domain"`
	CustomerEmail  string `json:"customer_email"`
	DiscountCode   string `json:"discount_code"`
	SubtotalPrice  Amount `json:"subtotal_price"`
}

// WebhookResponse webhook 处理结果，订单字段平铺在 data 下
type WebhookResponse struct {
	*OrderResponse
	Duplicate bool `json:"duplicate"`
}

// ==================== 订单 ====================

// OrderResponse 订单
type OrderResponse struct {
	ID             int64      `json:"id"`
	OrderID        string     `json:"order_id"`
	MerchantID     int64      `json:"merchant_id"`
	AffiliateID    *int64     `json:"affiliate_id"`
	CustomerEmail  string     `json:"customer_email"`
	DiscountCode   *string    `json:"discount_code"`
	SubtotalPrice  string     `json:"subtotal_price"`
	CommissionOwed string     `json:"commission_owed"`
	PayoutStatus   string     `json:"payout_status"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewOrderResponse model → 响应
func NewOrderResponse(o *model.Order) *OrderResponse {
	if o == nil {
		return nil
	}
	return &OrderResponse{
		ID:             o.ID,
		OrderID:        o.ExternalOrderID,
		MerchantID:     o.MerchantID,
		AffiliateID:    o.AffiliateID,
		CustomerEmail:  o.CustomerEmail,
		DiscountCode:   o.DiscountCode,
		SubtotalPrice:  model.FormatAmount(o.SubtotalAmount),
		CommissionOwed: model.FormatAmount(o.CommissionOwed),
		PayoutStatus:   o.PayoutStatus,
		PaidAt:         o.PaidAt,
		CreatedAt:      o.CreatedAt,
	}
}

// ListOrdersRequest 订单列表请求
type ListOrdersRequest struct {
	AffiliateID  int64  `form:"affiliate_id" binding:"omitempty,min=1"`
	PayoutStatus string `form:"payout_status"` // unpaid, paid
	Page         int    `form:"page,default=1" binding:"min=1"`
	PageSize     int    `form:"page_size,default=20" binding:"min=1,max=100"`
}

// ListOrdersResponse 订单列表响应
type ListOrdersResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	List     []*OrderResponse `json:"list"`
}

// ==================== 统计 ====================

// StatsRequest 统计查询，日期格式 2026-01-01
type StatsRequest struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// StatsResponse 订单统计
type StatsResponse struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Count          int64  `json:"count"`
	Revenue        string `json:"revenue"`
	CommissionOwed string `json:"commission_owed"`
}
