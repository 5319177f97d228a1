package dto

import (
	"time"

	"affiliate_order_v1/internal/model"
)

// ==================== 商户注册 / 更新 ====================

// MerchantRequest 商户注册与更新共用
type MerchantRequest struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	APIKey string `json:"api_key"`
}

// ==================== Token ====================

// TokenRequest 换取访问 Token
type TokenRequest struct {
	Email  string `json:"email" binding:"required"`
	APIKey string `json:"api_key" binding:"required"`
}

// TokenResponse 访问 Token
type TokenResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Merchant    *MerchantResponse `json:"merchant"`
}

// ==================== 商户信息 ====================

// MerchantResponse 商户信息
type MerchantResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMerchantResponse model → 响应
func NewMerchantResponse(m *model.Merchant) *MerchantResponse {
	if m == nil {
		return nil
	}
	resp := &MerchantResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.DisplayName,
		Domain:    m.Domain,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.User != nil {
		resp.Email = m.User.Email
	}
	return resp
}

// LookupRequest 按邮箱查询商户
type LookupRequest struct {
	Email string `form:"email" binding:"required"`
}
