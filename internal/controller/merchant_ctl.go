package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliate_order_v1/internal/api/dto"
	"affiliate_order_v1/internal/middleware"
	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/internal/service"
)

// ==================== MerchantController 商户控制器 ====================

// MerchantController 商户控制器
type MerchantController struct {
	merchantService *service.MerchantService
	statsService    *service.StatsService
}

// NewMerchantController 创建商户控制器
func NewMerchantController(merchantService *service.MerchantService, statsService *service.StatsService) *MerchantController {
	return &MerchantController{
		merchantService: merchantService,
		statsService:    statsService,
	}
}

// Register 商户注册
// @Summary 商户注册
// @Tags Merchant
// @Accept json
// @Produce json
// @Param request body dto.MerchantRequest true "商户信息"
// @Success 201 {object} dto.MerchantResponse
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/merchants [post]
func (c *MerchantController) Register(ctx *gin.Context) {
	var req dto.MerchantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	merchant, err := c.merchantService.Register(ctx.Request.Context(), service.RegisterMerchantInput{
		Domain: req.Domain,
		Name:   req.Name,
		Email:  req.Email,
		APIKey: req.APIKey,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "注册成功",
		"data":    dto.NewMerchantResponse(merchant),
	})
}

// Token 邮箱 + API Key 换取访问 Token
// @Summary 获取访问 Token
// @Tags Merchant
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "凭证"
// @Success 200 {object} dto.TokenResponse
// @Failure 401 {object} map[string]interface{}
// @Router /api/merchants/token [post]
func (c *MerchantController) Token(ctx *gin.Context) {
	var req dto.TokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	result, err := c.merchantService.Login(ctx.Request.Context(), req.Email, req.APIKey)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "登录成功",
		"data": dto.TokenResponse{
			AccessToken: result.AccessToken,
			TokenType:   "Bearer",
			ExpiresAt:   result.ExpiresAt,
			Merchant:    dto.NewMerchantResponse(result.Merchant),
		},
	})
}

// Me 当前商户
// @Summary 当前商户信息
// @Tags Merchant
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.MerchantResponse
// @Router /api/merchants/me [get]
func (c *MerchantController) Me(ctx *gin.Context) {
	merchant, err := c.merchantService.GetByID(ctx.Request.Context(), middleware.GetMerchantID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": dto.NewMerchantResponse(merchant),
	})
}

// Update 全量更新当前商户
// @Summary 更新商户信息
// @Tags Merchant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.MerchantRequest true "商户信息"
// @Success 200 {object} dto.MerchantResponse
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/merchants/me [put]
func (c *MerchantController) Update(ctx *gin.Context) {
	var req dto.MerchantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	merchant, err := c.merchantService.Update(ctx.Request.Context(), middleware.GetMerchantID(ctx), service.UpdateMerchantInput{
		Domain: req.Domain,
		Name:   req.Name,
		Email:  req.Email,
		APIKey: req.APIKey,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "更新成功",
		"data":    dto.NewMerchantResponse(merchant),
	})
}

// Lookup 按邮箱查询商户
// 邮箱格式错误与不存在同样返回 404
// @Summary 按邮箱查询商户
// @Tags Merchant
// @Produce json
// @Security BearerAuth
// @Param email query string true "邮箱"
// @Success 200 {object} dto.MerchantResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/merchants/lookup [get]
func (c *MerchantController) Lookup(ctx *gin.Context) {
	var req dto.LookupRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	merchant, err := c.merchantService.FindByEmail(ctx.Request.Context(), req.Email)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if merchant == nil {
		respondError(ctx, service.ErrMerchantNotFound)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": dto.NewMerchantResponse(merchant),
	})
}

// Stats 订单统计
// @Summary 订单统计
// @Tags Merchant
// @Produce json
// @Security BearerAuth
// @Param from query string true "开始日期 2026-01-01"
// @Param to query string true "结束日期（含）"
// @Success 200 {object} dto.StatsResponse
// @Failure 422 {object} map[string]interface{}
// @Router /api/merchants/me/stats [get]
func (c *MerchantController) Stats(ctx *gin.Context) {
	var req dto.StatsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	stats, err := c.statsService.OrderStats(ctx.Request.Context(), middleware.GetMerchantID(ctx), req.From, req.To)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": dto.StatsResponse{
			From:           stats.From,
			To:             stats.To,
			Count:          stats.Count,
			Revenue:        model.FormatAmount(stats.Revenue),
			CommissionOwed: model.FormatAmount(stats.CommissionOwed),
		},
	})
}
