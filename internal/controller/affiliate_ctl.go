package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliate_order_v1/internal/api/dto"
	"affiliate_order_v1/internal/middleware"
	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/internal/service"
)

// ==================== AffiliateController 推广员控制器 ====================

// AffiliateController 推广员控制器
type AffiliateController struct {
	merchantService  *service.MerchantService
	affiliateService *service.AffiliateService
	payoutService    *service.PayoutService
}

// NewAffiliateController 创建推广员控制器
func NewAffiliateController(
	merchantService *service.MerchantService,
	affiliateService *service.AffiliateService,
	payoutService *service.PayoutService,
) *AffiliateController {
	return &AffiliateController{
		merchantService:  merchantService,
		affiliateService: affiliateService,
		payoutService:    payoutService,
	}
}

// Create 创建推广员
// discount_code 为空时自动生成
// @Summary 创建推广员
// @Tags Affiliate
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateAffiliateRequest true "推广员信息"
// @Success 201 {object} dto.AffiliateResponse
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/merchants/me/affiliates [post]
func (c *AffiliateController) Create(ctx *gin.Context) {
	var req dto.CreateAffiliateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	merchant, err := c.merchantService.GetByID(ctx.Request.Context(), middleware.GetMerchantID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	affiliate, err := c.affiliateService.Register(ctx.Request.Context(), merchant, *req.CommissionRate, req.DiscountCode)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "创建成功",
		"data":    dto.NewAffiliateResponse(affiliate),
	})
}

// List 推广员列表
// @Summary 推广员列表
// @Tags Affiliate
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.AffiliateResponse
// @Router /api/merchants/me/affiliates [get]
func (c *AffiliateController) List(ctx *gin.Context) {
	affiliates, err := c.affiliateService.List(ctx.Request.Context(), middleware.GetMerchantID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	list := make([]*dto.AffiliateResponse, len(affiliates))
	for i := range affiliates {
		list[i] = dto.NewAffiliateResponse(&affiliates[i])
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": list,
	})
}

// Get 推广员详情
// @Summary 推广员详情
// @Tags Affiliate
// @Produce json
// @Security BearerAuth
// @Param id path int true "推广员 ID"
// @Success 200 {object} dto.AffiliateResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/merchants/me/affiliates/{id} [get]
func (c *AffiliateController) Get(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	affiliate, err := c.affiliateService.Get(ctx.Request.Context(), middleware.GetMerchantID(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": dto.NewAffiliateResponse(affiliate),
	})
}

// Delete 删除推广员（软删除）
// @Summary 删除推广员
// @Tags Affiliate
// @Produce json
// @Security BearerAuth
// @Param id path int true "推广员 ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/merchants/me/affiliates/{id} [delete]
func (c *AffiliateController) Delete(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	if err := c.affiliateService.Delete(ctx.Request.Context(), middleware.GetMerchantID(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "删除成功",
	})
}

// ==================== 结算 ====================

// Payout 结算推广员全部未结算佣金
// 只负责入队，实际结算异步完成
// @Summary 结算推广员佣金
// @Tags Affiliate
// @Produce json
// @Security BearerAuth
// @Param id path int true "推广员 ID"
// @Success 202 {object} dto.PayoutResponse
// @Failure 404 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Router /api/merchants/me/affiliates/{id}/payout [post]
func (c *AffiliateController) Payout(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	result, err := c.payoutService.PayoutForMerchant(ctx.Request.Context(), middleware.GetMerchantID(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{
		"code":    0,
		"message": "结算任务已提交",
		"data": dto.PayoutResponse{
			AffiliateID:     result.AffiliateID,
			Scheduled:       result.Scheduled,
			TaskIDs:         result.TaskIDs,
			TotalCommission: model.FormatAmount(result.TotalCommission),
		},
	})
}

// Payouts 推广员发放记录
// @Summary 发放记录
// @Tags Affiliate
// @Produce json
// @Security BearerAuth
// @Param id path int true "推广员 ID"
// @Success 200 {array} dto.PayoutRecordResponse
// @Router /api/merchants/me/affiliates/{id}/payouts [get]
func (c *AffiliateController) Payouts(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	records, err := c.payoutService.ListPayouts(ctx.Request.Context(), middleware.GetMerchantID(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	list := make([]*dto.PayoutRecordResponse, len(records))
	for i := range records {
		list[i] = dto.NewPayoutRecordResponse(&records[i])
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": list,
	})
}
