package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliate_order_v1/internal/api/dto"
	"affiliate_order_v1/internal/middleware"
	"affiliate_order_v1/internal/service"
)

// OrderController 订单控制器（webhook 入口 + 商户订单查询）
type OrderController struct {
	svc *service.OrderService
}

// NewOrderController 创建订单控制器
func NewOrderController(svc *service.OrderService) *OrderController {
	return &OrderController{svc: svc}
}

// ==================== Webhook ====================

// Webhook 接收订单 webhook
// 新订单返回 201，重投的订单返回 200 并带 duplicate=true
// @Summary 订单 webhook
// @Tags Webhook
// @Accept json
// @Produce json
// @Param request body dto.WebhookRequest true "订单"
// @Success 201 {object} dto.WebhookResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/webhook [post]
func (c *OrderController) Webhook(ctx *gin.Context) {
	var req dto.WebhookRequest
	if err := ctx.ShouldBindBodyWithJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	var raw []byte
	if body, ok := ctx.Get(gin.BodyBytesKey); ok {
		raw, _ = body.([]byte)
	}

	result, err := c.svc.ProcessOrder(ctx.Request.Context(), service.ProcessOrderInput{
		OrderID:        req.OrderID,
		MerchantDomain: req.MerchantDomain,
		CustomerEmail:  req.CustomerEmail,
		DiscountCode:   req.DiscountCode,
		SubtotalPrice:  string(req.SubtotalPrice),
		RawPayload:     raw,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	status := http.StatusCreated
	message := "订单已接收"
	if result.Duplicate {
		status = http.StatusOK
		message = "订单已存在"
	}

	ctx.JSON(status, gin.H{
		"success": true,
		"code":    0,
		"message": message,
		"data": dto.WebhookResponse{
			OrderResponse: dto.NewOrderResponse(result.Order),
			Duplicate:     result.Duplicate,
		},
	})
}

// ==================== 订单列表 ====================

// List 商户订单列表
// @Summary 订单列表
// @Tags Merchant
// @Produce json
// @Security BearerAuth
// @Param affiliate_id query int false "推广员 ID"
// @Param payout_status query string false "unpaid / paid"
// @Success 200 {object} dto.ListOrdersResponse
// @Router /api/merchants/me/orders [get]
func (c *OrderController) List(ctx *gin.Context) {
	var req dto.ListOrdersRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		respondBindError(ctx, err)
		return
	}

	orders, total, err := c.svc.ListOrders(ctx.Request.Context(), middleware.GetMerchantID(ctx), service.ListOrdersInput{
		AffiliateID:  req.AffiliateID,
		PayoutStatus: req.PayoutStatus,
		Page:         req.Page,
		PageSize:     req.PageSize,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	list := make([]*dto.OrderResponse, len(orders))
	for i := range orders {
		list[i] = dto.NewOrderResponse(&orders[i])
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": dto.ListOrdersResponse{
			Total:    total,
			Page:     req.Page,
			PageSize: req.PageSize,
			List:     list,
		},
	})
}
