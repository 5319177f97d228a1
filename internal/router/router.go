package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"affiliate_order_v1/internal/controller"
	"affiliate_order_v1/internal/metrics"
	"affiliate_order_v1/internal/middleware"
	"affiliate_order_v1/internal/queue"
)

// Controllers 路由依赖的控制器
type Controllers struct {
	Order     *controller.OrderController
	Merchant  *controller.MerchantController
	Affiliate *controller.AffiliateController
}

// Options 路由选项
type Options struct {
	// 同一推广员两次结算请求的最小间隔，<= 0 不限制
	PayoutCooldown time.Duration
	// 健康检查时上报队列深度，可为空
	Queue queue.Queue
}

// NewEngine 创建 gin 引擎并挂载全局中间件
func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(metrics.Middleware())
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctls *Controllers, opts Options) {
	// 1. 运维路由
	r.GET("/healthz", healthz(opts.Queue))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	// 接口文档：swag init 生成 docs 后访问 /swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 2. API 路由组
	api := r.Group("/api")
	{
		// POST /api/webhook
		api.POST("/webhook", ctls.Order.Webhook)

		merchants := api.Group("/merchants")
		{
			// 公开接口
			merchants.POST("", ctls.Merchant.Register)
			merchants.POST("/token", ctls.Merchant.Token)

			// 需要商户 Token
			authed := merchants.Group("", middleware.JWTAuth())
			{
				authed.GET("/lookup", ctls.Merchant.Lookup)
				authed.GET("/me", ctls.Merchant.Me)
				authed.PUT("/me", ctls.Merchant.Update)
				authed.GET("/me/stats", ctls.Merchant.Stats)
				authed.GET("/me/orders", ctls.Order.List)

				affiliates := authed.Group("/me/affiliates")
				{
					affiliates.POST("", ctls.Affiliate.Create)
					affiliates.GET("", ctls.Affiliate.List)
					affiliates.GET("/:id", ctls.Affiliate.Get)
					affiliates.DELETE("/:id", ctls.Affiliate.Delete)
					affiliates.GET("/:id/payouts", ctls.Affiliate.Payouts)

					// 结算按推广员冷却
					limiter := middleware.NewCooldownLimiter()
					affiliates.POST("/:id/payout", middleware.PayoutCooldown(limiter, opts.PayoutCooldown), ctls.Affiliate.Payout)
				}
			}
		}
	}
}

// healthz 存活检查，队列不可用时返回 503
func healthz(q queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		if q == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		stats, err := q.Stats(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"queue":  stats,
		})
	}
}
