package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 结算冷却中间件 ====================

// PayoutCooldown 结算冷却中间件
// 按 商户 + 推广员 维度限流，需挂在 JWTAuth 之后
//
// 使用示例:
//
//	affiliates.POST("/:id/payout",
//	    middleware.PayoutCooldown(limiter, time.Minute),
//	    affiliateCtl.Payout,
//	)
//
// 处理失败（状态码 >= 400）时释放冷却，允许立即重试
func PayoutCooldown(limiter *CooldownLimiter, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if interval <= 0 {
			c.Next()
			return
		}

		affiliateID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || affiliateID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的推广员 ID",
			})
			c.Abort()
			return
		}

		key := PayoutKey(GetMerchantID(c), affiliateID)

		result := limiter.Check(key, interval)
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": retryAfterSeconds(result.RetryAfter),
				},
			})
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			limiter.Reset(key)
		}
	}
}

// ==================== 辅助函数 ====================

func retryAfterSeconds(d time.Duration) int {
	seconds := int(d.Seconds())
	if d > time.Duration(seconds)*time.Second {
		seconds++
	}
	return seconds
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := retryAfterSeconds(d)

	if seconds < 60 {
		return fmt.Sprintf("结算冷却中，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return fmt.Sprintf("结算冷却中，请 %d 分钟后重试", minutes)
	}

	return fmt.Sprintf("结算冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}
