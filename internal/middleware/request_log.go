package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"affiliate_order_v1/pkg/logger"
)

// HeaderRequestID 请求 ID Header
const HeaderRequestID = "X-Request-ID"

// ContextKeyRequestID 请求 ID Context Key
const ContextKeyRequestID = "request_id"

// RequestLogger 请求日志中间件
// 透传或生成 X-Request-ID，请求结束后记录一条结构化日志
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if merchantID := GetMerchantID(c); merchantID > 0 {
			fields = append(fields, "merchant_id", merchantID)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.L().Errorw("[HTTP] 请求失败", fields...)
		case status >= 400:
			logger.L().Warnw("[HTTP] 请求异常", fields...)
		default:
			logger.L().Infow("[HTTP] 请求完成", fields...)
		}
	}
}

// GetRequestID 从 Context 获取请求 ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}
