package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"affiliate_order_v1/internal/service"
	"affiliate_order_v1/pkg/logger"
)

// ==================== 统一错误响应 ====================

// respondError 按错误类型映射 HTTP 状态码
func respondError(c *gin.Context, err error) {
	var (
		ve *service.ValidationError
		ce *service.ConflictError
		ne *service.NotFoundError
		se *service.StoreError
	)

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":    422,
			"message": "参数校验失败",
			"error":   ve.Fields,
		})
	case errors.Is(err, service.ErrInvalidArgument):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":    422,
			"message": err.Error(),
		})
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, gin.H{
			"code":    409,
			"message": ce.Error(),
			"error":   gin.H{ce.Field: "already in use"},
		})
	case errors.As(err, &ne):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": ne.Error(),
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": err.Error(),
		})
	default:
		// 存储层错误不向调用方暴露细节
		fields := []any{"path", c.FullPath(), "error", err}
		if errors.As(err, &se) {
			fields = append(fields, "op", se.Op)
		}
		logger.L().Errorw("[HTTP] 请求处理失败", fields...)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "服务暂时不可用，请稍后重试",
		})
	}
}

// respondBindError 请求体解析失败
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    400,
		"message": "参数错误: " + err.Error(),
	})
}

// parseIDParam 解析路径中的 :id
func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的 ID",
		})
		return 0, false
	}
	return id, true
}
