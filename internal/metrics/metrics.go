// Package metrics Prometheus 指标
// 指标为包级变量，进程内只注册一次
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ==================== HTTP 指标 ====================

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// ==================== 业务指标 ====================

var (
	OrdersIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_ingested_total",
			Help: "Webhook orders by ingestion result",
		},
		[]string{"result"}, // created / duplicate / rejected / failed
	)
	CommissionCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commission_cents_total",
		Help: "Commission attributed to affiliates, in cents",
	})
	PayoutTasksEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_tasks_enqueued_total",
		Help: "Payout tasks scheduled",
	})
	PayoutTasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_tasks_processed_total",
			Help: "Payout tasks handled by workers",
		},
		[]string{"result"}, // settled / retried / dead
	)
	PayoutCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_cents_total",
		Help: "Commission settled, in cents",
	})
	QueueReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_queue_reaped_total",
		Help: "Expired payout leases moved back to pending",
	})
)

// 结果标签
const (
	ResultCreated   = "created"
	ResultDuplicate = "duplicate"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
	ResultSettled   = "settled"
	ResultRetried   = "retried"
	ResultDead      = "dead"
)

// RecordOrder 记录一次订单入库结果
func RecordOrder(result string, commission int64) {
	OrdersIngested.WithLabelValues(result).Inc()
	if commission > 0 {
		CommissionCents.Add(float64(commission))
	}
}

// RecordPayoutTask 记录一次结算任务结果
func RecordPayoutTask(result string) {
	PayoutTasksProcessed.WithLabelValues(result).Inc()
}

// ==================== Gin 中间件 ====================

// Middleware HTTP 请求指标
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// 使用路由模板，避免路径参数撑爆标签基数
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
