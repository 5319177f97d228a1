package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"affiliate_order_v1/internal/metrics"
	"affiliate_order_v1/internal/queue"
	"affiliate_order_v1/internal/service"
	"affiliate_order_v1/pkg/logger"
)

// Settler 单个订单结算（PayoutService 实现）
type Settler interface {
	SettleOrder(ctx context.Context, taskID string, orderID int64) error
}

// ==================== PayoutWorker 佣金结算消费者 ====================

// PayoutWorker 从队列消费结算任务
// 每个任务最多同时被一个 worker 处理；失败重试，永久错误直接进入死信
type PayoutWorker struct {
	queue   queue.Queue
	settler Settler
	cron    *cron.Cron

	// 并发控制
	concurrency   int
	pollInterval  time.Duration
	settleTimeout time.Duration
	reapSpec      string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPayoutWorker 创建结算消费者
func NewPayoutWorker(q queue.Queue, settler Settler) *PayoutWorker {
	return &PayoutWorker{
		queue:         q,
		settler:       settler,
		cron:          cron.New(cron.WithSeconds()),
		concurrency:   5,
		pollInterval:  500 * time.Millisecond,
		settleTimeout: 30 * time.Second,
		reapSpec:      "0 * * * * *",
	}
}

// SetConcurrency 设置并发参数
func (w *PayoutWorker) SetConcurrency(concurrency int, pollInterval time.Duration) {
	if concurrency > 0 {
		w.concurrency = concurrency
	}
	if pollInterval > 0 {
		w.pollInterval = pollInterval
	}
}

// SetReapSpec 设置租约回收的 cron 表达式（秒级）
func (w *PayoutWorker) SetReapSpec(spec string) {
	if spec != "" {
		w.reapSpec = spec
	}
}

// Start 启动 worker 和租约回收
func (w *PayoutWorker) Start() error {
	if _, err := w.cron.AddFunc(w.reapSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		w.ReapNow(ctx)
	}); err != nil {
		return fmt.Errorf("注册租约回收任务失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.loop(ctx, i)
	}

	w.cron.Start()
	logger.L().Infow("[PayoutWorker] 已启动",
		"concurrency", w.concurrency,
		"poll_interval", w.pollInterval.String(),
		"reap_spec", w.reapSpec,
	)
	return nil
}

// Stop 停止拉取新任务，等待处理中的任务完成
func (w *PayoutWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	cronCtx := w.cron.Stop()
	w.wg.Wait()
	<-cronCtx.Done()
	logger.L().Infow("[PayoutWorker] 已停止")
}

func (w *PayoutWorker) loop(ctx context.Context, id int) {
	defer w.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		handled, err := w.ProcessOne(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			if handled {
				// 任务已处理，Ack/Retry/Bury 写回队列失败
				logger.L().Errorw("[PayoutWorker] 任务状态回写失败", "worker", id, "error", err)
			} else {
				logger.L().Errorw("[PayoutWorker] 拉取任务失败", "worker", id, "error", err)
			}
		}
		if handled && err == nil {
			continue
		}

		// 队列为空或出错时等待
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// ProcessOne 处理一个任务，队列为空时返回 false
// 返回的 error 只表示队列操作失败，结算失败通过重试/死信处理
func (w *PayoutWorker) ProcessOne(ctx context.Context) (bool, error) {
	d, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, nil
	}

	// 已出队的任务不受 Stop 影响，处理完再退出
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.settleTimeout)
	defer cancel()

	return true, w.handle(settleCtx, d)
}

func (w *PayoutWorker) handle(ctx context.Context, d *queue.Delivery) error {
	task := d.Task
	log := logger.L().With("task_id", task.ID, "order_id", task.OrderID, "attempts", task.Attempts)

	if task.Type != queue.TaskTypePayoutOrder {
		log.Errorw("[PayoutWorker] 未知任务类型，进入死信", "type", task.Type)
		metrics.RecordPayoutTask(metrics.ResultDead)
		return w.queue.Bury(ctx, d, fmt.Errorf("unknown task type %q", task.Type))
	}

	err := w.settler.SettleOrder(ctx, task.ID, task.OrderID)
	if err == nil {
		if ackErr := w.queue.Ack(ctx, d); ackErr != nil {
			// 租约到期后会重新投递，SettleOrder 幂等
			log.Warnw("[PayoutWorker] Ack 失败", "error", ackErr)
			return ackErr
		}
		metrics.RecordPayoutTask(metrics.ResultSettled)
		return nil
	}

	if service.IsPermanent(err) {
		log.Errorw("[PayoutWorker] 结算失败（不可重试），进入死信", "error", err)
		metrics.RecordPayoutTask(metrics.ResultDead)
		return w.queue.Bury(ctx, d, err)
	}

	dead, retryErr := w.queue.Retry(ctx, d, err)
	if retryErr != nil {
		log.Errorw("[PayoutWorker] 重新入队失败", "error", retryErr, "cause", err)
		return retryErr
	}
	if dead {
		log.Errorw("[PayoutWorker] 结算失败次数超限，进入死信", "error", err)
		metrics.RecordPayoutTask(metrics.ResultDead)
		return nil
	}

	log.Warnw("[PayoutWorker] 结算失败，稍后重试", "error", err)
	metrics.RecordPayoutTask(metrics.ResultRetried)
	return nil
}

// ==================== 手动触发 ====================

// ReapNow 立即回收过期租约
func (w *PayoutWorker) ReapNow(ctx context.Context) int {
	n, err := w.queue.Reap(ctx)
	if err != nil {
		logger.L().Errorw("[PayoutWorker] 回收过期租约失败", "error", err)
		return 0
	}
	if n > 0 {
		metrics.QueueReaped.Add(float64(n))
		logger.L().Warnw("[PayoutWorker] 回收过期租约", "count", n)
	}
	return n
}

// Drain 同步处理队列中所有任务，返回处理数量
func (w *PayoutWorker) Drain(ctx context.Context) (int, error) {
	count := 0
	for {
		handled, err := w.ProcessOne(ctx)
		if err != nil {
			return count, err
		}
		if !handled {
			return count, nil
		}
		count++
	}
}
