package task

import (
	"context"
	"time"

	"affiliate_order_v1/internal/queue"
	"affiliate_order_v1/pkg/logger"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台任务
// 管理范围：佣金结算消费、租约回收
type TaskManager struct {
	payoutWorker *PayoutWorker
	queue        queue.Queue
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Queue   queue.Queue
	Settler Settler
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	PayoutEnabled      bool
	PayoutConcurrency  int
	PayoutPollInterval time.Duration
	ReapSpec           string
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		PayoutEnabled:      true,
		PayoutConcurrency:  5,
		PayoutPollInterval: 500 * time.Millisecond,
		ReapSpec:           "0 * * * * *",
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{queue: deps.Queue}

	if cfg.PayoutEnabled && deps.Queue != nil && deps.Settler != nil {
		tm.payoutWorker = NewPayoutWorker(deps.Queue, deps.Settler)
		tm.payoutWorker.SetConcurrency(cfg.PayoutConcurrency, cfg.PayoutPollInterval)
		tm.payoutWorker.SetReapSpec(cfg.ReapSpec)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() error {
	logger.L().Infow("[TaskManager] 正在启动后台任务...")

	if tm.payoutWorker != nil {
		if err := tm.payoutWorker.Start(); err != nil {
			return err
		}
	}

	logger.L().Infow("[TaskManager] 后台任务已全部启动")
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	logger.L().Infow("[TaskManager] 正在停止后台任务...")

	if tm.payoutWorker != nil {
		tm.payoutWorker.Stop()
	}

	logger.L().Infow("[TaskManager] 后台任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerReap 立即回收过期租约
func (tm *TaskManager) TriggerReap(ctx context.Context) (int, error) {
	if tm.payoutWorker == nil {
		return 0, ErrTaskDisabled
	}
	return tm.payoutWorker.ReapNow(ctx), nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"payout": tm.payoutWorker != nil,
	}
}

// QueueStats 队列深度
func (tm *TaskManager) QueueStats(ctx context.Context) (queue.Stats, error) {
	if tm.queue == nil {
		return queue.Stats{}, ErrTaskDisabled
	}
	return tm.queue.Stats(ctx)
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
