// Package queue 佣金结算任务队列
//
// 至少一次投递：任务出队后进入处理中并带租约，Ack 之前进程崩溃或租约过期，
// 任务会被重新投递。消费方必须幂等。
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// TaskTypePayoutOrder 单个订单佣金结算
const TaskTypePayoutOrder = "payout_order"

// ErrClosed 队列已关闭
var ErrClosed = errors.New("queue closed")

// Task 队列任务
type Task struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// Delivery 一次出队投递，Ack/Retry 时原样传回
type Delivery struct {
	Task    Task
	receipt string
}

// Stats 队列深度
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Dead       int64 `json:"dead"`
}

// Enqueuer 只需要入队的一方（PayoutService）依赖这个接口
type Enqueuer interface {
	Enqueue(ctx context.Context, task Task) error
}

// Queue 任务队列
type Queue interface {
	Enqueuer
	// Dequeue 取出一个任务，没有任务时返回 (nil, nil)
	Dequeue(ctx context.Context) (*Delivery, error)
	// Ack 处理成功，删除任务
	Ack(ctx context.Context, d *Delivery) error
	// Retry 处理失败，attempts+1 后重新入队；超过最大次数进入死信，返回 dead=true
	Retry(ctx context.Context, d *Delivery, cause error) (dead bool, err error)
	// Bury 不可重试的错误，直接进入死信
	Bury(ctx context.Context, d *Delivery, cause error) error
	// Reap 将租约过期的任务放回待处理队列，返回数量
	Reap(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

func encodeTask(task Task) (string, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeTask(payload string) (Task, error) {
	var task Task
	err := json.Unmarshal([]byte(payload), &task)
	return task, err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
