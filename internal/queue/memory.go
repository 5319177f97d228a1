package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue 进程内队列（开发、测试）
// 不持久化，不需要租约回收
type MemoryQueue struct {
	ch          chan Task
	maxAttempts int

	mu         sync.Mutex
	processing int64
	dead       []Task
}

// NewMemoryQueue 创建内存队列
func NewMemoryQueue(capacity, maxAttempts int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &MemoryQueue{
		ch:          make(chan Task, capacity),
		maxAttempts: maxAttempts,
	}
}

// Enqueue 入队，队列满时阻塞直到 ctx 结束
func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case task := <-q.ch:
		q.mu.Lock()
		q.processing++
		q.mu.Unlock()
		return &Delivery{Task: task}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return nil, nil
	}
}

func (q *MemoryQueue) Ack(_ context.Context, _ *Delivery) error {
	q.mu.Lock()
	q.processing--
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Retry(ctx context.Context, d *Delivery, cause error) (bool, error) {
	next := d.Task
	next.Attempts++
	next.LastError = errString(cause)

	q.mu.Lock()
	q.processing--
	if next.Attempts >= q.maxAttempts {
		q.dead = append(q.dead, next)
		q.mu.Unlock()
		return true, nil
	}
	q.mu.Unlock()

	return false, q.Enqueue(ctx, next)
}

// Bury 直接进入死信
func (q *MemoryQueue) Bury(_ context.Context, d *Delivery, cause error) error {
	next := d.Task
	next.Attempts++
	next.LastError = errString(cause)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.processing--
	q.dead = append(q.dead, next)
	return nil
}

// Reap 内存队列没有租约
func (q *MemoryQueue) Reap(_ context.Context) (int, error) {
	return 0, nil
}

func (q *MemoryQueue) Stats(_ context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:    int64(len(q.ch)),
		Processing: q.processing,
		Dead:       int64(len(q.dead)),
	}, nil
}

// DeadLetters 死信副本
func (q *MemoryQueue) DeadLetters() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, len(q.dead))
	copy(out, q.dead)
	return out
}
