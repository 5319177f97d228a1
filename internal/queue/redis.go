package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ==================== Redis 连接 ====================

// Connect 根据 redis:// URL 或 host:port 创建客户端并 Ping
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ==================== Lua 脚本 ====================

// 出队：pending → processing，并登记租约截止时间
var dequeueScript = redis.NewScript(`
local payload = redis.call('RPOPLPUSH', KEYS[1], KEYS[2])
if payload then
	redis.call('ZADD', KEYS[3], ARGV[1], payload)
end
return payload
`)

// 回收：租约过期且仍在 processing 的任务放回 pending
var reapScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
local requeued = 0
for _, payload in ipairs(expired) do
	redis.call('ZREM', KEYS[1], payload)
	if redis.call('LREM', KEYS[2], 1, payload) > 0 then
		redis.call('LPUSH', KEYS[3], payload)
		requeued = requeued + 1
	end
end
return requeued
`)

// ==================== RedisQueue ====================

// RedisOptions Redis 队列参数
type RedisOptions struct {
	KeyPrefix         string        // 默认 "affiliate"
	VisibilityTimeout time.Duration // 租约时长
	MaxAttempts       int           // 超过后进入死信
	ReapBatch         int           // 每次回收上限
}

// RedisQueue 基于 Redis List 的持久化队列
type RedisQueue struct {
	client *redis.Client
	opts   RedisOptions
	now    func() time.Time

	pendingKey    string
	processingKey string
	leaseKey      string
	deadKey       string
}

// NewRedisQueue 创建 Redis 队列
func NewRedisQueue(client *redis.Client, opts RedisOptions) *RedisQueue {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "affiliate"
	}
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = 2 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.ReapBatch <= 0 {
		opts.ReapBatch = 100
	}

	base := opts.KeyPrefix + ":payout:"
	return &RedisQueue{
		client:        client,
		opts:          opts,
		now:           time.Now,
		pendingKey:    base + "pending",
		processingKey: base + "processing",
		leaseKey:      base + "leases",
		deadKey:       base + "dead",
	}
}

// Enqueue 入队
func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = q.now().UTC()
	}
	payload, err := encodeTask(task)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.pendingKey, payload).Err()
}

// Dequeue 出队并登记租约
func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	deadline := q.now().Add(q.opts.VisibilityTimeout).UnixMilli()

	payload, err := dequeueScript.Run(ctx, q.client,
		[]string{q.pendingKey, q.processingKey, q.leaseKey},
		deadline,
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task, err := decodeTask(payload)
	if err != nil {
		// 无法解析的任务直接进入死信
		_, _ = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.LRem(ctx, q.processingKey, 1, payload)
			p.ZRem(ctx, q.leaseKey, payload)
			p.LPush(ctx, q.deadKey, payload)
			return nil
		})
		return nil, fmt.Errorf("decode task: %w", err)
	}

	return &Delivery{Task: task, receipt: payload}, nil
}

// Ack 确认完成
func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processingKey, 1, d.receipt)
		p.ZRem(ctx, q.leaseKey, d.receipt)
		return nil
	})
	return err
}

// Retry 重新入队或进入死信
func (q *RedisQueue) Retry(ctx context.Context, d *Delivery, cause error) (bool, error) {
	dead := d.Task.Attempts+1 >= q.opts.MaxAttempts
	target := q.pendingKey
	if dead {
		target = q.deadKey
	}
	if err := q.release(ctx, d, cause, target); err != nil {
		return false, err
	}
	return dead, nil
}

// Bury 直接进入死信
func (q *RedisQueue) Bury(ctx context.Context, d *Delivery, cause error) error {
	return q.release(ctx, d, cause, q.deadKey)
}

// release 移出处理中，attempts+1 后推入 target
func (q *RedisQueue) release(ctx context.Context, d *Delivery, cause error, target string) error {
	next := d.Task
	next.Attempts++
	next.LastError = errString(cause)

	payload, err := encodeTask(next)
	if err != nil {
		return err
	}

	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processingKey, 1, d.receipt)
		p.ZRem(ctx, q.leaseKey, d.receipt)
		p.LPush(ctx, target, payload)
		return nil
	})
	return err
}

// Reap 回收过期租约
func (q *RedisQueue) Reap(ctx context.Context) (int, error) {
	n, err := reapScript.Run(ctx, q.client,
		[]string{q.leaseKey, q.processingKey, q.pendingKey},
		q.now().UnixMilli(), q.opts.ReapBatch,
	).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Stats 队列深度
func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	var pending, processing, dead *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		pending = p.LLen(ctx, q.pendingKey)
		processing = p.LLen(ctx, q.processingKey)
		dead = p.LLen(ctx, q.deadKey)
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Pending:    pending.Val(),
		Processing: processing.Val(),
		Dead:       dead.Val(),
	}, nil
}

// DeadLetters 查看死信（最新在前）
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int64) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	payloads, err := q.client.LRange(ctx, q.deadKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(payloads))
	for _, payload := range payloads {
		task, err := decodeTask(payload)
		if err != nil {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
