package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis 使用 miniredis 创建测试队列
func setupTestRedis(t *testing.T, opts RedisOptions) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisQueue(client, opts), mr
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	client, err = Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	_ = client.Close()
}

func TestRedisQueue_EnqueueDequeueAck(t *testing.T) {
	q, mr := setupTestRedis(t, RedisOptions{KeyPrefix: "test"})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Task{ID: "t1", Type: TaskTypePayoutOrder, OrderID: 1}))
	require.NoError(t, q.Enqueue(ctx, Task{ID: "t2", Type: TaskTypePayoutOrder, OrderID: 2}))

	// FIFO
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "t1", d.Task.ID)
	assert.Equal(t, int64(1), d.Task.OrderID)
	assert.False(t, d.Task.EnqueuedAt.IsZero())

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 1, Processing: 1}, stats)

	members, err := mr.ZMembers("test:payout:leases")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	require.NoError(t, q.Ack(ctx, d))

	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 1}, stats)
	assert.Zero(t, q.client.ZCard(ctx, "test:payout:leases").Val())
}

func TestRedisQueue_DequeueEmpty(t *testing.T) {
	q, _ := setupTestRedis(t, RedisOptions{})

	d, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestRedisQueue_RetryThenDead(t *testing.T) {
	q, _ := setupTestRedis(t, RedisOptions{MaxAttempts: 2})
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Task{ID: "t1", Type: TaskTypePayoutOrder, OrderID: 9}))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	dead, err := q.Retry(ctx, d, errors.New("db down"))
	require.NoError(t, err)
	assert.False(t, dead)

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 1, d.Task.Attempts)
	assert.Equal(t, "db down", d.Task.LastError)

	dead, err = q.Retry(ctx, d, errors.New("db down again"))
	require.NoError(t, err)
	assert.True(t, dead)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Dead: 1}, stats)

	letters, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "t1", letters[0].ID)
	assert.Equal(t, 2, letters[0].Attempts)
}

func TestRedisQueue_ReapExpiredLease(t *testing.T) {
	q, _ := setupTestRedis(t, RedisOptions{VisibilityTimeout: time.Minute})
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	require.NoError(t, q.Enqueue(ctx, Task{ID: "t1", Type: TaskTypePayoutOrder, OrderID: 1}))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)

	// 租约未过期
	n, err := q.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 消费者崩溃，租约过期后重新投递
	now = now.Add(2 * time.Minute)
	n, err = q.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	redelivered, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
	assert.Equal(t, "t1", redelivered.Task.ID)

	// 原消费者迟到的 Ack 按内容删除，任务视为完成
	require.NoError(t, q.Ack(ctx, d))
	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestRedisQueue_PoisonPayload(t *testing.T) {
	q, mr := setupTestRedis(t, RedisOptions{})
	ctx := context.Background()

	_, err := mr.Lpush("affiliate:payout:pending", "{not json")
	require.NoError(t, err)

	d, err := q.Dequeue(ctx)
	assert.Error(t, err)
	assert.Nil(t, d)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Dead: 1}, stats)
}

// ==================== MemoryQueue ====================

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(10, 2)
	ctx := context.Background()

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, d)

	require.NoError(t, q.Enqueue(ctx, Task{ID: "t1", OrderID: 1}))
	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)

	dead, err := q.Retry(ctx, d, errors.New("x"))
	require.NoError(t, err)
	assert.False(t, dead)

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Task.Attempts)

	dead, err = q.Retry(ctx, d, errors.New("x"))
	require.NoError(t, err)
	assert.True(t, dead)
	assert.Len(t, q.DeadLetters(), 1)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Dead: 1}, stats)

	n, err := q.Reap(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryQueue_EnqueueFullRespectsContext(t *testing.T) {
	q := NewMemoryQueue(1, 1)
	require.NoError(t, q.Enqueue(context.Background(), Task{ID: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Task{ID: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBury(t *testing.T) {
	ctx := context.Background()
	redisQ, _ := setupTestRedis(t, RedisOptions{MaxAttempts: 5})
	queues := map[string]Queue{
		"redis":  redisQ,
		"memory": NewMemoryQueue(10, 5),
	}

	for name, q := range queues {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, q.Enqueue(ctx, Task{ID: "t1", Type: TaskTypePayoutOrder, OrderID: 1}))
			d, err := q.Dequeue(ctx)
			require.NoError(t, err)
			require.NotNil(t, d)

			// 首次失败即进入死信，不受 MaxAttempts 影响
			require.NoError(t, q.Bury(ctx, d, errors.New("order not found")))

			stats, err := q.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, Stats{Dead: 1}, stats)

			d, err = q.Dequeue(ctx)
			require.NoError(t, err)
			assert.Nil(t, d)
		})
	}

	letters, err := redisQ.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, 1, letters[0].Attempts)
	assert.Equal(t, "order not found", letters[0].LastError)
}
