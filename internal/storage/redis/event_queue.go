package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 设备事件信封类型
const (
	KindBlob    = "blob"
	KindMessage = "message"
)

// Envelope 设备经中继送达的一个事件
type Envelope struct {
	ID     string    `json:"id"`               // 信封 ID（唯一）
	Kind   string    `json:"kind"`             // blob | message
	Source string    `json:"source,omitempty"` // 数据块源名称
	Time   time.Time `json:"time"`             // 设备侧时间戳
	Level  int32     `json:"level,omitempty"`  // 消息级别
	Text   string    `json:"text,omitempty"`   // 消息文本
	Data   []byte    `json:"data,omitempty"`   // 数据块负载
}

// EventQueue 基于 Redis 列表的设备事件队列：设备 RPUSH，SDK BLPOP
type EventQueue struct {
	client  *Client
	deadKey string
}

// NewEventQueue 创建事件队列；无法解析的信封写入 deadKey
func NewEventQueue(client *Client, deadKey string) *EventQueue {
	return &EventQueue{client: client, deadKey: deadKey}
}

// Push 追加一个信封；ID 为空时生成
func (q *EventQueue) Push(ctx context.Context, key string, env *Envelope) error {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return q.client.RPush(ctx, key, data).Err()
}

// Pop 阻塞最多 timeout 取出最早的信封；超时返回 (nil, nil)
func (q *EventQueue) Pop(ctx context.Context, key string, timeout time.Duration) (*Envelope, error) {
	res, err := q.client.BLPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BLPOP 返回 [key, value]
	raw := res[1]

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		q.deadLetter(ctx, key, raw, err)
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return &env, nil
}

// ErrMalformedEnvelope 信封无法解析，已移入死信列表
var ErrMalformedEnvelope = errors.New("malformed relay envelope")

func (q *EventQueue) deadLetter(ctx context.Context, key, raw string, cause error) {
	if q.deadKey == "" {
		return
	}
	data, _ := json.Marshal(map[string]interface{}{
		"key":       key,
		"payload":   raw,
		"error":     cause.Error(),
		"failed_at": time.Now(),
	})
	_ = q.client.LPush(ctx, q.deadKey, data).Err()
}

// Len 队列长度
func (q *EventQueue) Len(ctx context.Context, key string) (int64, error) {
	return q.client.LLen(ctx, key).Result()
}

// Clear 丢弃队列中全部信封，返回丢弃数量
func (q *EventQueue) Clear(ctx context.Context, key string) (int64, error) {
	pipe := q.client.TxPipeline()
	n := pipe.LLen(ctx, key)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return n.Val(), nil
}

// DeadCount 死信数量
func (q *EventQueue) DeadCount(ctx context.Context) (int64, error) {
	if q.deadKey == "" {
		return 0, nil
	}
	return q.client.LLen(ctx, q.deadKey).Result()
}

// TrimDead 只保留最新的 keep 条死信，返回删除数量
func (q *EventQueue) TrimDead(ctx context.Context, keep int64) (int64, error) {
	if q.deadKey == "" {
		return 0, nil
	}
	if keep < 0 {
		keep = 0
	}
	pipe := q.client.TxPipeline()
	n := pipe.LLen(ctx, q.deadKey)
	if keep == 0 {
		pipe.Del(ctx, q.deadKey)
	} else {
		pipe.LTrim(ctx, q.deadKey, 0, keep-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	if removed := n.Val() - keep; removed > 0 {
		return removed, nil
	}
	return 0, nil
}
