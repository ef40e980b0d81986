package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"releasefinder/internal/metrics"
)

const DefaultQueueKey = "releasefinder:tasks"

// RedisQueue appends JSON task messages to a Redis list. Workers pop from the
// other end.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		metrics.TasksPublishedTotal.WithLabelValues(string(msg.Kind), "invalid").Inc()
		return err
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		metrics.TasksPublishedTotal.WithLabelValues(string(msg.Kind), "error").Inc()
		return fmt.Errorf("push task %s: %w", msg.ID, err)
	}
	metrics.TasksPublishedTotal.WithLabelValues(string(msg.Kind), "ok").Inc()
	return nil
}

// Pop removes the oldest message. It reports false when the queue is empty.
func (q *RedisQueue) Pop(ctx context.Context) (Message, bool, error) {
	data, err := q.client.LPop(ctx, q.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Message{}, false, nil
		}
		return Message{}, false, err
	}
	msg, err := Decode(data)
	if err != nil {
		return Message{}, false, err
	}
	return msg, true, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
