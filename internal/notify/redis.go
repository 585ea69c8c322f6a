package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOutbox queues messages on a Redis list for an external mailer.
// Each message key is queued at most once within DedupTTL.
type RedisOutbox struct {
	client   redis.UniversalClient
	listKey  string
	dedupTTL time.Duration
}

// NewRedisOutbox creates an outbox writing to listKey
func NewRedisOutbox(client redis.UniversalClient, listKey string, dedupTTL time.Duration) *RedisOutbox {
	if listKey == "" {
		listKey = "assessment:outbox"
	}
	if dedupTTL <= 0 {
		dedupTTL = 24 * time.Hour
	}

	return &RedisOutbox{
		client:   client,
		listKey:  listKey,
		dedupTTL: dedupTTL,
	}
}

// Send pushes the message onto the outbox list
func (o *RedisOutbox) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	dedupKey := o.dedupKey(msg.Key)
	if msg.Key != "" {
		fresh, err := o.client.SetNX(ctx, dedupKey, "1", o.dedupTTL).Result()
		if err != nil {
			return fmt.Errorf("failed to reserve message key: %w", err)
		}
		if !fresh {
			return nil // Already queued
		}
	}

	if err := o.client.LPush(ctx, o.listKey, body).Err(); err != nil {
		if msg.Key != "" {
			o.client.Del(ctx, dedupKey)
		}
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	return nil
}

// Pending returns the number of queued messages
func (o *RedisOutbox) Pending(ctx context.Context) (int64, error) {
	return o.client.LLen(ctx, o.listKey).Result()
}

func (o *RedisOutbox) dedupKey(key string) string {
	return fmt.Sprintf("%s:sent:%s", o.listKey, key)
}
