package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOutboxDeduplicates(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping redis tests")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	listKey := "test:outbox:" + uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, listKey, listKey+":sent:k1") })

	outbox := NewRedisOutbox(client, listKey, time.Minute)

	msg := Message{Key: "k1", To: "ada@example.com", Subject: "s", Body: "b"}
	require.NoError(t, outbox.Send(ctx, msg))
	require.NoError(t, outbox.Send(ctx, msg))

	n, err := outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
