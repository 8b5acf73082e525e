package security

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/colegio/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNonceStore(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(testNow)
	store := NewMemoryNonceStore(clk)

	seen, err := store.Seen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, seen)

	marked, err := store.Mark(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = store.Mark(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.False(t, marked)

	seen, _ = store.Seen(ctx, "a")
	assert.True(t, seen)

	clk.Advance(time.Minute)
	seen, _ = store.Seen(ctx, "a")
	assert.False(t, seen)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryNonceStoreSweep(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(testNow)
	store := NewMemoryNonceStore(clk)

	_, _ = store.Mark(ctx, "short", time.Second)
	_, _ = store.Mark(ctx, "long", time.Hour)
	clk.Advance(2 * time.Second)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestRedisNonceStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	store := NewRedisNonceStore(client)
	nonce := uuid.NewString()

	seen, err := store.Seen(ctx, nonce)
	require.NoError(t, err)
	assert.False(t, seen)

	marked, err := store.Mark(ctx, nonce, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = store.Mark(ctx, nonce, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, marked)

	seen, err = store.Seen(ctx, nonce)
	require.NoError(t, err)
	assert.True(t, seen)
}
