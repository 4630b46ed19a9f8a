package flags

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Ping(ctx).Err()
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	err = client.FlushDB(ctx).Err()
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	return client
}

func TestStore_UpsertAndGet(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	flag, err := store.Upsert(ctx, KeyRelayFirst, false)
	require.NoError(t, err)
	assert.Equal(t, KeyRelayFirst, flag.Key)
	assert.False(t, flag.Value)
	assert.NotZero(t, flag.UpdatedAt)

	got, err := store.Get(ctx, KeyRelayFirst)
	require.NoError(t, err)
	assert.Equal(t, flag.Value, got.Value)

	_, err = store.Get(ctx, "nonexistent.flag")
	assert.Equal(t, ErrNotFound, err)
}

func TestStore_List(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	flags, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, flags)

	_, err = store.Upsert(ctx, KeyRelayFirst, true)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, KeyAggregatorFallback, false)
	require.NoError(t, err)

	flags, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, flags, 2)
}

func TestStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = store.Upsert(ctx, KeyRelayFirst, true)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, KeyRelayFirst))

	_, err = store.Get(ctx, KeyRelayFirst)
	assert.Equal(t, ErrNotFound, err)

	// Deleting an absent flag is fine.
	assert.NoError(t, store.Delete(ctx, "nonexistent.flag"))
}

func TestStore_KillSwitchesDefaultOn(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	// Unset flags read as enabled.
	assert.True(t, store.RelayFirst(ctx))
	assert.True(t, store.AggregatorFallback(ctx))

	_, err = store.Upsert(ctx, KeyRelayFirst, false)
	require.NoError(t, err)
	assert.False(t, store.RelayFirst(ctx))

	_, err = store.Upsert(ctx, KeyAggregatorFallback, false)
	require.NoError(t, err)
	assert.False(t, store.AggregatorFallback(ctx))
}

func TestStore_KeyValidation(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()

	for _, key := range []string{"", " ", "flag with spaces", "flag:with:colons"} {
		_, err := store.Upsert(ctx, key, true)
		assert.Error(t, err, "Key %q should be invalid", key)
	}

	for _, key := range []string{"simple.flag", "flag123", "a", KeyRelayFirst} {
		_, err := store.Upsert(ctx, key, true)
		assert.NoError(t, err, "Key %q should be valid", key)
	}
}
