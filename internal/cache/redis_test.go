package cache

import (
	"context"
	"testing"
	"time"

	"github.com/amplifihq/coinswap/internal/models"
	"github.com/amplifihq/coinswap/internal/registry"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2, // Use different DB for tests
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

const testOwner = "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"

func TestSwapCache_Balances(t *testing.T) {
	client := setupTestRedis(t)
	c, err := NewSwapCache(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	mint := "So11111111111111111111111111111111111111112"

	_, ok, err := c.Balance(ctx, testOwner, mint)
	require.NoError(t, err)
	assert.False(t, ok)

	// Adjusting an uncached balance must not fabricate one.
	require.NoError(t, c.AdjustBalance(ctx, testOwner, mint, 5))
	_, ok, err = c.Balance(ctx, testOwner, mint)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetBalance(ctx, testOwner, mint, 10))
	require.NoError(t, c.AdjustBalance(ctx, testOwner, mint, -2.5))

	got, ok, err := c.Balance(ctx, testOwner, mint)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 7.5, got, 1e-9)
}

func TestSwapCache_InvalidateSwapState(t *testing.T) {
	client := setupTestRedis(t)
	c, err := NewSwapCache(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	mint := "So11111111111111111111111111111111111111112"

	require.NoError(t, c.SetBalance(ctx, testOwner, mint, 3))
	require.NoError(t, c.SetCoinState(ctx, &registry.CoinRecord{Mint: mint}))

	require.NoError(t, c.InvalidateSwapState(ctx, testOwner, mint))

	_, ok, err := c.Balance(ctx, testOwner, mint)
	require.NoError(t, err)
	assert.False(t, ok)

	record, err := c.CoinState(ctx, mint)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSwapCache_CoinState(t *testing.T) {
	client := setupTestRedis(t)
	c, err := NewSwapCache(client, nil)
	require.NoError(t, err)

	ctx := context.Background()

	record, err := c.CoinState(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, record)

	in := &registry.CoinRecord{
		Mint:         "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
		Ticker:       "TEST",
		BondingCurve: &registry.BondingCurveState{Migrated: true},
	}
	require.NoError(t, c.SetCoinState(ctx, in))

	out, err := c.CoinState(ctx, in.Mint)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Ticker, out.Ticker)
	require.NotNil(t, out.BondingCurve)
	assert.True(t, out.BondingCurve.Migrated)
}

func TestSwapCache_RecentSwaps(t *testing.T) {
	client := setupTestRedis(t)
	c, err := NewSwapCache(client, nil)
	require.NoError(t, err)

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.AddRecentSwap(ctx, &models.SwapExecutionRecord{
			Signature: string(rune('a' + i)),
			Status:    "success",
		}))
	}

	items, err := c.GetRecentSwaps(ctx, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Newest first.
	assert.Equal(t, "c", items[0].Signature)
	assert.Equal(t, "b", items[1].Signature)
}

func TestSubscriber_ReceivesPublishedSwaps(t *testing.T) {
	client := setupTestRedis(t)
	c, err := NewSwapCache(client, nil)
	require.NoError(t, err)

	sub := NewSubscriber(client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *models.SwapExecutionRecord, 1)
	go func() {
		_ = sub.SubscribeSwaps(ctx, func(record *models.SwapExecutionRecord) {
			received <- record
		})
	}()

	// Give the subscription a moment to attach before publishing.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, c.AddRecentSwap(ctx, &models.SwapExecutionRecord{
		Signature: "sig-live",
		Route:     "indirect",
	}))

	select {
	case record := <-received:
		assert.Equal(t, "sig-live", record.Signature)
		assert.Equal(t, "indirect", record.Route)
	case <-ctx.Done():
		t.Fatal("timed out waiting for published swap")
	}
}
