package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/amplifihq/coinswap/internal/models"
	"github.com/amplifihq/coinswap/internal/registry"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const coinStateTTL = 60 * time.Second

// SwapCache holds the redis-backed swap state: optimistic balances, cached
// coin records, and the recent-swap feed.
type SwapCache struct {
	client redis.Cmdable
	logger *logrus.Entry
}

func NewSwapCache(client redis.Cmdable, logger *logrus.Logger) (*SwapCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SwapCache{
		client: client,
		logger: logger.WithField("component", "cache"),
	}, nil
}

func balanceKey(owner, mint string) string {
	return constants.RedisKeyBalancePrefix + owner + ":" + mint
}

func coinKey(mint string) string {
	return constants.RedisKeyCoinPrefix + mint
}

// InvalidateSwapState drops the cached balances and coin records touched by a
// swap so the next read goes back to the source of truth. Called after every
// successful execution and before every retry.
func (c *SwapCache) InvalidateSwapState(ctx context.Context, owner string, mints ...string) error {
	if len(mints) == 0 {
		return nil
	}

	keys := make([]string, 0, len(mints)*2)
	for _, mint := range mints {
		keys = append(keys, balanceKey(owner, mint), coinKey(mint))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate swap state: %w", err)
	}
	return nil
}

// Balance reads a cached optimistic balance. The second return is false when
// no value is cached.
func (c *SwapCache) Balance(ctx context.Context, owner, mint string) (float64, bool, error) {
	val, err := c.client.Get(ctx, balanceKey(owner, mint)).Float64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read balance: %w", err)
	}
	return val, true, nil
}

// SetBalance caches an observed balance.
func (c *SwapCache) SetBalance(ctx context.Context, owner, mint string, balance float64) error {
	if err := c.client.Set(ctx, balanceKey(owner, mint), balance, 0).Err(); err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// AdjustBalance applies a signed delta to a cached balance so the UI reflects
// a confirmed swap before the indexer catches up. No-op when nothing is
// cached: adjusting an absent balance would fabricate one.
func (c *SwapCache) AdjustBalance(ctx context.Context, owner, mint string, delta float64) error {
	key := balanceKey(owner, mint)

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check balance: %w", err)
	}
	if exists == 0 {
		return nil
	}

	if err := c.client.IncrByFloat(ctx, key, delta).Err(); err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}
	return nil
}

// CoinState returns the cached coin record for a mint, nil when absent.
// Implements the coin store the route classifier reads.
func (c *SwapCache) CoinState(ctx context.Context, mint string) (*registry.CoinRecord, error) {
	val, err := c.client.Get(ctx, coinKey(mint)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read coin state: %w", err)
	}

	var record registry.CoinRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("failed to decode coin state: %w", err)
	}
	return &record, nil
}

// SetCoinState caches a coin record with a short TTL. Migration can flip a
// pool under us, so stale records must age out quickly.
func (c *SwapCache) SetCoinState(ctx context.Context, record *registry.CoinRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode coin state: %w", err)
	}
	if err := c.client.Set(ctx, coinKey(record.Mint), data, coinStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to set coin state: %w", err)
	}
	return nil
}

// AddRecentSwap pushes an execution record onto the capped recent-swap feed
// and publishes it for live subscribers.
func (c *SwapCache) AddRecentSwap(ctx context.Context, record *models.SwapExecutionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode swap record: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentSwaps, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentSwaps, 0, constants.MaxRecentSwaps-1)
	pipe.Publish(ctx, constants.PubSubChannelSwaps, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record swap: %w", err)
	}

	return nil
}

// GetRecentSwaps returns up to limit most recent execution records, newest
// first.
func (c *SwapCache) GetRecentSwaps(ctx context.Context, limit int64) ([]models.SwapExecutionRecord, error) {
	if limit <= 0 || limit > constants.MaxRecentSwaps {
		limit = constants.MaxRecentSwaps
	}

	vals, err := c.client.LRange(ctx, constants.RedisKeyRecentSwaps, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent swaps: %w", err)
	}

	out := make([]models.SwapExecutionRecord, 0, len(vals))
	for _, v := range vals {
		var record models.SwapExecutionRecord
		if err := json.Unmarshal([]byte(v), &record); err != nil {
			c.logger.WithError(err).Warn("skipping malformed swap record")
			continue
		}
		out = append(out, record)
	}
	return out, nil
}
