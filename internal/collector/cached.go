package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"TradeSentinel/internal/cache"
	"TradeSentinel/internal/model"
)

// CachedFetcher memoises daily bars per symbol, window and calendar day.
// Cache failures are logged and bypassed.
type CachedFetcher struct {
	Fetcher Fetcher
	Store   cache.Store
	TTL     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewCachedFetcher wraps f with store.
func NewCachedFetcher(f Fetcher, store cache.Store, ttl time.Duration, logger *zap.Logger) *CachedFetcher {
	return &CachedFetcher{Fetcher: f, Store: store, TTL: ttl, logger: logger, now: time.Now}
}

func (c *CachedFetcher) Name() string { return "cached-" + c.Fetcher.Name() }

func (c *CachedFetcher) key(symbol string, days int) string {
	return fmt.Sprintf("bars:%s:%s:%d:%s", c.Fetcher.Name(), symbol, days, c.now().UTC().Format("2006-01-02"))
}

func (c *CachedFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.PriceBar, error) {
	key := c.key(symbol, days)
	raw, found, err := c.Store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("bar cache read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		var bars []model.PriceBar
		if err := json.Unmarshal(raw, &bars); err == nil {
			return bars, nil
		}
		c.logger.Warn("bar cache entry corrupt", zap.String("key", key))
	}

	bars, err := c.Fetcher.FetchDailyBars(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return bars, nil
	}
	if raw, err := json.Marshal(bars); err == nil {
		if err := c.Store.Set(ctx, key, raw, c.TTL); err != nil {
			c.logger.Warn("bar cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return bars, nil
}
