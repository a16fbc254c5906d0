package collector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TradeSentinel/internal/model"
)

// Collector fetches the daily history of a whole universe with bounded concurrency.
// When the primary fetcher fails for a symbol the fallback, if any, is tried.
type Collector struct {
	Fetcher     Fetcher
	Fallback    Fetcher
	Concurrency int
	Timeout     time.Duration // per symbol, 0 means none
	logger      *zap.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, fallback Fetcher, concurrency int, logger *zap.Logger) *Collector {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Collector{Fetcher: fetcher, Fallback: fallback, Concurrency: concurrency, logger: logger}
}

// Collect returns the histories that could be fetched plus one failure per
// symbol that could not. Results are ordered by symbol. Only context
// cancellation aborts the whole collection.
func (c *Collector) Collect(ctx context.Context, symbols []string, days int) ([]model.SymbolHistory, []model.SymbolFailure, error) {
	var (
		mu        sync.Mutex
		histories []model.SymbolHistory
		failures  []model.SymbolFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Concurrency)
	for _, sym := range symbols {
		g.Go(func() error {
			bars, err := c.fetch(gctx, sym, days)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Warn("fetch failed", zap.String("symbol", sym), zap.Error(err))
				mu.Lock()
				failures = append(failures, model.SymbolFailure{Symbol: sym, Stage: "collect", Error: err.Error()})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			histories = append(histories, model.SymbolHistory{Symbol: sym, Bars: bars})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(histories, func(i, j int) bool { return histories[i].Symbol < histories[j].Symbol })
	sort.Slice(failures, func(i, j int) bool { return failures[i].Symbol < failures[j].Symbol })
	return histories, failures, nil
}

func (c *Collector) fetch(ctx context.Context, symbol string, days int) ([]model.PriceBar, error) {
	bars, err := c.fetchWith(ctx, c.Fetcher, symbol, days)
	if err == nil {
		return bars, nil
	}
	if c.Fallback == nil || ctx.Err() != nil {
		return nil, err
	}
	c.logger.Warn("primary fetcher failed, using fallback",
		zap.String("symbol", symbol), zap.String("primary", c.Fetcher.Name()),
		zap.String("fallback", c.Fallback.Name()), zap.Error(err))
	return c.fetchWith(ctx, c.Fallback, symbol, days)
}

func (c *Collector) fetchWith(ctx context.Context, f Fetcher, symbol string, days int) ([]model.PriceBar, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	bars, err := f.FetchDailyBars(ctx, symbol, days)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, &model.UpstreamError{Source: f.Name(), Symbol: symbol, Err: err}
	}
	return bars, err
}
