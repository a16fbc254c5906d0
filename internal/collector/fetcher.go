package collector

import (
	"context"

	"TradeSentinel/internal/model"
)

// Fetcher defines the interface for fetching market data.
// Bars come back in ascending chronological order and may be empty.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.PriceBar, error)
	Name() string
}
