package collector

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"TradeSentinel/internal/model"
)

// MockFetcher returns deterministic synthetic bars for development and testing.
// Fixed data in Bars takes precedence; Errs injects per-symbol failures.
type MockFetcher struct {
	Bars map[string][]model.PriceBar
	Errs map[string]error
	End  time.Time // last bar date, defaults to today
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errs[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		if len(bars) > days {
			bars = bars[len(bars)-days:]
		}
		out := make([]model.PriceBar, len(bars))
		copy(out, bars)
		return out, nil
	}
	end := m.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	return generateMockBars(symbol, days, end), nil
}

// generateMockBars builds a random walk seeded by the symbol name, so the same
// symbol always yields the same series for a given end date.
func generateMockBars(symbol string, count int, end time.Time) []model.PriceBar {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	price := 5 + rng.Float64()*145
	drift := (rng.Float64() - 0.4) * 0.004
	baseVol := 300000 + rng.Float64()*4000000
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	bars := make([]model.PriceBar, count)
	for i := 0; i < count; i++ {
		open := price
		move := drift + rng.NormFloat64()*0.015
		cl := math.Max(0.5, open*(1+move))
		hi := math.Max(open, cl) * (1 + rng.Float64()*0.01)
		lo := math.Min(open, cl) * (1 - rng.Float64()*0.01)
		vol := baseVol * (0.6 + rng.Float64()*0.8)
		if i >= count-3 && rng.Float64() < 0.4 {
			vol *= 2
		}
		bars[i] = model.PriceBar{
			Time:   end.AddDate(0, 0, -(count - 1 - i)),
			Open:   round2(open),
			High:   round2(hi),
			Low:    round2(lo),
			Close:  round2(cl),
			Volume: math.Round(vol),
		}
		price = cl
	}
	return bars
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
