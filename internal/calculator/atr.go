package calculator

import (
	"math"

	"TradeSentinel/internal/model"
)

// TrueRange returns the true range of bar i against the previous close. i must be >= 1.
func TrueRange(bars []model.PriceBar, i int) float64 {
	hl := bars[i].High - bars[i].Low
	hc := math.Abs(bars[i].High - bars[i-1].Close)
	lc := math.Abs(bars[i].Low - bars[i-1].Close)
	return math.Max(hl, math.Max(hc, lc))
}

// ATRSeries computes Wilder's average true range. The first value sits at index `period`
// (mean of true ranges 1..period); earlier indices are zero.
func ATRSeries(bars []model.PriceBar, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errPeriod
	}
	if len(bars) < period+1 {
		return nil, insufficient("ATR", period+1, len(bars))
	}
	out := make([]float64, len(bars))
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += TrueRange(bars, i)
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < len(bars); i++ {
		out[i] = (out[i-1]*float64(period-1) + TrueRange(bars, i)) / float64(period)
	}
	return out, nil
}

// CalculateATR returns the latest ATR of the bars.
func CalculateATR(bars []model.PriceBar, period int) (float64, error) {
	series, err := ATRSeries(bars, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}
