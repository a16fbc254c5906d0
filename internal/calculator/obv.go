package calculator

import (
	"errors"

	"TradeSentinel/internal/model"
)

// ErrZeroVolume is returned when the average volume of a window is zero.
var ErrZeroVolume = errors.New("average volume is zero")

// OBVSeries returns on-balance volume starting at zero on the first bar.
func OBVSeries(bars []model.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			out[i] = out[i-1] + bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			out[i] = out[i-1] - bars[i].Volume
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// Slope returns the least-squares slope of values against their index.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// TailSlope returns the slope of the last `window` values.
func TailSlope(values []float64, window int) (float64, error) {
	if window < 2 {
		return 0, errPeriod
	}
	if len(values) < window {
		return 0, insufficient("slope", window, len(values))
	}
	return Slope(values[len(values)-window:]), nil
}

// RelativeVolume returns the last bar's volume over the mean volume of the last `period` bars.
func RelativeVolume(bars []model.PriceBar, period int) (float64, error) {
	if period <= 0 {
		return 0, errPeriod
	}
	if len(bars) < period {
		return 0, insufficient("relative volume", period, len(bars))
	}
	sum := 0.0
	for _, b := range bars[len(bars)-period:] {
		sum += b.Volume
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 0, ErrZeroVolume
	}
	return bars[len(bars)-1].Volume / avg, nil
}
