package calculator

import (
	"errors"
	"math"

	"TradeSentinel/internal/model"
)

// HighLow scans the most recent `lookback` bars and returns the highest high and lowest low.
func HighLow(bars []model.PriceBar, lookback int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	n := len(bars)
	start := n - lookback
	if start < 0 || lookback <= 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low, nil
}

// SwingHighs returns the indices of bars whose high is the strict maximum of the centered
// window of k bars on each side. Bars within k of either edge are never swings.
func SwingHighs(bars []model.PriceBar, k int) []int {
	return swings(bars, k, func(b model.PriceBar) float64 { return b.High }, func(a, b float64) bool { return a > b })
}

// SwingLows is the mirror of SwingHighs over bar lows.
func SwingLows(bars []model.PriceBar, k int) []int {
	return swings(bars, k, func(b model.PriceBar) float64 { return b.Low }, func(a, b float64) bool { return a < b })
}

func swings(bars []model.PriceBar, k int, val func(model.PriceBar) float64, beats func(a, b float64) bool) []int {
	if k <= 0 {
		return nil
	}
	var out []int
	for i := k; i < len(bars)-k; i++ {
		v := val(bars[i])
		ok := true
		for j := i - k; j <= i+k; j++ {
			if j != i && !beats(v, val(bars[j])) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}
