package model

import (
	"fmt"
	"math"
	"time"
)

// PriceBar represents a single OHLCV session.
type PriceBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Body returns |close-open|.
func (b PriceBar) Body() float64 { return math.Abs(b.Close - b.Open) }

// Range returns high-low.
func (b PriceBar) Range() float64 { return b.High - b.Low }

// UpperShadow returns the distance from the top of the body to the high.
func (b PriceBar) UpperShadow() float64 { return b.High - math.Max(b.Open, b.Close) }

// LowerShadow returns the distance from the bottom of the body to the low.
func (b PriceBar) LowerShadow() float64 { return math.Min(b.Open, b.Close) - b.Low }

// IsBullish reports close > open.
func (b PriceBar) IsBullish() bool { return b.Close > b.Open }

// IsBearish reports close < open.
func (b PriceBar) IsBearish() bool { return b.Close < b.Open }

// Validate checks low <= min(open,close) <= max(open,close) <= high and volume >= 0.
func (b PriceBar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value at %s", b.Time.Format(time.DateOnly))
		}
	}
	lo, hi := math.Min(b.Open, b.Close), math.Max(b.Open, b.Close)
	if b.Low > lo || hi > b.High {
		return fmt.Errorf("ohlc invariant violated at %s (o=%.4f h=%.4f l=%.4f c=%.4f)",
			b.Time.Format(time.DateOnly), b.Open, b.High, b.Low, b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume at %s", b.Time.Format(time.DateOnly))
	}
	return nil
}

// ValidateBars checks every bar and the chronological order of the series.
func ValidateBars(symbol string, bars []PriceBar) error {
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return &DataQualityError{Symbol: symbol, Stage: "bars", Reason: err.Error()}
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return &DataQualityError{Symbol: symbol, Stage: "bars",
				Reason: fmt.Sprintf("bars not chronological at index %d", i)}
		}
	}
	return nil
}

// Closes extracts the close prices of the series.
func Closes(bars []PriceBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// SymbolHistory pairs a symbol with its trailing daily bars.
type SymbolHistory struct {
	Symbol string
	Bars   []PriceBar
}

// Candidate is a symbol that passed the selection filter.
type Candidate struct {
	Symbol         string  `json:"symbol"`
	Close          float64 `json:"close"`
	AvgVolume      float64 `json:"avg_volume"`
	MomentumPct    float64 `json:"momentum_pct"`
	RelativeVolume float64 `json:"relative_volume"`
	RankScore      float64 `json:"rank_score"`
}
