package strategy

import (
	"math"

	"TradeSentinel/internal/model"
)

// TrendContext is the price backdrop of a symbol at scoring time.
// Zero MA20/MA50/ATR mean unknown.
type TrendContext struct {
	Close          float64
	MA20           float64
	MA50           float64
	ATR            float64
	RelativeVolume float64
}

func biasFor(dir model.SignalType) model.Bias {
	if dir == model.SignalSell {
		return model.BiasBearish
	}
	return model.BiasBullish
}

func directionFor(dir model.SignalType) model.SignalDirection {
	if dir == model.SignalSell {
		return model.DirectionSell
	}
	return model.DirectionBuy
}

// bestPattern returns the highest-confidence pattern aligned with dir.
func bestPattern(patterns []model.PatternMatch, dir model.SignalType) (model.PatternMatch, bool) {
	want := biasFor(dir)
	var best model.PatternMatch
	found := false
	for _, p := range patterns {
		if p.Bias != want {
			continue
		}
		if !found || p.Confidence > best.Confidence {
			best, found = p, true
		}
	}
	return best, found
}

// agreeing counts the indicators whose signal matches dir.
func agreeing(readings []model.IndicatorReading, dir model.SignalType) int {
	want := directionFor(dir)
	n := 0
	for _, r := range readings {
		if r.Signal == want {
			n++
		}
	}
	return n
}

// trendMatches reports close > MA20 > MA50 for BUY and the reverse for SELL.
func trendMatches(t TrendContext, dir model.SignalType) bool {
	if t.MA20 <= 0 || t.MA50 <= 0 {
		return false
	}
	if dir == model.SignalSell {
		return t.Close < t.MA20 && t.MA20 < t.MA50
	}
	return t.Close > t.MA20 && t.MA20 > t.MA50
}

// components normalises the four sub-signals for direction dir.
func components(in Input, dir model.SignalType) (model.Components, model.PatternMatch, bool, int) {
	var c model.Components
	best, ok := bestPattern(in.Patterns, dir)
	if ok {
		c.Pattern = best.Confidence
	}
	agree := agreeing(in.Indicators, dir)
	if len(in.Indicators) > 0 {
		c.Indicator = float64(agree) / float64(len(in.Indicators))
	}
	if trendMatches(in.Trend, dir) {
		c.Trend = 1
	}
	c.Volume = math.Min(math.Max(in.Trend.RelativeVolume, 0)/2, 1)
	return c, best, ok, agree
}

// evidence is the direction-specific share of the components, used to pick a side.
func evidence(c model.Components) float64 {
	return c.Pattern + c.Indicator + c.Trend
}

// Composite is 100 x the weighted component sum.
func Composite(c model.Components, w Weights) float64 {
	return 100 * (c.Pattern*w.Pattern + c.Indicator*w.Indicator + c.Trend*w.Trend + c.Volume*w.Volume)
}

// SentimentMultiplier is 1 + score*relevance*factor, or 1 without sentiment.
func SentimentMultiplier(s *model.SentimentScore, factor float64) float64 {
	if s == nil {
		return 1
	}
	return 1 + s.Score*s.Relevance*factor
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
