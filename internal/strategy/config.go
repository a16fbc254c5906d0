package strategy

import (
	"math"

	"TradeSentinel/internal/model"
)

// Weights are the composite score weights. They must be non-negative and sum to 1.
type Weights struct {
	Pattern   float64 `yaml:"pattern"`
	Indicator float64 `yaml:"indicator"`
	Trend     float64 `yaml:"trend"`
	Volume    float64 `yaml:"volume"`
}

// Thresholds split the 0-100 composite scale into classification bands.
type Thresholds struct {
	StrongBuy  float64 `yaml:"strong_buy"`
	Buy        float64 `yaml:"buy"`
	Sell       float64 `yaml:"sell"`
	StrongSell float64 `yaml:"strong_sell"`
}

// Config is the full scorer configuration.
type Config struct {
	Weights               Weights    `yaml:"weights"`
	Thresholds            Thresholds `yaml:"thresholds"`
	MinPatternConfidence  float64    `yaml:"min_pattern_confidence"`
	MinAgreeingIndicators int        `yaml:"min_agreeing_indicators"`
	MinRiskReward         float64    `yaml:"min_risk_reward"`
	RiskPerTradePct       float64    `yaml:"risk_per_trade_pct"`
	MaxPositionPct        float64    `yaml:"max_position_pct"`
	MaxStopPct            float64    `yaml:"max_stop_pct"`
	ATRStopMultiple       float64    `yaml:"atr_stop_multiple"`
	SentimentFactor       float64    `yaml:"sentiment_factor"`
	MaxDailyLossPct       float64    `yaml:"max_daily_loss_pct"` // 0 disables
	MaxOpenPositions      int        `yaml:"max_open_positions"` // 0 disables
}

// DefaultConfig returns the documented default weights, bands and risk limits.
func DefaultConfig() Config {
	return Config{
		Weights:               Weights{Pattern: 0.35, Indicator: 0.30, Trend: 0.20, Volume: 0.15},
		Thresholds:            Thresholds{StrongBuy: 75, Buy: 60, Sell: 40, StrongSell: 25},
		MinPatternConfidence:  0.60,
		MinAgreeingIndicators: 2,
		MinRiskReward:         3.0,
		RiskPerTradePct:       0.01,
		MaxPositionPct:        0.10,
		MaxStopPct:            0.02,
		ATRStopMultiple:       2.0,
		SentimentFactor:       0.2,
		MaxDailyLossPct:       0.03,
		MaxOpenPositions:      10,
	}
}

func pct(field string, v float64) error {
	if v <= 0 || v > 1 {
		return &model.ConfigError{Field: field, Reason: "must be in (0,1]"}
	}
	return nil
}

// Validate checks weights, bands and risk limits. Errors are fatal at startup.
func (c Config) Validate() error {
	w := c.Weights
	if w.Pattern < 0 || w.Indicator < 0 || w.Trend < 0 || w.Volume < 0 {
		return &model.ConfigError{Field: "scoring.weights", Reason: "weights must be non-negative"}
	}
	if sum := w.Pattern + w.Indicator + w.Trend + w.Volume; math.Abs(sum-1) > 1e-6 {
		return &model.ConfigError{Field: "scoring.weights", Reason: "weights must sum to 1"}
	}
	t := c.Thresholds
	if !(0 <= t.StrongSell && t.StrongSell < t.Sell && t.Sell < t.Buy && t.Buy < t.StrongBuy && t.StrongBuy <= 100) {
		return &model.ConfigError{Field: "scoring.thresholds", Reason: "need 0 <= strong_sell < sell < buy < strong_buy <= 100"}
	}
	if c.MinPatternConfidence < 0 || c.MinPatternConfidence > 1 {
		return &model.ConfigError{Field: "scoring.min_pattern_confidence", Reason: "must be in [0,1]"}
	}
	if c.MinAgreeingIndicators < 0 {
		return &model.ConfigError{Field: "scoring.min_agreeing_indicators", Reason: "must be non-negative"}
	}
	if c.MinRiskReward <= 0 {
		return &model.ConfigError{Field: "scoring.min_risk_reward", Reason: "must be positive"}
	}
	for field, v := range map[string]float64{
		"scoring.risk_per_trade_pct": c.RiskPerTradePct,
		"scoring.max_position_pct":   c.MaxPositionPct,
		"scoring.max_stop_pct":       c.MaxStopPct,
	} {
		if err := pct(field, v); err != nil {
			return err
		}
	}
	if c.ATRStopMultiple < 0 || c.SentimentFactor < 0 || c.MaxDailyLossPct < 0 || c.MaxOpenPositions < 0 {
		return &model.ConfigError{Field: "scoring", Reason: "multipliers and limits must be non-negative"}
	}
	return nil
}

// classify maps a composite score to a signal type and strength.
// BUY covers [Buy, 100], strong above StrongBuy; SELL covers [0, Sell], strong below StrongSell.
func (c Config) classify(score float64) (model.SignalType, model.Strength) {
	t := c.Thresholds
	switch {
	case score > t.StrongBuy:
		return model.SignalBuy, model.StrengthStrong
	case score >= t.Buy:
		return model.SignalBuy, model.StrengthModerate
	case score < t.StrongSell:
		return model.SignalSell, model.StrengthStrong
	case score <= t.Sell:
		return model.SignalSell, model.StrengthModerate
	}
	return model.SignalHold, model.StrengthNone
}
