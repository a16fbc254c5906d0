package model

import "time"

// SignalType is the action of a trading signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Strength grades a BUY or SELL classification.
type Strength string

const (
	StrengthStrong   Strength = "STRONG"
	StrengthModerate Strength = "MODERATE"
	StrengthNone     Strength = "NONE"
)

// GateFailure names a validation gate that forced a HOLD.
type GateFailure string

const (
	GateNoDirection      GateFailure = "NO_DIRECTION"
	GateScoreNeutral     GateFailure = "SCORE_NEUTRAL"
	GatePatternConf      GateFailure = "PATTERN_CONFIDENCE"
	GateIndicatorAgree   GateFailure = "INDICATOR_AGREEMENT"
	GateRiskReward       GateFailure = "RISK_REWARD"
	GateSizingInfeasible GateFailure = "SIZING_INFEASIBLE"
	GateNoStop           GateFailure = "NO_VALID_STOP"
	GateDailyLoss        GateFailure = "DAILY_LOSS_LIMIT"
	GateMaxPositions     GateFailure = "MAX_POSITIONS"
)

// Components holds the four normalized score components, each 0.0 ~ 1.0.
type Components struct {
	Pattern   float64 `json:"pattern"`
	Indicator float64 `json:"indicator"`
	Trend     float64 `json:"trend"`
	Volume    float64 `json:"volume"`
}

// Rationale is the structured breakdown behind a TradingSignal.
type Rationale struct {
	Direction           SignalType    `json:"direction"`
	Components          Components    `json:"components"`
	RawScore            float64       `json:"raw_score"`
	SentimentMultiplier float64       `json:"sentiment_multiplier"`
	BestPattern         string        `json:"best_pattern,omitempty"`
	AgreeingIndicators  int           `json:"agreeing_indicators"`
	TotalIndicators     int           `json:"total_indicators"`
	StopSource          string        `json:"stop_source,omitempty"`
	TargetSource        string        `json:"target_source,omitempty"`
	FailedGates         []GateFailure `json:"failed_gates,omitempty"`
	Notes               []string      `json:"notes,omitempty"`
}

// TradingSignal is the scorer's output for one symbol in one run.
type TradingSignal struct {
	RunID           string     `json:"run_id"`
	Symbol          string     `json:"symbol"`
	Type            SignalType `json:"signal_type"`
	Strength        Strength   `json:"strength"`
	CompositeScore  float64    `json:"composite_score"`
	EntryPrice      float64    `json:"entry_price"`
	StopLoss        float64    `json:"stop_loss"`
	TargetPrice     float64    `json:"target_price"`
	RiskRewardRatio float64    `json:"risk_reward_ratio"`
	PositionSize    int64      `json:"position_size"`
	Confidence      float64    `json:"confidence"`
	Rationale       Rationale  `json:"rationale"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Actionable reports whether the signal is BUY or SELL.
func (s TradingSignal) Actionable() bool { return s.Type != SignalHold }
