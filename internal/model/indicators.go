package model

import "time"

// SignalDirection is the directional call of a single indicator.
type SignalDirection string

const (
	DirectionBuy     SignalDirection = "BUY"
	DirectionSell    SignalDirection = "SELL"
	DirectionNeutral SignalDirection = "NEUTRAL"
)

// Indicator names.
const (
	IndicatorRSI       = "RSI14"
	IndicatorMACD      = "MACD_12_26_9"
	IndicatorBollinger = "BB_20_2"
	IndicatorMATrend   = "MA_20_50"
	IndicatorOBV       = "OBV"
)

// IndicatorReading is one indicator value and its signal for one calculation pass.
type IndicatorReading struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"indicator_name"`
	Value        float64         `json:"value"`
	Signal       SignalDirection `json:"signal"`
	Timeframe    string          `json:"timeframe"`
	CalculatedAt time.Time       `json:"calculated_at"`
}

// SentimentLabel classifies a sentiment score.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// SentimentScore is a bounded news sentiment reading for a symbol.
type SentimentScore struct {
	Symbol     string         `json:"symbol"`
	Score      float64        `json:"score"`     // -1.0 ~ 1.0
	Label      SentimentLabel `json:"label"`
	Relevance  float64        `json:"relevance"` // 0.0 ~ 1.0
	Headlines  int            `json:"headlines"`
	Source     string         `json:"source"`
	ComputedAt time.Time      `json:"computed_at"`
}
