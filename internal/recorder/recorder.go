package recorder

import (
	"context"
	"encoding/json"

	"TradeSentinel/internal/model"
)

// SymbolRecord is everything one run produced for one symbol. It is
// written in a single transaction.
type SymbolRecord struct {
	RunID      string
	Symbol     string
	Patterns   []model.PatternMatch
	Indicators []model.IndicatorReading
	Sentiment  *model.SentimentScore // nil when unavailable
	Signal     *model.TradingSignal
}

// Recorder persists run history. All tables are append-only.
type Recorder interface {
	RecordRun(ctx context.Context, r *model.RunReport) error
	RecordSymbol(ctx context.Context, rec *SymbolRecord) error
	RecordOrder(ctx context.Context, o *model.Order) error
	// RecentSignals returns the latest signals for symbol, newest first.
	RecentSignals(ctx context.Context, symbol string, limit int) ([]model.TradingSignal, error)
	Close() error
}

func detailJSON(d model.PatternDetail) string {
	if d == nil {
		return "{}"
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func rationaleJSON(r model.Rationale) string {
	b, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(b)
}
