package recorder

import (
	"context"

	"TradeSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(context.Context, *model.RunReport) error      { return nil }
func (n *NoopRecorder) RecordSymbol(context.Context, *SymbolRecord) error      { return nil }
func (n *NoopRecorder) RecordOrder(context.Context, *model.Order) error        { return nil }
func (n *NoopRecorder) RecentSignals(context.Context, string, int) ([]model.TradingSignal, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
