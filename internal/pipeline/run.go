package pipeline

import (
	"time"

	"github.com/google/uuid"

	"TradeSentinel/internal/screener"
)

// Options are the per-run knobs taken from configuration.
type Options struct {
	Criteria      screener.Criteria
	Timeframe     string
	HistoryDays   int           // bars fetched per symbol
	Concurrency   int           // symbols evaluated at once
	SymbolTimeout time.Duration // bounds one symbol's evaluation, 0 means none
	ExecuteOrders bool
}

// RunContext is built fresh for every run and passed explicitly through it.
type RunContext struct {
	Options
	RunID     string
	StartedAt time.Time
	Universe  []string
}

// NewRunContext stamps a new run over universe.
func NewRunContext(universe []string, opts Options, now time.Time) RunContext {
	if opts.Timeframe == "" {
		opts.Timeframe = "1d"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.HistoryDays <= opts.Criteria.LookbackDays {
		opts.HistoryDays = opts.Criteria.LookbackDays + 1
	}
	u := make([]string, len(universe))
	copy(u, universe)
	return RunContext{
		Options:   opts,
		RunID:     uuid.NewString(),
		StartedAt: now.UTC(),
		Universe:  u,
	}
}
