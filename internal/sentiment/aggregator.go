package sentiment

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"TradeSentinel/internal/model"
)

// DefaultTimeout bounds a single sentiment lookup.
const DefaultTimeout = 5 * time.Second

// Aggregator wraps a Source with a timeout and fails soft: any error or timeout
// yields a nil score.
type Aggregator struct {
	source  Source
	timeout time.Duration
	window  time.Duration
	logger  *zap.Logger
}

// NewAggregator creates an aggregator. A nil source disables sentiment.
func NewAggregator(source Source, timeout, window time.Duration, logger *zap.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Aggregator{source: source, timeout: timeout, window: window, logger: logger}
}

type result struct {
	score *model.SentimentScore
	err   error
}

// Get returns the bounded sentiment for symbol, or nil.
func (a *Aggregator) Get(ctx context.Context, symbol string) *model.SentimentScore {
	if a == nil || a.source == nil {
		return nil
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		s, err := a.source.Sentiment(ctx, symbol, a.window)
		ch <- result{score: s, err: err}
	}()

	select {
	case <-ctx.Done():
		if parent.Err() != nil {
			a.logCancelled(symbol, parent.Err())
			return nil
		}
		a.logger.Warn("sentiment lookup timed out",
			zap.String("symbol", symbol),
			zap.String("source", a.source.Name()),
			zap.Duration("timeout", a.timeout))
		return nil
	case r := <-ch:
		if r.err != nil {
			if parent.Err() != nil {
				a.logCancelled(symbol, parent.Err())
				return nil
			}
			a.logger.Warn("sentiment lookup failed, continuing without",
				zap.String("symbol", symbol),
				zap.String("source", a.source.Name()),
				zap.Error(r.err))
			return nil
		}
		if r.score == nil {
			return nil
		}
		if !finite(r.score.Score) || !finite(r.score.Relevance) {
			a.logger.Warn("sentiment source returned a non-finite score, continuing without",
				zap.String("symbol", symbol),
				zap.String("source", a.source.Name()),
				zap.Float64("score", r.score.Score),
				zap.Float64("relevance", r.score.Relevance))
			return nil
		}
		s := *r.score
		s.Symbol = symbol
		s.Score = math.Max(-1, math.Min(1, s.Score))
		s.Relevance = math.Max(0, math.Min(1, s.Relevance))
		if s.Label == "" {
			s.Label = Label(s.Score)
		}
		return &s
	}
}

// logCancelled records a lookup abandoned because the caller's context ended.
func (a *Aggregator) logCancelled(symbol string, err error) {
	a.logger.Debug("sentiment lookup cancelled",
		zap.String("symbol", symbol),
		zap.String("source", a.source.Name()),
		zap.Error(err))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
