package sentiment

import (
	"context"
	"time"

	"TradeSentinel/internal/model"
)

// Source supplies a sentiment reading for a symbol over the trailing window.
// A nil score with a nil error means there was nothing to score.
type Source interface {
	Name() string
	Sentiment(ctx context.Context, symbol string, window time.Duration) (*model.SentimentScore, error)
}

// StaticSource serves fixed scores, for development and tests.
type StaticSource struct {
	Scores map[string]model.SentimentScore
	Delay  time.Duration
	Err    error
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Sentiment(ctx context.Context, symbol string, _ time.Duration) (*model.SentimentScore, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	score, ok := s.Scores[symbol]
	if !ok {
		return nil, nil
	}
	return &score, nil
}
