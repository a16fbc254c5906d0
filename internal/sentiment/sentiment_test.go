package sentiment

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"TradeSentinel/internal/model"
)

func TestScoreText(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"Analysts upgrade AAPL on strong revenue growth", 1},
		{"Lawsuit and layoffs weigh on outlook", -1},
		{"Profit beat offset by guidance cut", 1.0 / 3},
		{"Company schedules annual meeting", 0},
		{"Shares surge; rally gains steam", 1},
	}
	for _, tt := range tests {
		if got := ScoreText(tt.text); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ScoreText(%q): expected %.3f, got %.3f", tt.text, tt.want, got)
		}
	}
}

func TestLabel(t *testing.T) {
	if Label(0.11) != model.SentimentPositive || Label(-0.11) != model.SentimentNegative || Label(0.1) != model.SentimentNeutral {
		t.Error("label thresholds are exclusive at +/-0.1")
	}
}

func TestScoreHeadlinesRelevance(t *testing.T) {
	s := ScoreHeadlines("TSLA", []string{"strong beat", "weak miss", "no keywords", "bullish upgrade", "nothing"})
	if s == nil {
		t.Fatal("expected a score")
	}
	if math.Abs(s.Relevance-0.5) > 1e-9 {
		t.Errorf("expected relevance 0.5 for 5 headlines, got %.2f", s.Relevance)
	}
	if math.Abs(s.Score-0.2) > 1e-9 {
		t.Errorf("expected score 0.2, got %.3f", s.Score)
	}
	if ScoreHeadlines("TSLA", nil) != nil {
		t.Error("expected nil score without headlines")
	}
}

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<item><title>NVDA shares surge after earnings beat</title><description>Strong growth</description><pubDate>Tue, 14 May 2024 14:00:00 +0000</pubDate></item>
<item><title>Analyst warning on valuation</title><description></description><pubDate>Tue, 14 May 2024 10:00:00 +0000</pubDate></item>
<item><title>Old news: downgrade</title><description></description><pubDate>Mon, 01 Jan 2024 10:00:00 +0000</pubDate></item>
</channel></rss>`

func TestYahooRSSSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("s") != "NVDA" {
			t.Errorf("expected symbol query NVDA, got %q", r.URL.Query().Get("s"))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	src := NewYahooRSSSource("")
	src.BaseURL = srv.URL
	src.now = func() time.Time { return time.Date(2024, 5, 14, 18, 0, 0, 0, time.UTC) }

	score, err := src.Sentiment(context.Background(), "NVDA", 48*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if score == nil {
		t.Fatal("expected a score")
	}
	if score.Headlines != 2 {
		t.Errorf("expected 2 headlines inside the window, got %d", score.Headlines)
	}
	// (1 + -1) / 2
	if score.Score != 0 {
		t.Errorf("expected score 0, got %.3f", score.Score)
	}
}

func TestYahooRSSSourceUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	src := NewYahooRSSSource("")
	src.BaseURL = srv.URL
	_, err := src.Sentiment(context.Background(), "AMD", time.Hour)
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestAggregatorFailsSoftOnTimeout(t *testing.T) {
	src := &StaticSource{
		Scores: map[string]model.SentimentScore{"AMD": {Score: 0.5, Relevance: 1}},
		Delay:  time.Second,
	}
	core, logs := observer.New(zapcore.DebugLevel)
	agg := NewAggregator(src, 20*time.Millisecond, time.Hour, zap.New(core))
	start := time.Now()
	if got := agg.Get(context.Background(), "AMD"); got != nil {
		t.Errorf("expected nil on timeout, got %+v", got)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
	if logs.FilterMessage("sentiment lookup timed out").Len() != 1 {
		t.Errorf("expected a timeout warning, got %v", logs.All())
	}
}

func TestAggregatorCancelledIsNotATimeout(t *testing.T) {
	src := &StaticSource{
		Scores: map[string]model.SentimentScore{"AMD": {Score: 0.5, Relevance: 1}},
		Delay:  time.Second,
	}
	core, logs := observer.New(zapcore.DebugLevel)
	agg := NewAggregator(src, time.Minute, time.Hour, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := agg.Get(ctx, "AMD"); got != nil {
		t.Errorf("expected nil when cancelled, got %+v", got)
	}
	if logs.FilterMessage("sentiment lookup cancelled").Len() != 1 {
		t.Errorf("expected cancellation logged, got %v", logs.All())
	}
	if n := logs.FilterLevelExact(zapcore.WarnLevel).Len(); n != 0 {
		t.Errorf("expected no warnings for a cancelled run, got %d", n)
	}
}

func TestAggregatorDropsNonFiniteScores(t *testing.T) {
	src := &StaticSource{Scores: map[string]model.SentimentScore{
		"NAN": {Score: math.NaN(), Relevance: 1},
		"INF": {Score: 0.5, Relevance: math.Inf(1)},
	}}
	agg := NewAggregator(src, time.Second, time.Hour, zap.NewNop())
	for _, sym := range []string{"NAN", "INF"} {
		if got := agg.Get(context.Background(), sym); got != nil {
			t.Errorf("%s: expected nil for a non-finite score, got %+v", sym, got)
		}
	}
}

func TestAggregatorFailsSoftOnError(t *testing.T) {
	agg := NewAggregator(&StaticSource{Err: errors.New("boom")}, time.Second, time.Hour, zap.NewNop())
	if got := agg.Get(context.Background(), "AMD"); got != nil {
		t.Errorf("expected nil on error, got %+v", got)
	}
}

func TestAggregatorClampsScore(t *testing.T) {
	src := &StaticSource{Scores: map[string]model.SentimentScore{"GME": {Score: 3, Relevance: 2}}}
	got := NewAggregator(src, time.Second, time.Hour, zap.NewNop()).Get(context.Background(), "GME")
	if got == nil {
		t.Fatal("expected a score")
	}
	if got.Score != 1 || got.Relevance != 1 || got.Label != model.SentimentPositive {
		t.Errorf("expected clamped positive score, got %+v", got)
	}
}

func TestNilAggregator(t *testing.T) {
	var agg *Aggregator
	if agg.Get(context.Background(), "X") != nil {
		t.Error("nil aggregator should return nil")
	}
}
