package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"TradeSentinel/internal/collector"
	"TradeSentinel/internal/indicator"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/pattern"
	"TradeSentinel/internal/pipeline"
	"TradeSentinel/internal/portfolio"
	"TradeSentinel/internal/screener"
	"TradeSentinel/internal/snapshot"
	"TradeSentinel/internal/strategy"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestMarketHoursIsOpen(t *testing.T) {
	loc := newYork(t)
	h := MarketHours{Location: loc, Open: 9*60 + 30, Close: 16 * 60}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", time.Date(2026, 10, 14, 9, 29, 0, 0, loc), false},
		{"at open", time.Date(2026, 10, 14, 9, 30, 0, 0, loc), true},
		{"midday", time.Date(2026, 10, 14, 12, 0, 0, 0, loc), true},
		{"at close", time.Date(2026, 10, 14, 16, 0, 0, 0, loc), false},
		{"saturday", time.Date(2026, 10, 17, 12, 0, 0, 0, loc), false},
		{"utc instant inside session", time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		if got := h.IsOpen(tt.at); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func newTestScheduler(t *testing.T, n Notifier) *Scheduler {
	t.Helper()
	logger := zap.NewNop()
	pm, err := portfolio.NewManager(filepath.Join(t.TempDir(), "p.json"), 10000, logger)
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	scorer, err := strategy.NewScorer(strategy.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("scorer: %v", err)
	}
	board := snapshot.NewBoard()
	p := pipeline.New(pipeline.Deps{
		Collector: collector.NewCollector(&collector.MockFetcher{End: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)}, nil, 2, logger),
		Detector:  pattern.NewDetector(pattern.DefaultConfig(), logger),
		Engine:    indicator.NewEngine(indicator.NewManualBackend(), logger),
		Scorer:    scorer,
		Portfolio: pm,
		Board:     board,
		Logger:    logger,
	})
	opts := pipeline.Options{Criteria: screener.DefaultCriteria(), HistoryDays: 120, Concurrency: 2}
	hours := MarketHours{Location: time.UTC, Open: 9*60 + 30, Close: 16 * 60}
	return NewScheduler(context.Background(), p, pm, board, n, []string{"AAPL", "MSFT"}, opts, hours, true, logger)
}

func TestRegisterAll(t *testing.T) {
	s := newTestScheduler(t, nil)
	if err := s.RegisterAll("0 */30 * * * 1-5", "0 25 9 * * 1-5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(s.Cron.Entries()); got != 2 {
		t.Errorf("expected 2 jobs, got %d", got)
	}
	if err := s.RegisterAll("not a cron", "0 25 9 * * 1-5"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestCycleSkipsOutsideMarketHours(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestScheduler(t, n)
	s.Pipeline = nil // would panic if the cycle ran
	s.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }
	s.cycle()
	if len(n.sent) != 0 {
		t.Errorf("expected no notification, got %d", len(n.sent))
	}
}

func TestRunNowRejectsOverlap(t *testing.T) {
	s := newTestScheduler(t, nil)
	s.running.Store(true)
	if _, err := s.RunNow(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}
}

func TestRunNowPublishesAndResetsDay(t *testing.T) {
	s := newTestScheduler(t, nil)
	s.now = func() time.Time { return time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC) }
	rep, err := s.RunNow(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Universe != 2 {
		t.Errorf("expected universe 2, got %d", rep.Universe)
	}
	if latest, ok := s.Board.Latest(); !ok || latest.RunID != rep.RunID {
		t.Errorf("expected board to hold run %s", rep.RunID)
	}
	if got := s.Portfolio.Snapshot(nil).TradingDay; got != "2026-10-14" {
		t.Errorf("expected trading day 2026-10-14, got %q", got)
	}
}

func TestHandleCommand(t *testing.T) {
	s := newTestScheduler(t, nil)
	ctx := context.Background()

	if got := s.HandleCommand(ctx, "/help"); !strings.Contains(got, "/scan") {
		t.Errorf("expected help text, got %q", got)
	}
	if got := s.HandleCommand(ctx, "/signals"); got != "No actionable signals yet." {
		t.Errorf("expected empty signals reply, got %q", got)
	}
	if got := s.HandleCommand(ctx, "/signal"); !strings.HasPrefix(got, "usage") {
		t.Errorf("expected usage, got %q", got)
	}
	if got := s.HandleCommand(ctx, "/signal zzz"); !strings.Contains(got, "ZZZ") {
		t.Errorf("expected unknown symbol reply, got %q", got)
	}
	if got := s.HandleCommand(ctx, "/portfolio"); !strings.Contains(got, "Cash: $10000.00") {
		t.Errorf("expected portfolio cash, got %q", got)
	}

	s.Board.Publish(model.RunReport{RunID: "r1", Signals: []model.TradingSignal{
		{Symbol: "AAPL", Type: model.SignalBuy, Strength: model.StrengthStrong, CompositeScore: 80},
		{Symbol: "MSFT", Type: model.SignalHold, CompositeScore: 50},
	}})
	got := s.HandleCommand(ctx, "/signals")
	if !strings.Contains(got, "AAPL") || strings.Contains(got, "MSFT") {
		t.Errorf("expected only AAPL listed, got %q", got)
	}
	if got := s.HandleCommand(ctx, "/scan"); !strings.Contains(got, "TradeSentinel scan") {
		t.Errorf("expected run report, got %q", got)
	}
}
