package portfolio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"TradeSentinel/internal/model"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portfolio.json")
	m, err := NewManager(path, 10000, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, path
}

func TestNewManagerInitializesCash(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Snapshot(nil)
	if s.Cash != 10000 || s.AccountValue != 10000 {
		t.Errorf("expected cash and value 10000, got %v / %v", s.Cash, s.AccountValue)
	}
	if len(s.CurrentPositions) != 0 {
		t.Errorf("expected no positions, got %d", len(s.CurrentPositions))
	}
}

func TestBuyThenSellRealizesPnL(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.ApplyFill(model.Order{Symbol: "AAPL", Side: model.SideBuy, Quantity: 20, Price: 50, StopLoss: 49, TargetPrice: 53}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	s := m.Snapshot(map[string]float64{"AAPL": 51})
	if s.Cash != 9000 {
		t.Errorf("expected cash 9000, got %v", s.Cash)
	}
	if s.AccountValue != 10020 {
		t.Errorf("expected account value 10020, got %v", s.AccountValue)
	}
	if !s.Holds("AAPL") || s.CurrentPositions["AAPL"].StopLoss != 49 {
		t.Errorf("expected AAPL position with stop 49, got %+v", s.CurrentPositions)
	}

	pnl, err := m.ApplyFill(model.Order{Symbol: "AAPL", Side: model.SideSell, Quantity: 20, Price: 49})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if pnl != -20 {
		t.Errorf("expected realized -20, got %v", pnl)
	}
	s = m.Snapshot(nil)
	if s.Holds("AAPL") {
		t.Error("expected position closed")
	}
	if s.Cash != 9980 || s.DailyLossUsed != 20 || s.RealizedPnL != -20 {
		t.Errorf("unexpected state after loss: %+v", s)
	}
}

func TestAveragingIn(t *testing.T) {
	m, _ := newTestManager(t)
	m.ApplyFill(model.Order{Symbol: "X", Side: model.SideBuy, Quantity: 10, Price: 10})
	m.ApplyFill(model.Order{Symbol: "X", Side: model.SideBuy, Quantity: 10, Price: 20})
	p, ok := m.Position("X")
	if !ok || p.Quantity != 20 || p.AvgCost != 15 {
		t.Errorf("expected 20 @ 15, got %+v", p)
	}
}

func TestFillRejections(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.ApplyFill(model.Order{Symbol: "X", Side: model.SideBuy, Quantity: 1000, Price: 20}); !errors.Is(err, ErrInsufficientCash) {
		t.Errorf("expected ErrInsufficientCash, got %v", err)
	}
	if _, err := m.ApplyFill(model.Order{Symbol: "X", Side: model.SideSell, Quantity: 1, Price: 20}); !errors.Is(err, ErrNoPosition) {
		t.Errorf("expected ErrNoPosition, got %v", err)
	}
	if _, err := m.ApplyFill(model.Order{Symbol: "X", Side: model.SideBuy, Quantity: 0, Price: 20}); err == nil {
		t.Error("expected error for zero quantity")
	}
}

func TestFailedSaveLeavesAccountUntouched(t *testing.T) {
	m, path := newTestManager(t)
	if _, err := m.ApplyFill(model.Order{Symbol: "X", Side: model.SideBuy, Quantity: 10, Price: 50}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// A directory at the temp path makes every later save fail.
	if err := os.Mkdir(path+".tmp", 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := m.ApplyFill(model.Order{Symbol: "Y", Side: model.SideBuy, Quantity: 10, Price: 50}); err == nil {
		t.Fatal("expected save error on buy")
	}
	if _, err := m.ApplyFill(model.Order{Symbol: "X", Side: model.SideSell, Quantity: 10, Price: 40}); err == nil {
		t.Fatal("expected save error on sell")
	}

	s := m.Snapshot(nil)
	if s.Cash != 9500 {
		t.Errorf("expected cash 9500, got %v", s.Cash)
	}
	if s.Holds("Y") {
		t.Error("expected no position in Y after failed save")
	}
	if p, ok := m.Position("X"); !ok || p.Quantity != 10 {
		t.Errorf("expected X still held with 10 shares, got %+v held=%v", p, ok)
	}
	if s.RealizedPnL != 0 || s.DailyLossUsed != 0 {
		t.Errorf("expected no realized loss booked, got pnl=%v daily=%v", s.RealizedPnL, s.DailyLossUsed)
	}
}

func TestStatePersists(t *testing.T) {
	m, path := newTestManager(t)
	m.ApplyFill(model.Order{Symbol: "MSFT", Side: model.SideBuy, Quantity: 5, Price: 100})
	m.ResetDaily("2026-03-02")

	reloaded, err := NewManager(path, 99999, zap.NewNop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	s := reloaded.Snapshot(nil)
	if s.Cash != 9500 {
		t.Errorf("expected persisted cash 9500, got %v", s.Cash)
	}
	if s.TradingDay != "2026-03-02" || !s.Holds("MSFT") {
		t.Errorf("expected persisted day and position, got %+v", s)
	}
}

func TestResetDaily(t *testing.T) {
	m, _ := newTestManager(t)
	m.ApplyFill(model.Order{Symbol: "X", Side: model.SideBuy, Quantity: 10, Price: 10})
	m.ResetDaily("2026-03-02")
	m.ApplyFill(model.Order{Symbol: "X", Side: model.SideSell, Quantity: 10, Price: 9})
	if got := m.Snapshot(nil).DailyLossUsed; got != 10 {
		t.Fatalf("expected daily loss 10, got %v", got)
	}
	m.ResetDaily("2026-03-02")
	if got := m.Snapshot(nil).DailyLossUsed; got != 10 {
		t.Errorf("same-day reset should be a no-op, got %v", got)
	}
	m.ResetDaily("2026-03-03")
	if got := m.Snapshot(nil).DailyLossUsed; got != 0 {
		t.Errorf("expected daily loss cleared, got %v", got)
	}
}
