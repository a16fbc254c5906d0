package broker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/portfolio"
)

type memRecorder struct{ orders []model.Order }

func (r *memRecorder) RecordOrder(_ context.Context, o *model.Order) error {
	r.orders = append(r.orders, *o)
	return nil
}

func newTestBroker(t *testing.T) (*PaperBroker, *portfolio.Manager, *memRecorder) {
	t.Helper()
	return newLimitedBroker(t, Limits{})
}

func newLimitedBroker(t *testing.T, limits Limits) (*PaperBroker, *portfolio.Manager, *memRecorder) {
	t.Helper()
	pm, err := portfolio.NewManager(filepath.Join(t.TempDir(), "p.json"), 10000, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	rec := &memRecorder{}
	return NewPaperBroker(pm, rec, limits, zap.NewNop()), pm, rec
}

func buySignal() model.TradingSignal {
	return model.TradingSignal{
		RunID: "r1", Symbol: "AAPL", Type: model.SignalBuy, EntryPrice: 50,
		StopLoss: 49, TargetPrice: 53, PositionSize: 20,
	}
}

func TestSubmitBuy(t *testing.T) {
	b, pm, rec := newTestBroker(t)
	o, err := b.Submit(context.Background(), buySignal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != model.OrderFilled || o.Quantity != 20 || !strings.HasPrefix(o.ID, "SIM-") {
		t.Errorf("expected filled SIM order of 20, got %+v", o)
	}
	if len(rec.orders) != 1 {
		t.Errorf("expected order recorded, got %d", len(rec.orders))
	}
	if got := pm.Snapshot(nil).Cash; got != 9000 {
		t.Errorf("expected cash 9000, got %v", got)
	}

	again, _ := b.Submit(context.Background(), buySignal())
	if again.Status != model.OrderRejected {
		t.Errorf("expected duplicate buy rejected, got %+v", again)
	}
}

func TestSubmitBuyRechecksOpenPositionCap(t *testing.T) {
	b, pm, rec := newLimitedBroker(t, Limits{MaxOpenPositions: 10})
	for i := 0; i < 9; i++ {
		sym := fmt.Sprintf("S%d", i)
		if _, err := pm.ApplyFill(model.Order{Symbol: sym, Side: model.SideBuy, Quantity: 1, Price: 10}); err != nil {
			t.Fatalf("seed %s: %v", sym, err)
		}
	}

	// Both signals were scored against the same nine-position snapshot.
	first := buySignal()
	first.Symbol, first.PositionSize = "NEW1", 2
	second := buySignal()
	second.Symbol, second.PositionSize = "NEW2", 2

	o1, err := b.Submit(context.Background(), first)
	if err != nil || o1.Status != model.OrderFilled {
		t.Fatalf("expected first buy filled, got %+v %v", o1, err)
	}
	o2, err := b.Submit(context.Background(), second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o2.Status != model.OrderRejected || o2.Reason != string(model.GateMaxPositions) {
		t.Errorf("expected second buy rejected with %s, got %+v", model.GateMaxPositions, o2)
	}
	if n := len(pm.Snapshot(nil).CurrentPositions); n != 10 {
		t.Errorf("expected 10 positions, got %d", n)
	}
	if last := rec.orders[len(rec.orders)-1]; last.Symbol != "NEW2" || last.Status != model.OrderRejected {
		t.Errorf("expected blocked order recorded, got %+v", last)
	}
}

func TestSubmitBuyRechecksDailyLoss(t *testing.T) {
	b, pm, _ := newLimitedBroker(t, Limits{MaxDailyLossPct: 0.03})
	// Lose 400 on one round trip: 4% of a ~9600 account.
	pm.ApplyFill(model.Order{Symbol: "L", Side: model.SideBuy, Quantity: 100, Price: 50})
	pm.ApplyFill(model.Order{Symbol: "L", Side: model.SideSell, Quantity: 100, Price: 46})

	o, err := b.Submit(context.Background(), buySignal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != model.OrderRejected || o.Reason != string(model.GateDailyLoss) {
		t.Errorf("expected buy rejected with %s, got %+v", model.GateDailyLoss, o)
	}
	if pm.Snapshot(nil).Holds("AAPL") {
		t.Error("expected no position opened")
	}

	// Sells are never blocked by the caps.
	pm.ApplyFill(model.Order{Symbol: "AAPL", Side: model.SideBuy, Quantity: 10, Price: 50})
	sell, _ := b.Submit(context.Background(), model.TradingSignal{Symbol: "AAPL", Type: model.SignalSell, EntryPrice: 51})
	if sell.Status != model.OrderFilled {
		t.Errorf("expected sell filled under loss cap, got %+v", sell)
	}
}

func TestSubmitHold(t *testing.T) {
	b, _, _ := newTestBroker(t)
	if _, err := b.Submit(context.Background(), model.TradingSignal{Type: model.SignalHold}); !errors.Is(err, ErrNotActionable) {
		t.Errorf("expected ErrNotActionable, got %v", err)
	}
}

func TestSubmitSellWithoutPositionRejected(t *testing.T) {
	b, _, rec := newTestBroker(t)
	o, err := b.Submit(context.Background(), model.TradingSignal{Symbol: "AAPL", Type: model.SignalSell, EntryPrice: 50, PositionSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != model.OrderRejected {
		t.Errorf("expected rejection without position, got %+v", o)
	}
	if len(rec.orders) != 1 {
		t.Error("expected rejected order recorded")
	}
}

func TestSubmitSellClosesLong(t *testing.T) {
	b, pm, _ := newTestBroker(t)
	b.Submit(context.Background(), buySignal())
	o, _ := b.Submit(context.Background(), model.TradingSignal{Symbol: "AAPL", Type: model.SignalSell, EntryPrice: 52, PositionSize: 3})
	if o.Status != model.OrderFilled || o.Quantity != 20 || o.RealizedPnL != 40 {
		t.Errorf("expected full close with pnl 40, got %+v", o)
	}
	if pm.Snapshot(nil).Holds("AAPL") {
		t.Error("expected position closed")
	}
}

func TestCheckExits(t *testing.T) {
	tests := []struct {
		name      string
		bar       model.PriceBar
		wantExit  bool
		wantPrice float64
		reason    string
	}{
		{"inside range", model.PriceBar{Open: 50, High: 52, Low: 49.5, Close: 51}, false, 0, ""},
		{"stop touched", model.PriceBar{Open: 50, High: 50.5, Low: 48.5, Close: 49}, true, 49, "stop_loss"},
		{"gap below stop", model.PriceBar{Open: 47, High: 48, Low: 46, Close: 47}, true, 47, "stop_loss"},
		{"target touched", model.PriceBar{Open: 51, High: 53.5, Low: 50.5, Close: 53}, true, 53, "take_profit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, pm, _ := newTestBroker(t)
			b.Submit(context.Background(), buySignal())
			o, err := b.CheckExits(context.Background(), "r2", "AAPL", tt.bar)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (o != nil) != tt.wantExit {
				t.Fatalf("expected exit=%v, got %+v", tt.wantExit, o)
			}
			if !tt.wantExit {
				if p, _ := pm.Position("AAPL"); p.LastPrice != tt.bar.Close {
					t.Errorf("expected position marked at %v, got %v", tt.bar.Close, p.LastPrice)
				}
				return
			}
			if o.Price != tt.wantPrice || o.Reason != tt.reason || o.Status != model.OrderFilled {
				t.Errorf("expected %s at %v, got %+v", tt.reason, tt.wantPrice, o)
			}
		})
	}
}

func TestCheckExitsNoPosition(t *testing.T) {
	b, _, _ := newTestBroker(t)
	o, err := b.CheckExits(context.Background(), "r", "AAPL", model.PriceBar{Low: 1, High: 100})
	if o != nil || err != nil {
		t.Errorf("expected nothing, got %+v %v", o, err)
	}
}
