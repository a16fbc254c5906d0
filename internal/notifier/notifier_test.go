package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"TradeSentinel/internal/model"
)

func TestFormatRunReport(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	r := &model.RunReport{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Universe:   20,
		Candidates: []model.Candidate{{Symbol: "AAPL"}},
		Signals: []model.TradingSignal{
			{Symbol: "AAPL", Type: model.SignalBuy, Strength: model.StrengthStrong, CompositeScore: 77.2,
				EntryPrice: 50, StopLoss: 49, TargetPrice: 53, RiskRewardRatio: 3, PositionSize: 20},
			{Symbol: "MSFT", Type: model.SignalHold, CompositeScore: 51},
		},
		Orders:   []model.Order{{Symbol: "AAPL", Side: model.SideBuy, Quantity: 20, Price: 50, Status: model.OrderFilled}},
		Failures: []model.SymbolFailure{{Symbol: "BAD", Stage: "collect"}},
	}
	msg := FormatRunReport(r)
	for _, want := range []string{"Universe: 20", "Candidates: 1", "AAPL STRONG BUY score 77.2", "size 20", "BUY AAPL 20 @ 50.00 [FILLED]", "BAD(collect)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in report:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "MSFT") {
		t.Error("HOLD signals should not be listed as actionable")
	}
}

func TestFormatSignalAndPortfolio(t *testing.T) {
	s := model.TradingSignal{Symbol: "TSLA", Type: model.SignalHold, CompositeScore: 55,
		Rationale: model.Rationale{AgreeingIndicators: 1, TotalIndicators: 4,
			FailedGates: []model.GateFailure{model.GateIndicatorAgree, model.GateRiskReward}}}
	out := FormatSignal(s)
	if !strings.Contains(out, "1/4") || !strings.Contains(out, "INDICATOR_AGREEMENT, RISK_REWARD") {
		t.Errorf("unexpected signal format:\n%s", out)
	}

	p := model.PortfolioState{AccountValue: 10020, Cash: 9000, CurrentPositions: map[string]model.Position{
		"AAPL": {Symbol: "AAPL", Quantity: 20, AvgCost: 50, LastPrice: 51, StopLoss: 49, TargetPrice: 53},
	}}
	out = FormatPortfolio(p)
	if !strings.Contains(out, "$10020.00") || !strings.Contains(out, "AAPL 20 @ 50.00 → 51.00 (+20.00)") {
		t.Errorf("unexpected portfolio format:\n%s", out)
	}
	if !strings.Contains(FormatPortfolio(model.PortfolioState{}), "No open positions") {
		t.Error("expected empty portfolio note")
	}
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "", zap.NewNop())
	n.BaseURL = srv.URL
	if err := n.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["chat_id"] != "42" || got["text"] != "hi" || got["parse_mode"] != "HTML" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("T", "1", "", zap.NewNop())
	n.BaseURL = srv.URL
	n.RetryBase = time.Millisecond
	if err := n.SendWithRetry(context.Background(), "x", 3); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}

	calls.Store(-100)
	if err := n.SendWithRetry(context.Background(), "x", 1); err == nil {
		t.Error("expected exhausted retries error")
	}
}

func TestPollingDispatchesCommands(t *testing.T) {
	var (
		mu      sync.Mutex
		replies []string
		polls   atomic.Int32
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if polls.Add(1) == 1 {
				fmt.Fprint(w, `{"ok":true,"result":[
{"update_id":1,"message":{"text":"/portfolio","chat":{"id":42}}},
{"update_id":2,"message":{"text":"/scan","chat":{"id":7}}}]}`)
				return
			}
			cancel()
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			replies = append(replies, body["text"])
			mu.Unlock()
			fmt.Fprint(w, `{"ok":true}`)
		}
	}))
	defer srv.Close()

	n := NewTelegramNotifier("T", "42", "", zap.NewNop())
	n.BaseURL = srv.URL
	var handled []string
	n.StartPolling(ctx, func(_ context.Context, cmd string) string {
		handled = append(handled, cmd)
		return "ok " + cmd
	})

	if len(handled) != 1 || handled[0] != "/portfolio" {
		t.Errorf("expected only the configured chat's command, got %v", handled)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(replies) != 1 || replies[0] != "ok /portfolio" {
		t.Errorf("expected one reply, got %v", replies)
	}
}

func TestSplitMessage(t *testing.T) {
	if parts := splitMessage("short", 10); len(parts) != 1 || parts[0] != "short" {
		t.Errorf("expected single part, got %v", parts)
	}

	text := "aaaa\nbbbb\ncccc\n"
	parts := splitMessage(text, 10)
	if len(parts) != 2 || parts[0] != "aaaa\nbbbb\n" || parts[1] != "cccc\n" {
		t.Errorf("expected split on line boundary, got %q", parts)
	}

	long := strings.Repeat("x", 25)
	parts = splitMessage(long, 10)
	if len(parts) != 3 || strings.Join(parts, "") != long {
		t.Errorf("expected oversized line cut into 3 parts, got %q", parts)
	}
	for _, p := range parts {
		if len(p) > 10 {
			t.Errorf("part exceeds limit: %q", p)
		}
	}
}

func TestSendRejectedByAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("T", "1", "", zap.NewNop())
	n.BaseURL = srv.URL
	if err := n.Send(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected API description in error, got %v", err)
	}
}
