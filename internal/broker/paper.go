package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/portfolio"
)

// ErrNotActionable is returned when a HOLD signal is submitted.
var ErrNotActionable = errors.New("signal is not actionable")

// OrderRecorder persists simulated orders.
type OrderRecorder interface {
	RecordOrder(ctx context.Context, o *model.Order) error
}

// Limits are the account-level caps re-checked against the live portfolio
// before a BUY fills. Zero disables a cap.
type Limits struct {
	MaxOpenPositions int
	MaxDailyLossPct  float64
}

// PaperBroker simulates fills against the paper portfolio. It never talks to
// a real venue. BUY opens a long at the signal entry; SELL closes an
// existing long. Short selling is not simulated.
type PaperBroker struct {
	portfolio *portfolio.Manager
	recorder  OrderRecorder
	limits    Limits
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaperBroker creates a broker. recorder may be nil.
func NewPaperBroker(pm *portfolio.Manager, recorder OrderRecorder, limits Limits, logger *zap.Logger) *PaperBroker {
	return &PaperBroker{portfolio: pm, recorder: recorder, limits: limits, logger: logger, now: time.Now}
}

func newOrderID() string { return "SIM-" + uuid.NewString() }

// Submit turns an actionable signal into a simulated order. Business
// rejections come back as a REJECTED order with a nil error.
func (b *PaperBroker) Submit(ctx context.Context, sig model.TradingSignal) (model.Order, error) {
	if !sig.Actionable() {
		return model.Order{}, ErrNotActionable
	}

	o := model.Order{
		ID:          newOrderID(),
		RunID:       sig.RunID,
		Symbol:      sig.Symbol,
		Price:       sig.EntryPrice,
		StopLoss:    sig.StopLoss,
		TargetPrice: sig.TargetPrice,
		CreatedAt:   b.now(),
	}

	switch sig.Type {
	case model.SignalBuy:
		o.Side = model.SideBuy
		o.Quantity = sig.PositionSize
		if _, held := b.portfolio.Position(sig.Symbol); held {
			o.Status, o.Reason = model.OrderRejected, "position already open"
		} else if reason := b.limitBreached(); reason != "" {
			o.Status, o.Reason = model.OrderRejected, reason
			b.logger.Warn("order blocked by account limit", zap.String("symbol", o.Symbol), zap.String("reason", reason))
		}
	case model.SignalSell:
		o.Side = model.SideSell
		pos, held := b.portfolio.Position(sig.Symbol)
		if !held {
			o.Status, o.Reason = model.OrderRejected, "no long position to close"
		} else {
			o.Quantity = pos.Quantity
			o.Reason = "sell signal"
		}
	}

	if o.Status == "" {
		b.fill(&o)
	}
	return o, b.record(ctx, &o)
}

// CheckExits closes the position in symbol when the bar touched its stop or
// target. The stop is checked first; a gap through the level fills at the open.
func (b *PaperBroker) CheckExits(ctx context.Context, runID, symbol string, bar model.PriceBar) (*model.Order, error) {
	pos, held := b.portfolio.Position(symbol)
	if !held {
		return nil, nil
	}

	var price float64
	var reason string
	switch {
	case pos.StopLoss > 0 && bar.Low <= pos.StopLoss:
		price, reason = pos.StopLoss, "stop_loss"
		if bar.Open < pos.StopLoss {
			price = bar.Open
		}
	case pos.TargetPrice > 0 && bar.High >= pos.TargetPrice:
		price, reason = pos.TargetPrice, "take_profit"
		if bar.Open > pos.TargetPrice {
			price = bar.Open
		}
	default:
		b.portfolio.MarkPrices(map[string]float64{symbol: bar.Close})
		return nil, nil
	}

	o := model.Order{
		ID:          newOrderID(),
		RunID:       runID,
		Symbol:      symbol,
		Side:        model.SideSell,
		Quantity:    pos.Quantity,
		Price:       price,
		StopLoss:    pos.StopLoss,
		TargetPrice: pos.TargetPrice,
		Reason:      reason,
		CreatedAt:   b.now(),
	}
	b.fill(&o)
	return &o, b.record(ctx, &o)
}

// limitBreached reports which cap, if any, blocks a new long right now.
// Signals are scored against one snapshot per run, so earlier fills in the
// same run are only visible here.
func (b *PaperBroker) limitBreached() string {
	p := b.portfolio.Snapshot(nil)
	if b.limits.MaxOpenPositions > 0 && len(p.CurrentPositions) >= b.limits.MaxOpenPositions {
		return string(model.GateMaxPositions)
	}
	if b.limits.MaxDailyLossPct > 0 && p.AccountValue > 0 && p.DailyLossUsed >= p.AccountValue*b.limits.MaxDailyLossPct {
		return string(model.GateDailyLoss)
	}
	return ""
}

func (b *PaperBroker) fill(o *model.Order) {
	pnl, err := b.portfolio.ApplyFill(*o)
	if err != nil {
		o.Status = model.OrderRejected
		o.Reason = err.Error()
		b.logger.Warn("order rejected", zap.String("symbol", o.Symbol), zap.String("side", string(o.Side)), zap.Error(err))
		return
	}
	o.Status = model.OrderFilled
	o.RealizedPnL = pnl
	b.logger.Info("paper order filled",
		zap.String("id", o.ID), zap.String("symbol", o.Symbol), zap.String("side", string(o.Side)),
		zap.Int64("qty", o.Quantity), zap.Float64("price", o.Price), zap.Float64("pnl", pnl))
}

func (b *PaperBroker) record(ctx context.Context, o *model.Order) error {
	if b.recorder == nil {
		return nil
	}
	if err := b.recorder.RecordOrder(ctx, o); err != nil {
		return fmt.Errorf("record order %s: %w", o.ID, err)
	}
	return nil
}
