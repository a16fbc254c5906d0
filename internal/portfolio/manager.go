package portfolio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"TradeSentinel/internal/model"
)

var (
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrNoPosition       = errors.New("no open position")
)

// Manager owns the paper account with concurrency safety. Every mutation is
// persisted before it returns.
type Manager struct {
	mu       sync.Mutex
	state    *State
	filePath string
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a Manager, loading or initializing state from disk.
func NewManager(filePath string, initialCapital float64, logger *zap.Logger) (*Manager, error) {
	state, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}

	// Initialize if fresh state
	if state.InitialCapital.IsZero() {
		state.InitialCapital = decimal.NewFromFloat(initialCapital)
		state.Cash = state.InitialCapital
	}

	m := &Manager{state: state, filePath: filePath, logger: logger, now: time.Now}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Snapshot returns the risk view of the account. Positions are marked at
// prices[symbol] when present, otherwise at their last known price.
func (m *Manager) Snapshot(prices map[string]float64) model.PortfolioState {
	m.mu.Lock()
	defer m.mu.Unlock()

	value := m.state.Cash
	positions := make(map[string]model.Position, len(m.state.Positions))
	for sym, p := range m.state.Positions {
		if px, ok := prices[sym]; ok && px > 0 {
			p.LastPrice = px
		}
		if p.LastPrice == 0 {
			p.LastPrice = p.AvgCost
		}
		value = value.Add(decimal.NewFromInt(p.Quantity).Mul(decimal.NewFromFloat(p.LastPrice)))
		positions[sym] = p
	}

	return model.PortfolioState{
		AccountValue:     value.Round(2).InexactFloat64(),
		Cash:             m.state.Cash.Round(2).InexactFloat64(),
		CurrentPositions: positions,
		DailyLossUsed:    m.state.DailyRealizedLoss.Round(2).InexactFloat64(),
		RealizedPnL:      m.state.RealizedPnL.Round(2).InexactFloat64(),
		TradingDay:       m.state.TradingDay,
		AsOf:             m.now(),
	}
}

// Position returns the open position for symbol.
func (m *Manager) Position(symbol string) (model.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.Positions[symbol]
	return p, ok
}

// ApplyFill books a filled order and returns the realized P&L it produced.
// BUY opens or adds to a long; SELL reduces it. Shorting is not supported.
// The fill is applied to a copy of the account, which replaces the live
// state only once it has been saved.
func (m *Manager) ApplyFill(o model.Order) (float64, error) {
	if o.Quantity <= 0 || o.Price <= 0 {
		return 0, fmt.Errorf("invalid fill %s %d@%v", o.Symbol, o.Quantity, o.Price)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	qty := decimal.NewFromInt(o.Quantity)
	px := decimal.NewFromFloat(o.Price)
	notional := qty.Mul(px)

	var realized decimal.Decimal
	switch o.Side {
	case model.SideBuy:
		if notional.GreaterThan(next.Cash) {
			return 0, ErrInsufficientCash
		}
		p, ok := next.Positions[o.Symbol]
		if !ok {
			p = model.Position{Symbol: o.Symbol, OpenedAt: o.CreatedAt}
		}
		cost := decimal.NewFromInt(p.Quantity).Mul(decimal.NewFromFloat(p.AvgCost)).Add(notional)
		p.Quantity += o.Quantity
		p.AvgCost = cost.Div(decimal.NewFromInt(p.Quantity)).Round(4).InexactFloat64()
		p.StopLoss = o.StopLoss
		p.TargetPrice = o.TargetPrice
		p.LastPrice = o.Price
		next.Positions[o.Symbol] = p
		next.Cash = next.Cash.Sub(notional)

	case model.SideSell:
		p, ok := next.Positions[o.Symbol]
		if !ok || p.Quantity <= 0 {
			return 0, ErrNoPosition
		}
		if o.Quantity > p.Quantity {
			return 0, fmt.Errorf("sell %d exceeds position %d for %s", o.Quantity, p.Quantity, o.Symbol)
		}
		realized = px.Sub(decimal.NewFromFloat(p.AvgCost)).Mul(qty)
		next.Cash = next.Cash.Add(notional)
		next.RealizedPnL = next.RealizedPnL.Add(realized)
		if realized.IsNegative() {
			next.DailyRealizedLoss = next.DailyRealizedLoss.Add(realized.Neg())
		}
		p.Quantity -= o.Quantity
		p.LastPrice = o.Price
		if p.Quantity == 0 {
			delete(next.Positions, o.Symbol)
		} else {
			next.Positions[o.Symbol] = p
		}

	default:
		return 0, fmt.Errorf("unknown side %q", o.Side)
	}

	if err := SaveState(m.filePath, next); err != nil {
		return 0, fmt.Errorf("save portfolio: %w", err)
	}
	m.state = next
	return realized.Round(2).InexactFloat64(), nil
}

// MarkPrices updates last prices of open positions.
func (m *Manager) MarkPrices(prices map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := false
	for sym, px := range prices {
		if p, ok := m.state.Positions[sym]; ok && px > 0 && p.LastPrice != px {
			p.LastPrice = px
			m.state.Positions[sym] = p
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := m.save(); err != nil {
		m.logger.Error("failed to save portfolio after marking prices", zap.Error(err))
	}
}

// ResetDaily starts a new trading day: the daily realized loss goes back to zero.
// Calling it again for the same day is a no-op.
func (m *Manager) ResetDaily(day string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.TradingDay == day {
		return
	}
	m.state.TradingDay = day
	m.state.DailyRealizedLoss = decimal.Zero

	if err := m.save(); err != nil {
		m.logger.Error("failed to save portfolio after daily reset", zap.Error(err))
	}
}

func (m *Manager) save() error {
	return SaveState(m.filePath, m.state)
}
