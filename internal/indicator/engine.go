package indicator

import (
	"time"

	"go.uber.org/zap"

	"TradeSentinel/internal/model"
)

// RSI thresholds.
const (
	RSIOversold   = 30.0
	RSIOverbought = 70.0
)

// Engine turns a backend Snapshot into IndicatorReadings.
type Engine struct {
	backend IndicatorBackend
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine creates an engine over the given backend.
func NewEngine(backend IndicatorBackend, logger *zap.Logger) *Engine {
	return &Engine{backend: backend, logger: logger, now: time.Now}
}

// Compute validates the bars and returns one reading per computable indicator.
// Indicators without enough history are omitted.
func (e *Engine) Compute(symbol, timeframe string, bars []model.PriceBar) ([]model.IndicatorReading, Snapshot, error) {
	if err := model.ValidateBars(symbol, bars); err != nil {
		return nil, Snapshot{}, err
	}
	snap := e.backend.Compute(bars)
	at := e.now().UTC()

	var out []model.IndicatorReading
	add := func(name string, value float64, sig model.SignalDirection) {
		out = append(out, model.IndicatorReading{
			Symbol:       symbol,
			Name:         name,
			Value:        value,
			Signal:       sig,
			Timeframe:    timeframe,
			CalculatedAt: at,
		})
	}

	if snap.RSI != nil {
		add(model.IndicatorRSI, *snap.RSI, RSISignal(*snap.RSI))
	}
	if snap.MACD != nil {
		add(model.IndicatorMACD, snap.MACD.Hist, MACDSignal(snap.MACD.PrevHist, snap.MACD.Hist))
	}
	if snap.Bands != nil {
		add(model.IndicatorBollinger, snap.Bands.PercentB(snap.Close), BollingerSignal(snap.Close, snap.Bands.Upper, snap.Bands.Lower))
	}
	if snap.MA20 != nil && snap.MA50 != nil {
		add(model.IndicatorMATrend, *snap.MA20-*snap.MA50, MATrendSignal(snap.Close, *snap.MA20, *snap.MA50))
	}
	if snap.OBVSlope != nil {
		add(model.IndicatorOBV, *snap.OBV, OBVSignal(*snap.OBVSlope))
	}

	e.logger.Debug("indicators computed",
		zap.String("symbol", symbol),
		zap.String("backend", e.backend.Name()),
		zap.Int("bars", len(bars)),
		zap.Int("readings", len(out)))
	return out, snap, nil
}

// RSISignal is BUY below 30, SELL above 70.
func RSISignal(rsi float64) model.SignalDirection {
	switch {
	case rsi < RSIOversold:
		return model.DirectionBuy
	case rsi > RSIOverbought:
		return model.DirectionSell
	}
	return model.DirectionNeutral
}

// MACDSignal fires only when the histogram changes sign on the latest bar.
func MACDSignal(prevHist, hist float64) model.SignalDirection {
	switch {
	case prevHist < 0 && hist > 0:
		return model.DirectionBuy
	case prevHist > 0 && hist < 0:
		return model.DirectionSell
	}
	return model.DirectionNeutral
}

// BollingerSignal is BUY at or below the lower band, SELL at or above the upper band.
// Collapsed bands give no signal.
func BollingerSignal(close, upper, lower float64) model.SignalDirection {
	switch {
	case upper <= lower:
		return model.DirectionNeutral
	case close <= lower:
		return model.DirectionBuy
	case close >= upper:
		return model.DirectionSell
	}
	return model.DirectionNeutral
}

// MATrendSignal is BUY for close > MA20 > MA50 and SELL for close < MA20 < MA50.
func MATrendSignal(close, ma20, ma50 float64) model.SignalDirection {
	switch {
	case close > ma20 && ma20 > ma50:
		return model.DirectionBuy
	case close < ma20 && ma20 < ma50:
		return model.DirectionSell
	}
	return model.DirectionNeutral
}

// OBVSignal follows the sign of the OBV slope.
func OBVSignal(slope float64) model.SignalDirection {
	switch {
	case slope > 0:
		return model.DirectionBuy
	case slope < 0:
		return model.DirectionSell
	}
	return model.DirectionNeutral
}
