package pattern

import (
	"errors"
	"math"

	"go.uber.org/zap"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

// Detector finds candlestick, chart and volume patterns in a bar history.
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

// NewDetector creates a detector. cfg is expected to be validated.
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	return &Detector{cfg: cfg, logger: logger}
}

// scanState is the per-call market backdrop used for confidence blending.
type scanState struct {
	symbol    string
	timeframe string
	bars      []model.PriceBar
	last      model.PriceBar
	relVolume float64 // 0 when unknown
	slope     float64 // close slope over the OBV window
	hasSlope  bool
}

// Detect validates the bars and returns every pattern the history supports.
// Patterns whose window exceeds the history are skipped. The output depends only
// on the input, so repeated calls on the same bars return identical matches.
func (d *Detector) Detect(symbol, timeframe string, bars []model.PriceBar) ([]model.PatternMatch, error) {
	if err := model.ValidateBars(symbol, bars); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}

	st := &scanState{symbol: symbol, timeframe: timeframe, bars: bars, last: bars[len(bars)-1]}
	rv, err := calculator.RelativeVolume(bars, d.cfg.VolumeAvgWindow)
	switch {
	case err == nil:
		st.relVolume = rv
	case errors.Is(err, calculator.ErrZeroVolume):
		d.logger.Debug("no traded volume in window, volume scoring disabled",
			zap.String("symbol", symbol), zap.Int("window", d.cfg.VolumeAvgWindow))
	}
	if s, err := calculator.TailSlope(model.Closes(bars), d.cfg.OBVWindow); err == nil {
		st.slope, st.hasSlope = s, true
	}

	var out []model.PatternMatch
	out = append(out, d.candlesticks(st)...)
	out = append(out, d.chartPatterns(st)...)
	out = append(out, d.volumePatterns(st)...)

	for i := range out {
		d.finish(st, &out[i])
	}

	d.logger.Debug("patterns detected",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
		zap.Int("matches", len(out)))
	return out, nil
}

// finish clamps confidence and computes the display blend.
func (d *Detector) finish(st *scanState, m *model.PatternMatch) {
	m.Symbol = st.symbol
	m.Timeframe = st.timeframe
	m.DetectedAt = st.last.Time
	m.Confidence = clamp01(m.Confidence)

	volume := 0.5
	if st.relVolume > 0 {
		volume = math.Min(st.relVolume/2, 1)
	}
	trend := 0.5
	if st.hasSlope {
		switch {
		case m.Bias == model.BiasBullish && st.slope > 0, m.Bias == model.BiasBearish && st.slope < 0:
			trend = 1
		case m.Bias == model.BiasBullish && st.slope < 0, m.Bias == model.BiasBearish && st.slope > 0:
			trend = 0
		}
	}
	total := d.cfg.BlendClarity + d.cfg.BlendVolume + d.cfg.BlendTrend
	blended := (d.cfg.BlendClarity*m.Confidence + d.cfg.BlendVolume*volume + d.cfg.BlendTrend*trend) / total
	m.BlendedConfidence = clamp01(blended)
}

// withDefaultTarget fills a non-projected 3R target from entry and stop.
func withDefaultTarget(m model.PatternMatch) model.PatternMatch {
	risk := m.EntryPrice - m.StopLoss
	m.TargetPrice = m.EntryPrice + 3*risk
	m.TargetProjected = false
	return m
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
