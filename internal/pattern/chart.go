package pattern

import (
	"math"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

// chartPatterns evaluates level and formation patterns over the trailing chart window.
func (d *Detector) chartPatterns(st *scanState) []model.PatternMatch {
	n := len(st.bars)
	if n < d.cfg.ChartMinBars {
		return nil
	}
	win := st.bars[max(0, n-d.cfg.ChartMaxBars):]
	highs := calculator.SwingHighs(win, d.cfg.SwingWindow)
	lows := calculator.SwingLows(win, d.cfg.SwingWindow)

	var out []model.PatternMatch
	for _, fn := range []func(*scanState, []model.PriceBar, []int, []int) (model.PatternMatch, bool){
		d.supportTest,
		d.resistanceTest,
		d.doubleBottom,
		d.doubleTop,
		d.bullFlag,
		d.bearFlag,
	} {
		if m, ok := fn(st, win, highs, lows); ok {
			out = append(out, m)
		}
	}
	return out
}

// levelTouches counts swing points within tolerance of level.
func (d *Detector) levelTouches(win []model.PriceBar, idx []int, price func(model.PriceBar) float64, level float64) int {
	touches := 0
	for _, i := range idx {
		if math.Abs(price(win[i])-level)/level <= d.cfg.LevelTolerance {
			touches++
		}
	}
	return touches
}

func barLow(b model.PriceBar) float64  { return b.Low }
func barHigh(b model.PriceBar) float64 { return b.High }

// supportTest fires when the close sits just above the nearest swing-low support.
func (d *Detector) supportTest(st *scanState, win []model.PriceBar, highs, lows []int) (model.PatternMatch, bool) {
	price := st.last.Close
	support := 0.0
	for _, i := range lows {
		if l := win[i].Low; l <= price && l > support {
			support = l
		}
	}
	if support <= 0 || (price-support)/support > d.cfg.LevelTolerance {
		return model.PatternMatch{}, false
	}
	touches := d.levelTouches(win, lows, barLow, support)
	m := model.PatternMatch{
		Type:       model.PatternChart,
		Name:       model.PatternSupportTest,
		Bias:       model.BiasBullish,
		Confidence: math.Min(0.9, 0.5+float64(touches)*0.1),
		EntryPrice: price,
		StopLoss:   support * (1 - d.cfg.LevelTolerance/2),
		Detail:     model.ChartDetail{Levels: []float64{support}, Touches: touches, WindowBars: len(win)},
	}
	resistance := math.Inf(1)
	for _, i := range highs {
		if h := win[i].High; h > price && h < resistance {
			resistance = h
		}
	}
	if math.IsInf(resistance, 1) {
		return withDefaultTarget(m), true
	}
	m.TargetPrice = resistance
	m.TargetProjected = true
	return m, true
}

// resistanceTest is the mirror of supportTest below the nearest swing-high resistance.
func (d *Detector) resistanceTest(st *scanState, win []model.PriceBar, highs, lows []int) (model.PatternMatch, bool) {
	price := st.last.Close
	resistance := math.Inf(1)
	for _, i := range highs {
		if h := win[i].High; h >= price && h < resistance {
			resistance = h
		}
	}
	if math.IsInf(resistance, 1) || (resistance-price)/resistance > d.cfg.LevelTolerance {
		return model.PatternMatch{}, false
	}
	touches := d.levelTouches(win, highs, barHigh, resistance)
	m := model.PatternMatch{
		Type:       model.PatternChart,
		Name:       model.PatternResistanceTest,
		Bias:       model.BiasBearish,
		Confidence: math.Min(0.9, 0.5+float64(touches)*0.1),
		EntryPrice: price,
		StopLoss:   resistance * (1 + d.cfg.LevelTolerance/2),
		Detail:     model.ChartDetail{Levels: []float64{resistance}, Touches: touches, WindowBars: len(win)},
	}
	support := 0.0
	for _, i := range lows {
		if l := win[i].Low; l < price && l > support {
			support = l
		}
	}
	if support <= 0 {
		return withDefaultTarget(m), true
	}
	m.TargetPrice = support
	m.TargetProjected = true
	return m, true
}

// doubleBottom looks for the most recent pair of consecutive swing lows within tolerance
// of each other with a swing high between them. The target is the measured move above
// the neckline.
func (d *Detector) doubleBottom(st *scanState, win []model.PriceBar, highs, lows []int) (model.PatternMatch, bool) {
	price := st.last.Close
	for j := len(lows) - 1; j >= 1; j-- {
		i := j - 1
		a, b := win[lows[i]].Low, win[lows[j]].Low
		bottom := math.Min(a, b)
		diff := math.Abs(a-b) / bottom
		if diff > d.cfg.DoubleTolerance || price <= b {
			continue
		}
		neckline, ok := peakBetween(win, highs, lows[i], lows[j], barHigh, true)
		if !ok {
			continue
		}
		target := neckline + (neckline - bottom)
		if target <= price {
			continue
		}
		conf := 0.5 + 0.3*(1-diff/d.cfg.DoubleTolerance)
		if price > neckline {
			conf += 0.2
		}
		return model.PatternMatch{
			Type:            model.PatternChart,
			Name:            model.PatternDoubleBottom,
			Bias:            model.BiasBullish,
			Confidence:      conf,
			EntryPrice:      price,
			StopLoss:        bottom,
			TargetPrice:     target,
			TargetProjected: true,
			Detail:          model.ChartDetail{Levels: []float64{a, b}, Neckline: neckline, WindowBars: len(win)},
		}, true
	}
	return model.PatternMatch{}, false
}

// doubleTop mirrors doubleBottom over swing highs.
func (d *Detector) doubleTop(st *scanState, win []model.PriceBar, highs, lows []int) (model.PatternMatch, bool) {
	price := st.last.Close
	for j := len(highs) - 1; j >= 1; j-- {
		i := j - 1
		a, b := win[highs[i]].High, win[highs[j]].High
		top := math.Max(a, b)
		diff := math.Abs(a-b) / math.Min(a, b)
		if diff > d.cfg.DoubleTolerance || price >= b {
			continue
		}
		neckline, ok := peakBetween(win, lows, highs[i], highs[j], barLow, false)
		if !ok {
			continue
		}
		target := neckline - (top - neckline)
		if target >= price || target <= 0 {
			continue
		}
		conf := 0.5 + 0.3*(1-diff/d.cfg.DoubleTolerance)
		if price < neckline {
			conf += 0.2
		}
		return model.PatternMatch{
			Type:            model.PatternChart,
			Name:            model.PatternDoubleTop,
			Bias:            model.BiasBearish,
			Confidence:      conf,
			EntryPrice:      price,
			StopLoss:        top,
			TargetPrice:     target,
			TargetProjected: true,
			Detail:          model.ChartDetail{Levels: []float64{a, b}, Neckline: neckline, WindowBars: len(win)},
		}, true
	}
	return model.PatternMatch{}, false
}

// peakBetween requires a swing point strictly between from and to and returns the
// extreme price over that span (max when highest, min otherwise).
func peakBetween(win []model.PriceBar, swings []int, from, to int, price func(model.PriceBar) float64, highest bool) (float64, bool) {
	found := false
	for _, s := range swings {
		if s > from && s < to {
			found = true
			break
		}
	}
	if !found {
		return 0, false
	}
	ext := price(win[from+1])
	for k := from + 1; k < to; k++ {
		v := price(win[k])
		if (highest && v > ext) || (!highest && v < ext) {
			ext = v
		}
	}
	return ext, true
}

// flagParts splits the tail into pole and flag and returns their measurements.
type flagParts struct {
	gain, poleHigh, poleLow, poleRange float64
	flagHigh, flagLow, flagStd         float64
}

func (d *Detector) measureFlag(bars []model.PriceBar) (flagParts, bool) {
	n := len(bars)
	if n < d.cfg.PoleBars+d.cfg.FlagBars+1 {
		return flagParts{}, false
	}
	poleStart := n - d.cfg.FlagBars - d.cfg.PoleBars - 1
	poleEnd := n - d.cfg.FlagBars - 1
	base := bars[poleStart].Close
	if base <= 0 {
		return flagParts{}, false
	}
	var p flagParts
	p.gain = (bars[poleEnd].Close - base) / base
	p.poleHigh, p.poleLow, _ = calculator.HighLow(bars[poleStart:poleEnd+1], 0)
	p.poleRange = p.poleHigh - p.poleLow
	flag := bars[n-d.cfg.FlagBars:]
	p.flagHigh, p.flagLow, _ = calculator.HighLow(flag, 0)
	p.flagStd = calculator.StdDev(model.Closes(flag))
	return p, p.poleRange > 0
}

// bullFlag: a strong up-move followed by a tight consolidation holding the upper half of the pole.
func (d *Detector) bullFlag(st *scanState, _ []model.PriceBar, _, _ []int) (model.PatternMatch, bool) {
	p, ok := d.measureFlag(st.bars)
	if !ok || p.gain < d.cfg.PoleMinGain {
		return model.PatternMatch{}, false
	}
	limit := d.cfg.FlagTightness * p.poleRange
	if p.flagStd > limit || p.flagLow < p.poleLow+0.5*p.poleRange {
		return model.PatternMatch{}, false
	}
	conf := 0.5 + 0.3*(1-p.flagStd/limit) + 0.2*math.Min(1, p.gain/(2*d.cfg.PoleMinGain))
	return model.PatternMatch{
		Type:            model.PatternChart,
		Name:            model.PatternBullFlag,
		Bias:            model.BiasBullish,
		Confidence:      conf,
		EntryPrice:      st.last.Close,
		StopLoss:        p.flagLow,
		TargetPrice:     p.flagHigh + p.poleRange,
		TargetProjected: true,
		Detail: model.ChartDetail{
			Levels:     []float64{p.poleLow, p.poleHigh, p.flagLow, p.flagHigh},
			PoleGain:   p.gain,
			WindowBars: d.cfg.PoleBars + d.cfg.FlagBars + 1,
		},
	}, true
}

// bearFlag mirrors bullFlag after a sharp decline.
func (d *Detector) bearFlag(st *scanState, _ []model.PriceBar, _, _ []int) (model.PatternMatch, bool) {
	p, ok := d.measureFlag(st.bars)
	if !ok || p.gain > -d.cfg.PoleMinGain {
		return model.PatternMatch{}, false
	}
	limit := d.cfg.FlagTightness * p.poleRange
	if p.flagStd > limit || p.flagHigh > p.poleHigh-0.5*p.poleRange {
		return model.PatternMatch{}, false
	}
	target := p.flagLow - p.poleRange
	if target <= 0 {
		return model.PatternMatch{}, false
	}
	conf := 0.5 + 0.3*(1-p.flagStd/limit) + 0.2*math.Min(1, -p.gain/(2*d.cfg.PoleMinGain))
	return model.PatternMatch{
		Type:            model.PatternChart,
		Name:            model.PatternBearFlag,
		Bias:            model.BiasBearish,
		Confidence:      conf,
		EntryPrice:      st.last.Close,
		StopLoss:        p.flagHigh,
		TargetPrice:     target,
		TargetProjected: true,
		Detail: model.ChartDetail{
			Levels:     []float64{p.poleLow, p.poleHigh, p.flagLow, p.flagHigh},
			PoleGain:   p.gain,
			WindowBars: d.cfg.PoleBars + d.cfg.FlagBars + 1,
		},
	}, true
}
