package pattern

import (
	"math"

	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

// volumePatterns evaluates OBV confirmation/divergence and volume spikes.
func (d *Detector) volumePatterns(st *scanState) []model.PatternMatch {
	var out []model.PatternMatch
	if m, ok := d.obvPattern(st); ok {
		out = append(out, m)
	}
	if m, ok := d.volumeSpike(st); ok {
		out = append(out, m)
	}
	return out
}

// obvPattern compares the OBV slope with the price slope over the OBV window.
// Confirming when the signs agree, diverging otherwise; flat slopes yield nothing.
func (d *Detector) obvPattern(st *scanState) (model.PatternMatch, bool) {
	w := d.cfg.OBVWindow
	if len(st.bars) < w+1 || !st.hasSlope || st.slope == 0 {
		return model.PatternMatch{}, false
	}
	obv := calculator.OBVSeries(st.bars)
	obvSlope, err := calculator.TailSlope(obv, w)
	if err != nil || obvSlope == 0 {
		return model.PatternMatch{}, false
	}
	tail := st.bars[len(st.bars)-w:]
	avgVol := 0.0
	for _, b := range tail {
		avgVol += b.Volume
	}
	avgVol /= float64(w)
	if avgVol == 0 {
		return model.PatternMatch{}, false
	}
	strength := math.Min(1, math.Abs(obvSlope)/avgVol)

	m := model.PatternMatch{
		Type:       model.PatternVolume,
		EntryPrice: st.last.Close,
		Detail: model.VolumeDetail{
			OBV:            obv[len(obv)-1],
			OBVSlope:       obvSlope,
			PriceSlope:     st.slope,
			RelativeVolume: st.relVolume,
			WindowBars:     w,
		},
	}
	confirming := (obvSlope > 0) == (st.slope > 0)
	if confirming {
		m.Name = model.PatternOBVConfirming
		m.Confidence = 0.5 + 0.5*strength
	} else {
		// volume flow leads price on a divergence
		m.Name = model.PatternOBVDiverging
		m.Confidence = 0.4 + 0.4*strength
	}
	high, low, _ := calculator.HighLow(tail, 0)
	if obvSlope > 0 {
		m.Bias = model.BiasBullish
		m.StopLoss = low
	} else {
		m.Bias = model.BiasBearish
		m.StopLoss = high
	}
	if m.StopLoss == m.EntryPrice {
		return model.PatternMatch{}, false
	}
	return withDefaultTarget(m), true
}

// volumeSpike fires when the last bar trades at a multiple of its average volume.
func (d *Detector) volumeSpike(st *scanState) (model.PatternMatch, bool) {
	if st.relVolume < d.cfg.VolumeSpikeMultiple {
		return model.PatternMatch{}, false
	}
	bar := st.last
	m := model.PatternMatch{
		Type:       model.PatternVolume,
		Name:       model.PatternVolumeSpike,
		Confidence: math.Min(1, st.relVolume/5),
		EntryPrice: bar.Close,
		Detail: model.VolumeDetail{
			RelativeVolume: st.relVolume,
			PriceSlope:     st.slope,
			WindowBars:     d.cfg.VolumeAvgWindow,
		},
	}
	switch {
	case bar.IsBullish() && bar.Low < bar.Close:
		m.Bias = model.BiasBullish
		m.StopLoss = bar.Low
	case bar.IsBearish() && bar.High > bar.Close:
		m.Bias = model.BiasBearish
		m.StopLoss = bar.High
	default:
		m.Bias = model.BiasNeutral
		m.StopLoss = bar.Low
		m.TargetPrice = bar.High
		return m, true
	}
	return withDefaultTarget(m), true
}
