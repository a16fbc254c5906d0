package pattern

import (
	"TradeSentinel/internal/model"
)

// candlesticks evaluates the single- and two-bar patterns ending at the latest bar.
// A bar with zero range yields nothing.
func (d *Detector) candlesticks(st *scanState) []model.PatternMatch {
	bar := st.last
	rng := bar.Range()
	if rng <= 0 {
		return nil
	}
	body := bar.Body()
	upper := bar.UpperShadow()
	lower := bar.LowerShadow()
	detail := model.CandlestickDetail{
		BodyRatio:        body / rng,
		UpperShadowRatio: upper / rng,
		LowerShadowRatio: lower / rng,
		Bars:             1,
	}

	var out []model.PatternMatch

	if detail.BodyRatio < d.cfg.DojiBodyRatio {
		out = append(out, model.PatternMatch{
			Type:        model.PatternCandlestick,
			Name:        model.PatternDoji,
			Bias:        model.BiasNeutral,
			Confidence:  0.5 + 0.5*(1-detail.BodyRatio/d.cfg.DojiBodyRatio),
			EntryPrice:  bar.Close,
			StopLoss:    bar.Low,
			TargetPrice: bar.High,
			Detail:      detail,
		})
	}

	if bar.IsBullish() && lower >= d.cfg.ShadowMultiple*body && upper <= d.cfg.OppositeShadowRatio*rng {
		det := detail
		det.ShadowToBody = lower / body
		out = append(out, withDefaultTarget(model.PatternMatch{
			Type:       model.PatternCandlestick,
			Name:       model.PatternHammer,
			Bias:       model.BiasBullish,
			Confidence: d.shadowConfidence(det.ShadowToBody),
			EntryPrice: bar.Close,
			StopLoss:   bar.Low,
			Detail:     det,
		}))
	}

	if bar.IsBearish() && upper >= d.cfg.ShadowMultiple*body && lower <= d.cfg.OppositeShadowRatio*rng {
		det := detail
		det.ShadowToBody = upper / body
		out = append(out, withDefaultTarget(model.PatternMatch{
			Type:       model.PatternCandlestick,
			Name:       model.PatternShootingStar,
			Bias:       model.BiasBearish,
			Confidence: d.shadowConfidence(det.ShadowToBody),
			EntryPrice: bar.Close,
			StopLoss:   bar.High,
			Detail:     det,
		}))
	}

	if m, ok := d.engulfing(st, detail); ok {
		out = append(out, m)
	}
	return out
}

// shadowConfidence is 0.5 at the threshold and grows 0.1 per extra body length.
func (d *Detector) shadowConfidence(ratio float64) float64 {
	return clamp01(0.5 + 0.1*(ratio-d.cfg.ShadowMultiple))
}

func (d *Detector) engulfing(st *scanState, detail model.CandlestickDetail) (model.PatternMatch, bool) {
	n := len(st.bars)
	if n < 2 {
		return model.PatternMatch{}, false
	}
	prev, cur := st.bars[n-2], st.last
	if prev.Body() == 0 || cur.Body() <= prev.Body() {
		return model.PatternMatch{}, false
	}
	ratio := cur.Body() / prev.Body()
	detail.EngulfRatio = ratio
	detail.Bars = 2
	conf := clamp01(0.5 + 0.25*(ratio-1))

	switch {
	case prev.IsBearish() && cur.IsBullish() && cur.Open <= prev.Close && cur.Close >= prev.Open:
		return withDefaultTarget(model.PatternMatch{
			Type:       model.PatternCandlestick,
			Name:       model.PatternBullishEngulfing,
			Bias:       model.BiasBullish,
			Confidence: conf,
			EntryPrice: cur.Close,
			StopLoss:   min(prev.Low, cur.Low),
			Detail:     detail,
		}), true
	case prev.IsBullish() && cur.IsBearish() && cur.Open >= prev.Close && cur.Close <= prev.Open:
		return withDefaultTarget(model.PatternMatch{
			Type:       model.PatternCandlestick,
			Name:       model.PatternBearishEngulfing,
			Bias:       model.BiasBearish,
			Confidence: conf,
			EntryPrice: cur.Close,
			StopLoss:   max(prev.High, cur.High),
			Detail:     detail,
		}), true
	}
	return model.PatternMatch{}, false
}
