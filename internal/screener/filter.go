package screener

import (
	"sort"

	"TradeSentinel/internal/model"
)

// Criteria bounds the candidates the selection filter lets through.
// MinMomentumPct is expressed in percent (5 means +5% over the lookback).
type Criteria struct {
	LookbackDays      int     `yaml:"lookback_days"`
	MinAvgVolume      float64 `yaml:"min_avg_volume"`
	MinPrice          float64 `yaml:"min_price"`
	MaxPrice          float64 `yaml:"max_price"`
	MinMomentumPct    float64 `yaml:"min_momentum_pct"`
	MinRelativeVolume float64 `yaml:"min_relative_volume"`
	TopK              int     `yaml:"top_k"`
}

// DefaultCriteria returns the standard screen.
func DefaultCriteria() Criteria {
	return Criteria{
		LookbackDays:      20,
		MinAvgVolume:      500_000,
		MinPrice:          2,
		MaxPrice:          500,
		MinMomentumPct:    2,
		MinRelativeVolume: 1.2,
		TopK:              20,
	}
}

// Validate rejects malformed criteria.
func (c Criteria) Validate() error {
	switch {
	case c.LookbackDays < 2:
		return &model.ConfigError{Field: "screening.lookback_days", Reason: "must be >= 2"}
	case c.TopK <= 0:
		return &model.ConfigError{Field: "screening.top_k", Reason: "must be positive"}
	case c.MinAvgVolume < 0 || c.MinPrice < 0 || c.MinRelativeVolume < 0:
		return &model.ConfigError{Field: "screening", Reason: "minimums must be non-negative"}
	case c.MaxPrice <= 0 || c.MinPrice > c.MaxPrice:
		return &model.ConfigError{Field: "screening.max_price", Reason: "must be positive and >= min_price"}
	}
	return nil
}

// Select screens the universe down to ranked candidates. Momentum compares the
// latest close with the close LookbackDays sessions earlier, so a symbol needs
// LookbackDays+1 bars. Averages use the latest LookbackDays bars. Short
// histories, zero average volume and a zero reference close are excluded.
func Select(universe []model.SymbolHistory, c Criteria) []model.Candidate {
	var out []model.Candidate
	for _, h := range universe {
		cand, ok := evaluate(h, c)
		if ok {
			out = append(out, cand)
		}
	}
	rank(out)
	if len(out) > c.TopK {
		out = out[:c.TopK]
	}
	return out
}

func evaluate(h model.SymbolHistory, c Criteria) (model.Candidate, bool) {
	n := c.LookbackDays
	if len(h.Bars) < n+1 {
		return model.Candidate{}, false
	}
	window := h.Bars[len(h.Bars)-n:]
	today := window[n-1]
	ref := h.Bars[len(h.Bars)-n-1].Close

	sum := 0.0
	for _, b := range window {
		sum += b.Volume
	}
	avgVol := sum / float64(n)
	if avgVol <= 0 || avgVol < c.MinAvgVolume {
		return model.Candidate{}, false
	}
	if today.Close < c.MinPrice || today.Close > c.MaxPrice || ref <= 0 {
		return model.Candidate{}, false
	}

	momentum := (today.Close - ref) / ref * 100
	relVol := today.Volume / avgVol
	if momentum < c.MinMomentumPct || relVol < c.MinRelativeVolume {
		return model.Candidate{}, false
	}
	return model.Candidate{
		Symbol:         h.Symbol,
		Close:          today.Close,
		AvgVolume:      avgVol,
		MomentumPct:    momentum,
		RelativeVolume: relVol,
	}, true
}

// rank scores each candidate as the equal-weight mean of its momentum and relative
// volume, each normalised by the largest value among survivors, and sorts descending.
func rank(cands []model.Candidate) {
	var maxMom, maxRV float64
	for _, c := range cands {
		maxMom = max(maxMom, c.MomentumPct)
		maxRV = max(maxRV, c.RelativeVolume)
	}
	for i := range cands {
		var m, v float64
		if maxMom > 0 {
			m = cands[i].MomentumPct / maxMom
		}
		if maxRV > 0 {
			v = cands[i].RelativeVolume / maxRV
		}
		cands[i].RankScore = 0.5*m + 0.5*v
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].RankScore != cands[j].RankScore {
			return cands[i].RankScore > cands[j].RankScore
		}
		return cands[i].Symbol < cands[j].Symbol
	})
}
