package strategy

import (
	"math"

	"TradeSentinel/internal/model"
)

// Stop sources recorded in the rationale.
const (
	stopPattern = "pattern"
	stopATR     = "atr"
	stopPercent = "max_stop_pct"

	targetPattern = "pattern"
	targetRR      = "risk_multiple"
)

// stopLoss picks the tightest valid stop for dir. For a long every candidate must sit
// below entry and the highest wins; shorts mirror it.
func (c Config) stopLoss(entry float64, t TrendContext, best model.PatternMatch, hasBest bool, dir model.SignalType) (float64, string, bool) {
	type candidate struct {
		price  float64
		source string
	}
	var cands []candidate
	long := dir == model.SignalBuy
	sign := 1.0
	if !long {
		sign = -1.0
	}

	if hasBest && best.StopLoss > 0 {
		cands = append(cands, candidate{best.StopLoss, stopPattern})
	}
	if t.ATR > 0 && c.ATRStopMultiple > 0 {
		cands = append(cands, candidate{entry - sign*c.ATRStopMultiple*t.ATR, stopATR})
	}
	cands = append(cands, candidate{entry * (1 - sign*c.MaxStopPct), stopPercent})

	var stop float64
	var source string
	found := false
	for _, cd := range cands {
		if cd.price <= 0 {
			continue
		}
		if long && cd.price >= entry || !long && cd.price <= entry {
			continue
		}
		if !found || (long && cd.price > stop) || (!long && cd.price < stop) {
			stop, source, found = cd.price, cd.source, true
		}
	}
	return stop, source, found
}

// target uses the pattern's projected target when it lies on the profit side of entry,
// otherwise entry plus MinRiskReward times the risk.
func (c Config) target(entry, stop float64, best model.PatternMatch, hasBest bool, dir model.SignalType) (float64, string) {
	risk := math.Abs(entry - stop)
	if dir == model.SignalBuy {
		if hasBest && best.TargetProjected && best.TargetPrice > entry {
			return best.TargetPrice, targetPattern
		}
		return entry + c.MinRiskReward*risk, targetRR
	}
	if hasBest && best.TargetProjected && best.TargetPrice < entry && best.TargetPrice > 0 {
		return best.TargetPrice, targetPattern
	}
	return entry - c.MinRiskReward*risk, targetRR
}

// RiskReward returns reward over risk rounded to 4 decimals, 0 when risk is zero.
func RiskReward(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Round(math.Abs(target-entry)/risk*1e4) / 1e4
}

// PositionSize is floor(account*riskPct/risk) capped at floor(account*maxPositionPct/entry).
func PositionSize(account, entry, stop, riskPct, maxPositionPct float64) int64 {
	risk := math.Abs(entry - stop)
	if account <= 0 || entry <= 0 || risk == 0 {
		return 0
	}
	size := math.Floor(account*riskPct/risk + 1e-9)
	maxShares := math.Floor(account*maxPositionPct/entry + 1e-9)
	if size > maxShares {
		size = maxShares
	}
	if size < 0 {
		return 0
	}
	return int64(size)
}
