package strategy

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"TradeSentinel/internal/model"
)

// Input is everything the scorer needs for one symbol.
type Input struct {
	RunID      string
	Symbol     string
	Patterns   []model.PatternMatch
	Indicators []model.IndicatorReading
	Sentiment  *model.SentimentScore
	Trend      TrendContext
	Portfolio  model.PortfolioState
}

// Scorer turns pattern, indicator, trend and sentiment evidence into a TradingSignal.
type Scorer struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewScorer validates cfg and returns a scorer.
func NewScorer(cfg Config, logger *zap.Logger) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg, logger: logger, now: time.Now}, nil
}

// Config returns the scorer configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Score always returns a well-formed signal. Anything that blocks a trade turns the
// signal into a HOLD with the reasons listed in the rationale.
func (s *Scorer) Score(in Input) model.TradingSignal {
	sig := model.TradingSignal{
		RunID:      in.RunID,
		Symbol:     in.Symbol,
		Type:       model.SignalHold,
		Strength:   model.StrengthNone,
		EntryPrice: in.Trend.Close,
		CreatedAt:  s.now().UTC(),
	}
	r := &sig.Rationale
	r.TotalIndicators = len(in.Indicators)
	r.SentimentMultiplier = 1

	if in.Trend.Close <= 0 {
		sig.CompositeScore = 50
		r.FailedGates = append(r.FailedGates, model.GateNoDirection)
		r.Notes = append(r.Notes, "no valid entry price")
		return s.finish(sig)
	}

	// Step a: pick the side with more evidence
	bull, bullBest, bullHas, bullAgree := components(in, model.SignalBuy)
	bear, bearBest, bearHas, bearAgree := components(in, model.SignalSell)
	dir := model.SignalHold
	switch eb, es := evidence(bull), evidence(bear); {
	case eb > es:
		dir = model.SignalBuy
	case es > eb:
		dir = model.SignalSell
	}
	if dir == model.SignalHold {
		sig.CompositeScore = 50
		r.Direction = model.SignalHold
		r.FailedGates = append(r.FailedGates, model.GateNoDirection)
		r.Notes = append(r.Notes, "bullish and bearish evidence are balanced")
		return s.finish(sig)
	}

	comp, best, hasBest, agree := bull, bullBest, bullHas, bullAgree
	if dir == model.SignalSell {
		comp, best, hasBest, agree = bear, bearBest, bearHas, bearAgree
	}
	r.Direction = dir
	r.Components = comp
	r.AgreeingIndicators = agree
	if hasBest {
		r.BestPattern = best.Name
	}

	// Step b: composite on the bullish scale, then the sentiment tilt
	conviction := Composite(comp, s.cfg.Weights)
	r.RawScore = conviction
	score := conviction
	if dir == model.SignalSell {
		score = 100 - conviction
	}
	r.SentimentMultiplier = SentimentMultiplier(in.Sentiment, s.cfg.SentimentFactor)
	score = clampScore(score * r.SentimentMultiplier)
	sig.CompositeScore = score
	if dir == model.SignalBuy {
		sig.Confidence = score / 100
	} else {
		sig.Confidence = (100 - score) / 100
	}

	// Step c: classification must land on the evidence side
	typ, strength := s.cfg.classify(score)
	if typ != dir {
		r.FailedGates = append(r.FailedGates, model.GateScoreNeutral)
		r.Notes = append(r.Notes, fmt.Sprintf("score %.1f outside the %s band", score, dir))
	}

	// Step d: stop, target, reward/risk and size
	entry := in.Trend.Close
	stop, stopSrc, ok := s.cfg.stopLoss(entry, in.Trend, best, hasBest, dir)
	if !ok {
		r.FailedGates = append(r.FailedGates, model.GateNoStop)
		return s.finish(sig)
	}
	tgt, tgtSrc := s.cfg.target(entry, stop, best, hasBest, dir)
	sig.StopLoss, sig.TargetPrice = stop, tgt
	r.StopSource, r.TargetSource = stopSrc, tgtSrc
	sig.RiskRewardRatio = RiskReward(entry, stop, tgt)
	size := PositionSize(in.Portfolio.AccountValue, entry, stop, s.cfg.RiskPerTradePct, s.cfg.MaxPositionPct)

	// Step e: validation gates
	if !hasBest || best.Confidence <= s.cfg.MinPatternConfidence {
		r.FailedGates = append(r.FailedGates, model.GatePatternConf)
	}
	if agree < s.cfg.MinAgreeingIndicators {
		r.FailedGates = append(r.FailedGates, model.GateIndicatorAgree)
	}
	if sig.RiskRewardRatio < s.cfg.MinRiskReward {
		r.FailedGates = append(r.FailedGates, model.GateRiskReward)
	}
	if size <= 0 {
		r.FailedGates = append(r.FailedGates, model.GateSizingInfeasible)
		r.Notes = append(r.Notes, "insufficient sizing: stop too far or account too small")
	}
	if dir == model.SignalBuy {
		r.FailedGates = append(r.FailedGates, s.portfolioGates(in)...)
	}

	if len(r.FailedGates) == 0 {
		sig.Type = typ
		sig.Strength = strength
		sig.PositionSize = size
	}
	return s.finish(sig)
}

// portfolioGates applies the account-level limits to new long exposure.
func (s *Scorer) portfolioGates(in Input) []model.GateFailure {
	var out []model.GateFailure
	p := in.Portfolio
	if s.cfg.MaxDailyLossPct > 0 && p.AccountValue > 0 && p.DailyLossUsed >= p.AccountValue*s.cfg.MaxDailyLossPct {
		out = append(out, model.GateDailyLoss)
	}
	if s.cfg.MaxOpenPositions > 0 && !p.Holds(in.Symbol) && len(p.CurrentPositions) >= s.cfg.MaxOpenPositions {
		out = append(out, model.GateMaxPositions)
	}
	return out
}

func (s *Scorer) finish(sig model.TradingSignal) model.TradingSignal {
	s.logger.Debug("signal scored",
		zap.String("symbol", sig.Symbol),
		zap.String("type", string(sig.Type)),
		zap.String("direction", string(sig.Rationale.Direction)),
		zap.Float64("score", sig.CompositeScore),
		zap.Float64("rr", sig.RiskRewardRatio),
		zap.Int64("size", sig.PositionSize),
		zap.Any("failed_gates", sig.Rationale.FailedGates))
	return sig
}
