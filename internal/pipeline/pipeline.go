package pipeline

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TradeSentinel/internal/broker"
	"TradeSentinel/internal/collector"
	"TradeSentinel/internal/indicator"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/pattern"
	"TradeSentinel/internal/portfolio"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/screener"
	"TradeSentinel/internal/sentiment"
	"TradeSentinel/internal/snapshot"
	"TradeSentinel/internal/strategy"
)

// Failure stages reported in RunReport.Failures.
const (
	StageCollect  = "collect"
	StageValidate = "validate"
	StagePattern  = "pattern"
	StageIndicate = "indicator"
	StageRecord   = "record"
	StageOrder    = "order"
)

// Deps wires the pipeline's collaborators. Broker and Board may be nil.
type Deps struct {
	Collector *collector.Collector
	Detector  *pattern.Detector
	Engine    *indicator.Engine
	Sentiment *sentiment.Aggregator
	Scorer    *strategy.Scorer
	Portfolio *portfolio.Manager
	Broker    *broker.PaperBroker
	Recorder  recorder.Recorder
	Board     *snapshot.Board
	Logger    *zap.Logger
}

// Pipeline runs one scan: collect, screen, evaluate, score, persist and
// optionally execute.
type Pipeline struct {
	Deps
	now func() time.Time
}

// New creates a pipeline. A nil recorder becomes a no-op recorder.
func New(d Deps) *Pipeline {
	if d.Recorder == nil {
		d.Recorder = recorder.NewNoopRecorder()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Pipeline{Deps: d, now: time.Now}
}

type failureLog struct {
	mu    sync.Mutex
	items []model.SymbolFailure
}

func (f *failureLog) add(symbol, stage string, err error) {
	f.mu.Lock()
	f.items = append(f.items, model.SymbolFailure{Symbol: symbol, Stage: stage, Error: err.Error()})
	f.mu.Unlock()
}

// Run executes one pass over rc.Universe. Per-symbol problems end up in the
// report's Failures; only cancellation of ctx fails the run.
func (p *Pipeline) Run(ctx context.Context, rc RunContext) (*model.RunReport, error) {
	log := p.Logger.With(zap.String("run_id", rc.RunID))
	rep := &model.RunReport{RunID: rc.RunID, StartedAt: rc.StartedAt, Universe: len(rc.Universe)}
	fails := &failureLog{}

	histories, fetchFails, err := p.Collector.Collect(ctx, rc.Universe, rc.HistoryDays)
	if err != nil {
		return nil, err
	}
	fails.items = append(fails.items, fetchFails...)

	valid := make([]model.SymbolHistory, 0, len(histories))
	bySymbol := make(map[string]model.SymbolHistory, len(histories))
	prices := make(map[string]float64, len(histories))
	for _, h := range histories {
		if len(h.Bars) == 0 {
			fails.add(h.Symbol, StageCollect, model.ErrInsufficientData)
			continue
		}
		if err := model.ValidateBars(h.Symbol, h.Bars); err != nil {
			log.Warn("dropping malformed history", zap.String("symbol", h.Symbol), zap.Error(err))
			fails.add(h.Symbol, StageValidate, err)
			continue
		}
		valid = append(valid, h)
		bySymbol[h.Symbol] = h
		prices[h.Symbol] = h.Bars[len(h.Bars)-1].Close
	}

	rep.Candidates = screener.Select(valid, rc.Criteria)
	log.Info("screening done",
		zap.Int("universe", len(rc.Universe)),
		zap.Int("fetched", len(valid)),
		zap.Int("candidates", len(rep.Candidates)))

	state := p.Portfolio.Snapshot(prices)

	signals := make([]*model.TradingSignal, len(rep.Candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, rc.Concurrency))
	for i, cand := range rep.Candidates {
		g.Go(func() error {
			sig, err := p.evaluate(gctx, rc, bySymbol[cand.Symbol], cand, state, fails)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			signals[i] = sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, s := range signals {
		if s != nil {
			rep.Signals = append(rep.Signals, *s)
		}
	}

	if rc.ExecuteOrders && p.Broker != nil {
		rep.Orders = p.execute(ctx, rc, bySymbol, rep.Signals, fails, log)
	}

	sort.SliceStable(fails.items, func(i, j int) bool { return fails.items[i].Symbol < fails.items[j].Symbol })
	rep.Failures = fails.items
	rep.FinishedAt = p.now().UTC()

	if err := p.Recorder.RecordRun(ctx, rep); err != nil {
		log.Error("failed to record run", zap.Error(err))
	}
	if p.Board != nil {
		p.Board.Publish(*rep)
	}

	log.Info("run finished",
		zap.Int("signals", len(rep.Signals)),
		zap.Int("actionable", len(rep.Actionable())),
		zap.Int("orders", len(rep.Orders)),
		zap.Int("failures", len(rep.Failures)),
		zap.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep, nil
}

// evaluate runs detector, indicators and sentiment for one candidate
// concurrently, then scores and records the symbol.
func (p *Pipeline) evaluate(ctx context.Context, rc RunContext, h model.SymbolHistory, cand model.Candidate,
	state model.PortfolioState, fails *failureLog) (*model.TradingSignal, error) {
	if rc.SymbolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.SymbolTimeout)
		defer cancel()
	}

	var (
		patterns  []model.PatternMatch
		readings  []model.IndicatorReading
		snap      indicator.Snapshot
		sentScore *model.SentimentScore
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		if patterns, err = p.Detector.Detect(h.Symbol, rc.Timeframe, h.Bars); err != nil {
			return stageError{StagePattern, err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if readings, snap, err = p.Engine.Compute(h.Symbol, rc.Timeframe, h.Bars); err != nil {
			return stageError{StageIndicate, err}
		}
		return nil
	})
	g.Go(func() error {
		sentScore = p.Sentiment.Get(ctx, h.Symbol)
		return nil
	})
	if err := g.Wait(); err != nil {
		var se stageError
		if errors.As(err, &se) {
			fails.add(h.Symbol, se.stage, se.err)
		}
		p.Logger.Warn("symbol evaluation failed", zap.String("run_id", rc.RunID), zap.String("symbol", h.Symbol), zap.Error(err))
		return nil, err
	}

	sig := p.Scorer.Score(strategy.Input{
		RunID:      rc.RunID,
		Symbol:     h.Symbol,
		Patterns:   patterns,
		Indicators: readings,
		Sentiment:  sentScore,
		Trend:      trendContext(snap, cand),
		Portfolio:  state,
	})

	rec := &recorder.SymbolRecord{
		RunID:      rc.RunID,
		Symbol:     h.Symbol,
		Patterns:   patterns,
		Indicators: readings,
		Sentiment:  sentScore,
		Signal:     &sig,
	}
	if err := p.Recorder.RecordSymbol(ctx, rec); err != nil {
		p.Logger.Error("failed to record symbol", zap.String("run_id", rc.RunID), zap.String("symbol", h.Symbol), zap.Error(err))
		fails.add(h.Symbol, StageRecord, err)
	}
	return &sig, nil
}

type stageError struct {
	stage string
	err   error
}

func (e stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e stageError) Unwrap() error { return e.err }

func trendContext(s indicator.Snapshot, c model.Candidate) strategy.TrendContext {
	t := strategy.TrendContext{Close: s.Close, RelativeVolume: c.RelativeVolume}
	if s.MA20 != nil {
		t.MA20 = *s.MA20
	}
	if s.MA50 != nil {
		t.MA50 = *s.MA50
	}
	if s.ATR != nil {
		t.ATR = *s.ATR
	}
	return t
}

// execute checks exits on held positions, then submits actionable signals
// strongest first. Orders are processed one at a time against the account.
func (p *Pipeline) execute(ctx context.Context, rc RunContext, bySymbol map[string]model.SymbolHistory,
	signals []model.TradingSignal, fails *failureLog, log *zap.Logger) []model.Order {
	var orders []model.Order

	held := p.Portfolio.Snapshot(nil).CurrentPositions
	symbols := make([]string, 0, len(held))
	for sym := range held {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		h, ok := bySymbol[sym]
		if !ok {
			continue
		}
		o, err := p.Broker.CheckExits(ctx, rc.RunID, sym, h.Bars[len(h.Bars)-1])
		if err != nil {
			log.Error("exit check failed", zap.String("symbol", sym), zap.Error(err))
			fails.add(sym, StageOrder, err)
		}
		if o != nil {
			orders = append(orders, *o)
		}
	}

	actionable := make([]model.TradingSignal, 0, len(signals))
	for _, s := range signals {
		if s.Actionable() {
			actionable = append(actionable, s)
		}
	}
	sort.SliceStable(actionable, func(i, j int) bool {
		return math.Abs(actionable[i].CompositeScore-50) > math.Abs(actionable[j].CompositeScore-50)
	})
	for _, s := range actionable {
		o, err := p.Broker.Submit(ctx, s)
		if err != nil {
			log.Error("order submission failed", zap.String("symbol", s.Symbol), zap.Error(err))
			fails.add(s.Symbol, StageOrder, err)
			if o.ID == "" {
				continue
			}
		}
		orders = append(orders, o)
	}
	return orders
}
