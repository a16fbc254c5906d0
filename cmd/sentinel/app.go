package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"TradeSentinel/internal/api"
	"TradeSentinel/internal/broker"
	"TradeSentinel/internal/cache"
	"TradeSentinel/internal/collector"
	"TradeSentinel/internal/config"
	"TradeSentinel/internal/indicator"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/pattern"
	"TradeSentinel/internal/pipeline"
	"TradeSentinel/internal/portfolio"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/scheduler"
	"TradeSentinel/internal/sentiment"
	"TradeSentinel/internal/snapshot"
	"TradeSentinel/internal/strategy"
)

// app holds every wired component of one process.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	recorder  recorder.Recorder
	portfolio *portfolio.Manager
	board     *snapshot.Board
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
	telegram  *notifier.TelegramNotifier // nil when not configured
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, board: snapshot.NewBoard()}

	col, err := a.buildCollector(ctx)
	if err != nil {
		return nil, err
	}

	scorer, err := strategy.NewScorer(cfg.Scoring, logger)
	if err != nil {
		return nil, err
	}

	pm, err := portfolio.NewManager(cfg.Portfolio.StateFile, cfg.Portfolio.InitialCapital, logger)
	if err != nil {
		return nil, fmt.Errorf("init portfolio: %w", err)
	}
	a.portfolio = pm

	a.recorder = a.buildRecorder(ctx)
	a.closers = append(a.closers, a.recorder.Close)

	var agg *sentiment.Aggregator
	if cfg.Sentiment.Provider == "yahoo_rss" {
		agg = sentiment.NewAggregator(sentiment.NewYahooRSSSource(cfg.Proxy), cfg.Sentiment.Timeout, cfg.Sentiment.Window, logger)
	}

	limits := broker.Limits{
		MaxOpenPositions: cfg.Scoring.MaxOpenPositions,
		MaxDailyLossPct:  cfg.Scoring.MaxDailyLossPct,
	}
	a.pipeline = pipeline.New(pipeline.Deps{
		Collector: col,
		Detector:  pattern.NewDetector(cfg.Pattern, logger),
		Engine:    indicator.NewEngine(indicator.NewManualBackend(), logger),
		Sentiment: agg,
		Scorer:    scorer,
		Portfolio: pm,
		Broker:    broker.NewPaperBroker(pm, a.recorder, limits, logger),
		Recorder:  a.recorder,
		Board:     a.board,
		Logger:    logger,
	})

	var n scheduler.Notifier
	if cfg.TelegramEnabled() {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		n = a.telegram
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	open, _ := config.ParseClock(cfg.Schedule.MarketOpen)
	closing, _ := config.ParseClock(cfg.Schedule.MarketClose)
	opts := pipeline.Options{
		Criteria:      cfg.Screening,
		Timeframe:     "1d",
		HistoryDays:   cfg.Pipeline.HistoryDays,
		Concurrency:   cfg.Pipeline.Concurrency,
		SymbolTimeout: cfg.Pipeline.SymbolTimeout,
		ExecuteOrders: cfg.Pipeline.ExecuteOrders,
	}
	a.scheduler = scheduler.NewScheduler(ctx, a.pipeline, pm, a.board, n, cfg.Universe, opts,
		scheduler.MarketHours{Location: loc, Open: open, Close: closing}, cfg.Schedule.MarketHoursOnly, logger)
	return a, nil
}

func (a *app) buildFetcher(name string) collector.Fetcher {
	switch name {
	case "rest":
		return collector.NewRESTFetcher(a.cfg.DataSource.BaseURL, a.cfg.DataSource.APIKey)
	case "mock":
		return &collector.MockFetcher{}
	case "yahoo":
		return collector.NewYahooFetcher(a.cfg.Proxy)
	default:
		return nil
	}
}

func (a *app) buildCollector(ctx context.Context) (*collector.Collector, error) {
	primary := a.buildFetcher(a.cfg.DataSource.Provider)
	if primary == nil {
		return nil, fmt.Errorf("unknown data provider %q", a.cfg.DataSource.Provider)
	}

	var store cache.Store
	switch a.cfg.Cache.Driver {
	case "redis":
		rs, err := cache.NewRedisStore(ctx, a.cfg.Cache.RedisAddr, a.cfg.Cache.Password, a.cfg.Cache.DB, a.cfg.Cache.Prefix)
		if err != nil {
			a.logger.Warn("redis cache unavailable, using memory", zap.Error(err))
			store = cache.NewMemoryStore()
		} else {
			store = rs
			a.closers = append(a.closers, rs.Close)
		}
	case "memory":
		store = cache.NewMemoryStore()
	}
	if store != nil {
		primary = collector.NewCachedFetcher(primary, store, a.cfg.Cache.TTL, a.logger)
	}

	col := collector.NewCollector(primary, a.buildFetcher(a.cfg.DataSource.Fallback), a.cfg.Pipeline.Concurrency, a.logger)
	col.Timeout = a.cfg.DataSource.Timeout
	a.logger.Info("data source ready", zap.String("fetcher", primary.Name()), zap.String("fallback", a.cfg.DataSource.Fallback))
	return col, nil
}

func (a *app) buildRecorder(ctx context.Context) recorder.Recorder {
	switch a.cfg.Database.Driver {
	case "sqlite":
		r, err := recorder.NewSQLiteRecorder(a.cfg.Database.SQLitePath, a.logger)
		if err != nil {
			a.logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
			return recorder.NewNoopRecorder()
		}
		return r
	case "postgres":
		r, err := recorder.NewPostgresRecorder(ctx, a.cfg.Database.URL, a.cfg.Database.Pool, a.logger)
		if err != nil {
			a.logger.Warn("init postgres recorder failed, using noop", zap.Error(err))
			return recorder.NewNoopRecorder()
		}
		return r
	default:
		return recorder.NewNoopRecorder()
	}
}

func (a *app) apiServer() *api.Server {
	return api.NewServer(a.cfg.API.Addr, a.board, a.portfolio, a.recorder, a.scheduler, a.logger)
}
