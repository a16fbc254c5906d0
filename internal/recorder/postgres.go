package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"TradeSentinel/internal/model"
)

// PoolConfig tunes the pgx connection pool.
type PoolConfig struct {
	MaxConns          int32         `yaml:"max_conns"`
	MinConns          int32         `yaml:"min_conns"`
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   30 * time.Minute,
		MaxConnIdleTime:   5 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
	}
}

func (c PoolConfig) normalized() PoolConfig {
	if c.MaxConns < 1 {
		c.MaxConns = 1
	}
	if c.MinConns < 0 {
		c.MinConns = 0
	}
	if c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	return c
}

// withSSLMode defaults sslmode to "prefer" when the URL does not set one.
func withSSLMode(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return dbURL
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "prefer")
		u.RawQuery = q.Encode()
	}
	return strings.TrimSpace(u.String())
}

// PostgresRecorder persists run history to PostgreSQL.
type PostgresRecorder struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRecorder connects, pings and migrates.
func NewPostgresRecorder(ctx context.Context, databaseURL string, cfg PoolConfig, logger *zap.Logger) (*PostgresRecorder, error) {
	poolCfg, err := pgxpool.ParseConfig(withSSLMode(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg = cfg.normalized()
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &PostgresRecorder{pool: pool, logger: logger}
	if err := r.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("postgres recorder opened", zap.Int32("max_conns", cfg.MaxConns))
	return r, nil
}

// Migrate creates the history tables. There is no external migration tool.
func (r *PostgresRecorder) Migrate(ctx context.Context) error {
	stmts := []string{
		`create table if not exists pipeline_runs (
			id bigserial primary key,
			run_id text not null,
			started_at timestamptz not null,
			finished_at timestamptz not null,
			universe int not null default 0,
			candidates int not null default 0,
			signals int not null default 0,
			actionable int not null default 0,
			orders int not null default 0,
			failures jsonb not null default '[]'::jsonb
		);`,
		`create table if not exists pattern_matches (
			id bigserial primary key,
			run_id text not null,
			symbol text not null,
			pattern_type text not null,
			pattern_name text not null,
			bias text not null,
			confidence double precision not null,
			blended_confidence double precision not null,
			entry_price double precision not null,
			stop_loss double precision not null,
			target_price double precision not null,
			timeframe text not null,
			detected_at timestamptz not null,
			detail jsonb not null default '{}'::jsonb
		);`,
		`create index if not exists idx_pattern_matches_symbol on pattern_matches(symbol, detected_at desc);`,
		`create table if not exists indicator_readings (
			id bigserial primary key,
			run_id text not null,
			symbol text not null,
			indicator_name text not null,
			value double precision not null,
			signal text not null,
			timeframe text not null,
			calculated_at timestamptz not null
		);`,
		`create index if not exists idx_indicator_readings_symbol on indicator_readings(symbol, calculated_at desc);`,
		`create table if not exists sentiment_scores (
			id bigserial primary key,
			run_id text not null,
			symbol text not null,
			score double precision not null,
			label text not null,
			relevance double precision not null,
			headlines int not null,
			source text not null,
			computed_at timestamptz not null
		);`,
		`create table if not exists trading_signals (
			id bigserial primary key,
			run_id text not null,
			symbol text not null,
			signal_type text not null,
			strength text not null,
			composite_score double precision not null,
			entry_price double precision not null,
			stop_loss double precision not null,
			target_price double precision not null,
			risk_reward_ratio double precision not null,
			position_size bigint not null,
			confidence double precision not null,
			rationale jsonb not null default '{}'::jsonb,
			created_at timestamptz not null
		);`,
		`create index if not exists idx_trading_signals_symbol on trading_signals(symbol, created_at desc);`,
		`create table if not exists orders (
			id bigserial primary key,
			order_id text not null,
			run_id text not null default '',
			symbol text not null,
			side text not null,
			quantity bigint not null,
			price double precision not null,
			stop_loss double precision not null default 0,
			target_price double precision not null default 0,
			status text not null,
			reason text not null default '',
			realized_pnl double precision null,
			created_at timestamptz not null
		);`,
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRecorder) RecordRun(ctx context.Context, rep *model.RunReport) error {
	failures, err := json.Marshal(rep.Failures)
	if err != nil || rep.Failures == nil {
		failures = []byte("[]")
	}
	_, err = r.pool.Exec(ctx, `
		insert into pipeline_runs(run_id, started_at, finished_at, universe, candidates, signals, actionable, orders, failures)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rep.RunID, rep.StartedAt, rep.FinishedAt, rep.Universe, len(rep.Candidates),
		len(rep.Signals), len(rep.Actionable()), len(rep.Orders), string(failures),
	)
	return err
}

func (r *PostgresRecorder) RecordSymbol(ctx context.Context, rec *SymbolRecord) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range rec.Patterns {
			batch.Queue(`
				insert into pattern_matches(run_id, symbol, pattern_type, pattern_name, bias, confidence,
					blended_confidence, entry_price, stop_loss, target_price, timeframe, detected_at, detail)
				values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
				rec.RunID, rec.Symbol, string(p.Type), p.Name, string(p.Bias), p.Confidence, p.BlendedConfidence,
				p.EntryPrice, p.StopLoss, p.TargetPrice, p.Timeframe, p.DetectedAt, detailJSON(p.Detail))
		}
		for _, in := range rec.Indicators {
			batch.Queue(`
				insert into indicator_readings(run_id, symbol, indicator_name, value, signal, timeframe, calculated_at)
				values ($1,$2,$3,$4,$5,$6,$7)`,
				rec.RunID, rec.Symbol, in.Name, in.Value, string(in.Signal), in.Timeframe, in.CalculatedAt)
		}
		if s := rec.Sentiment; s != nil {
			batch.Queue(`
				insert into sentiment_scores(run_id, symbol, score, label, relevance, headlines, source, computed_at)
				values ($1,$2,$3,$4,$5,$6,$7,$8)`,
				rec.RunID, rec.Symbol, s.Score, string(s.Label), s.Relevance, s.Headlines, s.Source, s.ComputedAt)
		}
		if s := rec.Signal; s != nil {
			batch.Queue(`
				insert into trading_signals(run_id, symbol, signal_type, strength, composite_score, entry_price,
					stop_loss, target_price, risk_reward_ratio, position_size, confidence, rationale, created_at)
				values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
				rec.RunID, rec.Symbol, string(s.Type), string(s.Strength), s.CompositeScore, s.EntryPrice,
				s.StopLoss, s.TargetPrice, s.RiskRewardRatio, s.PositionSize, s.Confidence,
				rationaleJSON(s.Rationale), s.CreatedAt)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *PostgresRecorder) RecordOrder(ctx context.Context, o *model.Order) error {
	pnl := pgtype.Float8{}
	if o.Side == model.SideSell && o.Status == model.OrderFilled {
		pnl = pgtype.Float8{Float64: o.RealizedPnL, Valid: true}
	}
	_, err := r.pool.Exec(ctx, `
		insert into orders(order_id, run_id, symbol, side, quantity, price, stop_loss, target_price,
			status, reason, realized_pnl, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.RunID, o.Symbol, string(o.Side), o.Quantity, o.Price, o.StopLoss, o.TargetPrice,
		string(o.Status), o.Reason, pnl, o.CreatedAt,
	)
	return err
}

func (r *PostgresRecorder) RecentSignals(ctx context.Context, symbol string, limit int) ([]model.TradingSignal, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		select run_id, symbol, signal_type, strength, composite_score, entry_price, stop_loss, target_price,
			risk_reward_ratio, position_size, confidence, rationale, created_at
		from trading_signals
		where symbol = $1
		order by created_at desc, id desc
		limit $2`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.TradingSignal, 0)
	for rows.Next() {
		var (
			s         model.TradingSignal
			typ, str  string
			rationale []byte
		)
		if err := rows.Scan(&s.RunID, &s.Symbol, &typ, &str, &s.CompositeScore, &s.EntryPrice, &s.StopLoss,
			&s.TargetPrice, &s.RiskRewardRatio, &s.PositionSize, &s.Confidence, &rationale, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Type = model.SignalType(typ)
		s.Strength = model.Strength(str)
		if err := json.Unmarshal(rationale, &s.Rationale); err != nil {
			r.logger.Warn("bad rationale json", zap.String("symbol", symbol), zap.Error(err))
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRecorder) Close() error {
	r.logger.Info("closing postgres recorder")
	r.pool.Close()
	return nil
}
