package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"TradeSentinel/internal/model"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so readers do not block the writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER NOT NULL,
			universe     INTEGER,
			candidates   INTEGER,
			signals      INTEGER,
			actionable   INTEGER,
			orders       INTEGER,
			failures     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON pipeline_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS pattern_matches (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id             TEXT NOT NULL,
			symbol             TEXT NOT NULL,
			pattern_type       TEXT,
			pattern_name       TEXT,
			bias               TEXT,
			confidence         REAL,
			blended_confidence REAL,
			entry_price        REAL,
			stop_loss          REAL,
			target_price       REAL,
			timeframe          TEXT,
			detected_at        INTEGER,
			detail             TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_symbol ON pattern_matches(symbol, detected_at)`,

		`CREATE TABLE IF NOT EXISTS indicator_readings (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL,
			symbol         TEXT NOT NULL,
			indicator_name TEXT,
			value          REAL,
			signal         TEXT,
			timeframe      TEXT,
			calculated_at  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_indicators_symbol ON indicator_readings(symbol, calculated_at)`,

		`CREATE TABLE IF NOT EXISTS sentiment_scores (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			score       REAL,
			label       TEXT,
			relevance   REAL,
			headlines   INTEGER,
			source      TEXT,
			computed_at INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS trading_signals (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id            TEXT NOT NULL,
			symbol            TEXT NOT NULL,
			signal_type       TEXT,
			strength          TEXT,
			composite_score   REAL,
			entry_price       REAL,
			stop_loss         REAL,
			target_price      REAL,
			risk_reward_ratio REAL,
			position_size     INTEGER,
			confidence        REAL,
			rationale         TEXT,
			created_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol ON trading_signals(symbol, created_at)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id     TEXT NOT NULL,
			run_id       TEXT,
			symbol       TEXT NOT NULL,
			side         TEXT,
			quantity     INTEGER,
			price        REAL,
			stop_loss    REAL,
			target_price REAL,
			status       TEXT,
			reason       TEXT,
			realized_pnl REAL,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol, created_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(ctx context.Context, rep *model.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	failures, _ := json.Marshal(rep.Failures)
	_, err := r.db.ExecContext(ctx, `INSERT INTO pipeline_runs
		(run_id, started_at, finished_at, universe, candidates, signals, actionable, orders, failures)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		rep.RunID, rep.StartedAt.Unix(), rep.FinishedAt.Unix(), rep.Universe,
		len(rep.Candidates), len(rep.Signals), len(rep.Actionable()), len(rep.Orders), string(failures),
	)
	return err
}

func (r *SQLiteRecorder) RecordSymbol(ctx context.Context, rec *SymbolRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range rec.Patterns {
		if _, err := tx.ExecContext(ctx, `INSERT INTO pattern_matches
			(run_id, symbol, pattern_type, pattern_name, bias, confidence, blended_confidence,
			 entry_price, stop_loss, target_price, timeframe, detected_at, detail)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			rec.RunID, rec.Symbol, string(p.Type), p.Name, string(p.Bias), p.Confidence, p.BlendedConfidence,
			p.EntryPrice, p.StopLoss, p.TargetPrice, p.Timeframe, p.DetectedAt.Unix(), detailJSON(p.Detail),
		); err != nil {
			return fmt.Errorf("insert pattern: %w", err)
		}
	}

	for _, in := range rec.Indicators {
		if _, err := tx.ExecContext(ctx, `INSERT INTO indicator_readings
			(run_id, symbol, indicator_name, value, signal, timeframe, calculated_at)
			VALUES (?,?,?,?,?,?,?)`,
			rec.RunID, rec.Symbol, in.Name, in.Value, string(in.Signal), in.Timeframe, in.CalculatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("insert indicator: %w", err)
		}
	}

	if s := rec.Sentiment; s != nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sentiment_scores
			(run_id, symbol, score, label, relevance, headlines, source, computed_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			rec.RunID, rec.Symbol, s.Score, string(s.Label), s.Relevance, s.Headlines, s.Source, s.ComputedAt.Unix(),
		); err != nil {
			return fmt.Errorf("insert sentiment: %w", err)
		}
	}

	if s := rec.Signal; s != nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO trading_signals
			(run_id, symbol, signal_type, strength, composite_score, entry_price, stop_loss, target_price,
			 risk_reward_ratio, position_size, confidence, rationale, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			rec.RunID, rec.Symbol, string(s.Type), string(s.Strength), s.CompositeScore, s.EntryPrice,
			s.StopLoss, s.TargetPrice, s.RiskRewardRatio, s.PositionSize, s.Confidence,
			rationaleJSON(s.Rationale), s.CreatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("insert signal: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRecorder) RecordOrder(ctx context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO orders
		(order_id, run_id, symbol, side, quantity, price, stop_loss, target_price, status, reason, realized_pnl, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.RunID, o.Symbol, string(o.Side), o.Quantity, o.Price, o.StopLoss, o.TargetPrice,
		string(o.Status), o.Reason, o.RealizedPnL, o.CreatedAt.Unix(),
	)
	return err
}

func (r *SQLiteRecorder) RecentSignals(ctx context.Context, symbol string, limit int) ([]model.TradingSignal, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT run_id, symbol, signal_type, strength, composite_score,
		entry_price, stop_loss, target_price, risk_reward_ratio, position_size, confidence, rationale, created_at
		FROM trading_signals WHERE symbol = ? ORDER BY created_at DESC, id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TradingSignal
	for rows.Next() {
		var (
			s         model.TradingSignal
			typ, str  string
			rationale string
			created   int64
		)
		if err := rows.Scan(&s.RunID, &s.Symbol, &typ, &str, &s.CompositeScore, &s.EntryPrice, &s.StopLoss,
			&s.TargetPrice, &s.RiskRewardRatio, &s.PositionSize, &s.Confidence, &rationale, &created); err != nil {
			return nil, err
		}
		s.Type = model.SignalType(typ)
		s.Strength = model.Strength(str)
		s.CreatedAt = time.Unix(created, 0).UTC()
		if err := json.Unmarshal([]byte(rationale), &s.Rationale); err != nil {
			r.logger.Warn("bad rationale json", zap.String("symbol", symbol), zap.Error(err))
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
