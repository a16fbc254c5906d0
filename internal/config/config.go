package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/pattern"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/screener"
	"TradeSentinel/internal/strategy"
)

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Encoding    string `yaml:"encoding"` // json or console
	Development bool   `yaml:"development"`
}

// Config holds all application configuration.
type Config struct {
	Log        LogConfig `yaml:"log"`
	DataSource struct {
		Provider string        `yaml:"provider"` // yahoo, rest or mock
		Fallback string        `yaml:"fallback"` // optional second provider
		BaseURL  string        `yaml:"base_url"`
		APIKey   string        `yaml:"api_key"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Cache struct {
		Driver    string        `yaml:"driver"` // memory, redis or none
		RedisAddr string        `yaml:"redis_addr"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Prefix    string        `yaml:"prefix"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	Universe  []string           `yaml:"universe"`
	Screening screener.Criteria  `yaml:"screening"`
	Pattern   pattern.Config     `yaml:"pattern"`
	Scoring   strategy.Config    `yaml:"scoring"`
	Sentiment struct {
		Provider string        `yaml:"provider"` // yahoo_rss or none
		Timeout  time.Duration `yaml:"timeout"`
		Window   time.Duration `yaml:"window"`
	} `yaml:"sentiment"`
	Pipeline struct {
		HistoryDays   int           `yaml:"history_days"`
		Concurrency   int           `yaml:"concurrency"`
		SymbolTimeout time.Duration `yaml:"symbol_timeout"`
		ExecuteOrders bool          `yaml:"execute_orders"`
	} `yaml:"pipeline"`
	Portfolio struct {
		InitialCapital float64 `yaml:"initial_capital"`
		StateFile      string  `yaml:"state_file"`
	} `yaml:"portfolio"`
	Database struct {
		Driver     string              `yaml:"driver"` // sqlite, postgres or none
		SQLitePath string              `yaml:"sqlite_path"`
		URL        string              `yaml:"url"`
		Pool       recorder.PoolConfig `yaml:"pool"`
	} `yaml:"database"`
	Schedule struct {
		CycleCron       string `yaml:"cycle_cron"`
		ResetCron       string `yaml:"reset_cron"`
		Timezone        string `yaml:"timezone"`
		MarketOpen      string `yaml:"market_open"`  // HH:MM
		MarketClose     string `yaml:"market_close"` // HH:MM
		MarketHoursOnly bool   `yaml:"market_hours_only"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	API struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"api"`
	Proxy string `yaml:"proxy"`
}

// DefaultUniverse is scanned when the config names no symbols.
var DefaultUniverse = []string{
	"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "TSLA", "AMD", "NFLX", "INTC",
	"JPM", "BAC", "XOM", "CVX", "PFE", "KO", "DIS", "NKE", "WMT", "COST",
}

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Screening = screener.DefaultCriteria()
	cfg.Pattern = pattern.DefaultConfig()
	cfg.Scoring = strategy.DefaultConfig()
	cfg.Database.Pool = recorder.DefaultPoolConfig()
	cfg.Schedule.MarketHoursOnly = true
	cfg.API.Enabled = true

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
		if c.Database.Driver == "" {
			c.Database.Driver = "postgres"
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
		c.Cache.Driver = "redis"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CRON_CYCLE"); v != "" {
		c.Schedule.CycleCron = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("UNIVERSE"); v != "" {
		c.Universe = SplitSymbols(v)
	}
	if v := os.Getenv("INITIAL_CAPITAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &model.ConfigError{Field: "INITIAL_CAPITAL", Reason: err.Error()}
		}
		c.Portfolio.InitialCapital = f
	}
	if v := os.Getenv("EXECUTE_ORDERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &model.ConfigError{Field: "EXECUTE_ORDERS", Reason: err.Error()}
		}
		c.Pipeline.ExecuteOrders = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.Timeout == 0 {
		c.DataSource.Timeout = 15 * time.Second
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "sentinel:"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 6 * time.Hour
	}
	if len(c.Universe) == 0 {
		c.Universe = append([]string(nil), DefaultUniverse...)
	}
	if c.Sentiment.Provider == "" {
		c.Sentiment.Provider = "yahoo_rss"
	}
	if c.Sentiment.Timeout == 0 {
		c.Sentiment.Timeout = 5 * time.Second
	}
	if c.Sentiment.Window == 0 {
		c.Sentiment.Window = 72 * time.Hour
	}
	if c.Pipeline.HistoryDays == 0 {
		c.Pipeline.HistoryDays = 120
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = 8
	}
	if c.Pipeline.SymbolTimeout == 0 {
		c.Pipeline.SymbolTimeout = 30 * time.Second
	}
	if c.Portfolio.InitialCapital == 0 {
		c.Portfolio.InitialCapital = 100000
	}
	if c.Portfolio.StateFile == "" {
		c.Portfolio.StateFile = "data/portfolio.json"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/trade_sentinel.db"
	}
	if c.Schedule.CycleCron == "" {
		c.Schedule.CycleCron = "0 */30 * * * 1-5"
	}
	if c.Schedule.ResetCron == "" {
		c.Schedule.ResetCron = "0 25 9 * * 1-5"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "America/New_York"
	}
	if c.Schedule.MarketOpen == "" {
		c.Schedule.MarketOpen = "09:30"
	}
	if c.Schedule.MarketClose == "" {
		c.Schedule.MarketClose = "16:00"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
}

// Validate checks the configuration once at startup. Every problem is fatal.
func (c *Config) Validate() error {
	if err := c.Screening.Validate(); err != nil {
		return err
	}
	if err := c.Pattern.Validate(); err != nil {
		return err
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return &model.ConfigError{Field: "data_source.base_url", Reason: "required for the rest provider"}
		}
	default:
		return &model.ConfigError{Field: "data_source.provider", Reason: fmt.Sprintf("unknown provider %q", c.DataSource.Provider)}
	}
	switch c.DataSource.Fallback {
	case "", "yahoo", "mock":
	default:
		return &model.ConfigError{Field: "data_source.fallback", Reason: fmt.Sprintf("unknown provider %q", c.DataSource.Fallback)}
	}
	switch c.Cache.Driver {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return &model.ConfigError{Field: "cache.redis_addr", Reason: "required for the redis driver"}
		}
	default:
		return &model.ConfigError{Field: "cache.driver", Reason: fmt.Sprintf("unknown driver %q", c.Cache.Driver)}
	}
	switch c.Sentiment.Provider {
	case "yahoo_rss", "none":
	default:
		return &model.ConfigError{Field: "sentiment.provider", Reason: fmt.Sprintf("unknown provider %q", c.Sentiment.Provider)}
	}
	switch c.Database.Driver {
	case "sqlite", "none":
	case "postgres":
		if c.Database.URL == "" {
			return &model.ConfigError{Field: "database.url", Reason: "required for the postgres driver"}
		}
	default:
		return &model.ConfigError{Field: "database.driver", Reason: fmt.Sprintf("unknown driver %q", c.Database.Driver)}
	}
	if c.Pipeline.Concurrency <= 0 {
		return &model.ConfigError{Field: "pipeline.concurrency", Reason: "must be positive"}
	}
	if c.Pipeline.HistoryDays <= c.Screening.LookbackDays {
		return &model.ConfigError{Field: "pipeline.history_days", Reason: "must exceed screening.lookback_days"}
	}
	if c.Portfolio.InitialCapital <= 0 {
		return &model.ConfigError{Field: "portfolio.initial_capital", Reason: "must be positive"}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return &model.ConfigError{Field: "schedule.timezone", Reason: err.Error()}
	}
	open, err := ParseClock(c.Schedule.MarketOpen)
	if err != nil {
		return &model.ConfigError{Field: "schedule.market_open", Reason: err.Error()}
	}
	closing, err := ParseClock(c.Schedule.MarketClose)
	if err != nil {
		return &model.ConfigError{Field: "schedule.market_close", Reason: err.Error()}
	}
	if closing <= open {
		return &model.ConfigError{Field: "schedule.market_close", Reason: "must be after market_open"}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return &model.ConfigError{Field: "telegram", Reason: "bot_token and chat_id must be set together"}
	}
	return nil
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// SplitSymbols parses a comma separated symbol list.
func SplitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
