package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Data sources understood by the binaries.
const (
	SourceSQLite  = "sqlite"
	SourceCSV     = "csv"
	SourceParquet = "parquet"
)

// Config holds all application configuration. Values come from defaults,
// then an optional YAML file, then environment variables; CLI flags applied
// by the binaries take precedence over all three.
type Config struct {
	Data        Data     `yaml:"data"`
	Backtest    Backtest `yaml:"backtest"`
	Redis       Redis    `yaml:"redis"`
	Alerts      Alerts   `yaml:"alerts"`
	MetricsAddr string   `yaml:"metrics_addr"`
	LogLevel    string   `yaml:"log_level"`
}

// Data selects where bar history is read from.
type Data struct {
	Source     string `yaml:"source"` // sqlite | csv | parquet
	Path       string `yaml:"path"`   // directory for csv and parquet
	SQLitePath string `yaml:"sqlite_path"`
}

// Backtest holds run defaults.
type Backtest struct {
	Strategy string             `yaml:"strategy"`
	MinDays  int                `yaml:"min_days"`
	TopN     int                `yaml:"top_n"`
	Universe string             `yaml:"universe"`
	Symbols  []string           `yaml:"symbols"`
	Workers  int                `yaml:"workers"`
	ROIMode  string             `yaml:"roi_mode"`
	Params   map[string]float64 `yaml:"params"`
	Journal  string             `yaml:"journal"` // SQLite path; empty disables
}

// Redis configures report publishing.
type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// PublishTimeout bounds how long a run keeps retrying an unreachable
	// Redis before giving up on its report.
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// Alerts configures where scan signals are delivered. Empty fields disable
// the corresponding channel.
type Alerts struct {
	WebhookURL     string `yaml:"webhook_url"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	StaleDays      int    `yaml:"stale_days"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Data: Data{
			Source:     SourceSQLite,
			Path:       "data",
			SQLitePath: "data/bars.db",
		},
		Backtest: Backtest{
			Strategy: "ma_cross",
			MinDays:  365,
			TopN:     10,
			Universe: "all",
			Workers:  8,
			ROIMode:  "aggregate",
		},
		Redis: Redis{
			Addr:           "localhost:6379",
			PublishTimeout: 30 * time.Second,
		},
		Alerts: Alerts{
			StaleDays: 3,
		},
		MetricsAddr: "",
		LogLevel:    "info",
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	cfg.Data.Source = getEnv("DATA_SOURCE", cfg.Data.Source)
	cfg.Data.Path = getEnv("DATA_PATH", cfg.Data.Path)
	cfg.Data.SQLitePath = getEnv("SQLITE_PATH", cfg.Data.SQLitePath)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Alerts.WebhookURL = getEnv("ALERT_WEBHOOK_URL", cfg.Alerts.WebhookURL)
	cfg.Alerts.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Alerts.TelegramToken)
	cfg.Alerts.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", cfg.Alerts.TelegramChatID)

	// Setting an address is enough to turn publishing on.
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}

	if v := os.Getenv("BACKTEST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: BACKTEST_WORKERS=%q: %w", v, err)
		}
		cfg.Backtest.Workers = n
	}
	return nil
}

// Validate reports settings no binary can run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Data.Source {
	case SourceSQLite:
		if c.Data.SQLitePath == "" {
			errs = append(errs, errors.New("data.sqlite_path is required for the sqlite source"))
		}
	case SourceCSV, SourceParquet:
		if c.Data.Path == "" {
			errs = append(errs, fmt.Errorf("data.path is required for the %s source", c.Data.Source))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown data source %q (want sqlite, csv or parquet)", c.Data.Source))
	}
	if c.Backtest.Workers < 1 {
		errs = append(errs, fmt.Errorf("backtest.workers must be >= 1, got %d", c.Backtest.Workers))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if c.Redis.PublishTimeout < 0 {
		errs = append(errs, fmt.Errorf("redis.publish_timeout must be >= 0, got %s", c.Redis.PublishTimeout))
	}
	if (c.Alerts.TelegramToken == "") != (c.Alerts.TelegramChatID == "") {
		errs = append(errs, errors.New("alerts.telegram_token and alerts.telegram_chat_id must be set together"))
	}
	if c.Alerts.StaleDays < 0 {
		errs = append(errs, fmt.Errorf("alerts.stale_days must be >= 0, got %d", c.Alerts.StaleDays))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SymbolList returns the explicit symbol list, upper-cased, or nil when the
// universe selector applies.
func (b Backtest) SymbolList() []string {
	var out []string
	for _, s := range b.Symbols {
		for _, part := range strings.Split(s, ",") {
			if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
