package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATA_SOURCE", "DATA_PATH", "SQLITE_PATH", "REDIS_ADDR",
		"REDIS_PASSWORD", "METRICS_ADDR", "LOG_LEVEL", "BACKTEST_WORKERS",
		"ALERT_WEBHOOK_URL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 365, cfg.Backtest.MinDays)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.PublishTimeout)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  source: csv
  path: /srv/nse
backtest:
  strategy: rsi
  top_n: 25
  symbols: ["infy, tcs", wipro]
  params:
    window: 21
    buy: 25
redis:
  publish_timeout: 5s
log_level: debug
`), 0o644))

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("BACKTEST_WORKERS", "3")
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceCSV, cfg.Data.Source)
	assert.Equal(t, "/srv/nse", cfg.Data.Path)
	assert.Equal(t, "rsi", cfg.Backtest.Strategy)
	assert.Equal(t, 25, cfg.Backtest.TopN)
	assert.Equal(t, 365, cfg.Backtest.MinDays, "unset keys keep defaults")
	assert.Equal(t, map[string]float64{"window": 21, "buy": 25}, cfg.Backtest.Params)
	assert.Equal(t, []string{"INFY", "TCS", "WIPRO"}, cfg.Backtest.SymbolList())
	assert.Equal(t, "warn", cfg.LogLevel, "env beats file")
	assert.Equal(t, 3, cfg.Backtest.Workers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Second, cfg.Redis.PublishTimeout)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("BACKTEST_WORKERS", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "BACKTEST_WORKERS")

	t.Setenv("BACKTEST_WORKERS", "0")
	_, err = Load("")
	assert.ErrorContains(t, err, "workers")

	t.Setenv("BACKTEST_WORKERS", "")
	t.Setenv("DATA_SOURCE", "mongo")
	_, err = Load("")
	assert.ErrorContains(t, err, "mongo")

	t.Setenv("DATA_SOURCE", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	_, err = Load("")
	assert.ErrorContains(t, err, "telegram")

	t.Setenv("TELEGRAM_CHAT_ID", "42")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "42", cfg.Alerts.TelegramChatID)
	assert.Equal(t, 3, cfg.Alerts.StaleDays)
}
