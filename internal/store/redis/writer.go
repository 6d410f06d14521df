package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"equity-backtest/internal/metrics"
	"equity-backtest/internal/model"
)

const (
	defaultLatestTTL = 24 * time.Hour
	defaultRunTTL    = 7 * 24 * time.Hour
)

// LatestKey holds the most recent report of a strategy.
func LatestKey(strategy string) string { return "backtest:latest:" + strategy }

// RunKey holds the report of one run.
func RunKey(runID string) string { return "backtest:run:" + runID }

// Channel is the PubSub channel on which finished reports are announced.
func Channel(strategy string) string { return "pub:backtest:" + strategy }

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr      string // Redis address, e.g. "localhost:6379"
	Password  string
	DB        int
	LatestTTL time.Duration // 0 means 24h
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Writer publishes backtest reports to Redis. It implements
// model.ReportPublisher.
type Writer struct {
	client    *goredis.Client
	latestTTL time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	w := &Writer{
		client:    client,
		latestTTL: cfg.LatestTTL,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
	if w.latestTTL <= 0 {
		w.latestTTL = defaultLatestTTL
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger.Info("redis connected", "addr", cfg.Addr)
	return w, nil
}

// PublishReport stores the report under its run key and as the strategy's
// latest report, then announces it, all in one pipeline.
func (w *Writer) PublishReport(ctx context.Context, report *model.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	start := time.Now()

	pipe := w.client.Pipeline()
	pipe.Set(ctx, RunKey(report.RunID), data, defaultRunTTL)
	pipe.Set(ctx, LatestKey(report.Strategy), data, w.latestTTL)
	pipe.Publish(ctx, Channel(report.Strategy), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", report.RunID, err)
	}

	if w.metrics != nil {
		w.metrics.RedisPublishDur.Observe(time.Since(start).Seconds())
	}
	w.logger.Debug("report published", "run_id", report.RunID, "rows", len(report.Rows))
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
