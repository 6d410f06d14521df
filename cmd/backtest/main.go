// cmd/backtest runs one strategy over a universe of symbols from the
// configured bar store and prints the ranked results.
//
// Usage:
//
//	go run ./cmd/backtest --strategy=rsi --param buy=30 --param sell=70 --universe=nifty_50
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"equity-backtest/config"
	"equity-backtest/internal/backtest"
	"equity-backtest/internal/logger"
	"equity-backtest/internal/metrics"
	"equity-backtest/internal/model"
	"equity-backtest/internal/store"
	redisstore "equity-backtest/internal/store/redis"
	sqlitestore "equity-backtest/internal/store/sqlite"
	"equity-backtest/internal/strategy"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to YAML config file")
	strategyName := flag.String("strategy", "", "Strategy to run (see --list)")
	source := flag.String("source", "", "Bar source: sqlite | csv | parquet")
	path := flag.String("path", "", "Bar directory (csv, parquet) or SQLite file")
	universe := flag.String("universe", "", `Universe name, or "all"`)
	symbols := flag.String("symbols", "", "Comma-separated symbols; overrides --universe")
	minDays := flag.Int("min-days", 0, "Skip symbols with fewer bars (negative disables)")
	topN := flag.Int("top", 0, "Rows to report (0 = all)")
	workers := flag.Int("workers", 0, "Symbols backtested concurrently")
	roiMode := flag.String("roi-mode", "", "ROI mode: aggregate | per_trade")
	journal := flag.String("journal", "", "SQLite file recording runs and trades")
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	useRedis := flag.Bool("redis", false, "Publish the report to Redis")
	metricsAddr := flag.String("metrics-addr", "", "Serve /metrics and /healthz on this address")
	list := flag.Bool("list", false, "List strategies and exit")
	params := paramFlags{}
	flag.Var(params, "param", "Strategy parameter key=value (repeatable)")
	flag.Parse()

	registry := strategy.NewDefaultRegistry()
	if *list {
		for _, name := range registry.List() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// CLI flags take precedence over the file and the environment.
	pathSet := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strategy":
			cfg.Backtest.Strategy = *strategyName
		case "source":
			cfg.Data.Source = *source
		case "path":
			pathSet = true
		case "universe":
			cfg.Backtest.Universe = *universe
		case "symbols":
			cfg.Backtest.Symbols = []string{*symbols}
		case "min-days":
			cfg.Backtest.MinDays = *minDays
		case "top":
			cfg.Backtest.TopN = *topN
		case "workers":
			cfg.Backtest.Workers = *workers
		case "roi-mode":
			cfg.Backtest.ROIMode = *roiMode
		case "journal":
			cfg.Backtest.Journal = *journal
		case "redis":
			cfg.Redis.Enabled = *useRedis
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		}
	})
	if pathSet {
		// --path follows the source, which may itself come from a flag.
		if cfg.Data.Source == config.SourceSQLite {
			cfg.Data.SQLitePath = *path
		} else {
			cfg.Data.Path = *path
		}
	}
	if cfg.Backtest.Params == nil {
		cfg.Backtest.Params = map[string]float64{}
	}
	for k, v := range params {
		cfg.Backtest.Params[k] = v
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.Init("backtest", logger.ParseLevel(cfg.LogLevel))
	if err := run(cfg, registry, *asJSON, log); err != nil {
		log.Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, registry *strategy.Registry, asJSON bool, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mode, err := backtest.ParseROIMode(cfg.Backtest.ROIMode)
	if err != nil {
		return err
	}
	strat, warnings, err := registry.Build(cfg.Backtest.Strategy, strategy.Params(cfg.Backtest.Params), log)
	if err != nil {
		return err
	}

	runID := logger.GenerateRunID(strat.Name(), time.Now())
	ctx = logger.WithRunID(ctx, runID)

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, health, reg, log)
		srv.Start()
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
			defer stop()
			srv.Stop(stopCtx)
		}()
	}

	// ---- Bar store ----
	ds, err := store.OpenDataset(cfg.Data)
	if err != nil {
		return err
	}
	defer ds.Close()
	if r, ok := ds.(*sqlitestore.Reader); ok {
		health.CheckSQLite(ctx, r.DB())
	}

	symbols := cfg.Backtest.SymbolList()
	if len(symbols) == 0 {
		if symbols, err = ds.Symbols(ctx, cfg.Backtest.Universe); err != nil {
			return err
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("universe %q has no symbols", cfg.Backtest.Universe)
	}

	// ---- Run ----
	health.RunStarted(runID)
	log.Info("backtest starting", append(logger.LogWithRun(ctx),
		"strategy", strat.Name(), "params", strat.Params(), "symbols", len(symbols))...)

	runner := backtest.NewRunner(ds, strat, backtest.Options{
		MinDays: cfg.Backtest.MinDays,
		Workers: cfg.Backtest.Workers,
		Logger:  log,
		Metrics: prom,
	})
	histories, stats, err := runner.Run(ctx, symbols)
	health.RunFinished(err)
	if err != nil {
		return err
	}

	report := backtest.BuildReport(backtest.ReportInput{
		RunID:     runID,
		Strategy:  strat.Name(),
		Params:    map[string]float64(strat.Params()),
		Universe:  cfg.Backtest.Universe,
		Histories: histories,
		Stats:     stats,
		TopN:      cfg.Backtest.TopN,
		Mode:      mode,
		Warnings:  warnings,
	})
	prom.LastRunSymbols.Set(float64(len(report.Rows)))

	// ---- Sinks ----
	var sinkErrs []error
	if cfg.Backtest.Journal != "" {
		sinkErrs = append(sinkErrs, recordRun(ctx, cfg.Backtest.Journal, report, histories))
	}
	if cfg.Redis.Enabled {
		sinkErrs = append(sinkErrs, publish(ctx, cfg.Redis, report, prom, health, log))
	}
	if err := errors.Join(sinkErrs...); err != nil {
		log.Warn("report sink failed", append(logger.LogWithRun(ctx), "error", err)...)
	}

	if asJSON {
		return printJSON(os.Stdout, report)
	}
	return printTable(os.Stdout, report, stats)
}

func recordRun(ctx context.Context, path string, report *model.Report, histories map[string]*model.SymbolHistory) error {
	j, err := sqlitestore.NewJournal(path)
	if err != nil {
		return err
	}
	defer j.Close()
	return j.RecordRun(ctx, report, histories)
}

// publish sends the report through the circuit-breaker buffer, retrying
// until it lands or cfg.PublishTimeout passes.
func publish(ctx context.Context, cfg config.Redis, report *model.Report, prom *metrics.Metrics, health *metrics.HealthStatus, log *slog.Logger) error {
	w, err := redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Logger:   log,
		Metrics:  prom,
	})
	if err != nil {
		return err
	}
	defer w.Close()
	health.CheckRedis(ctx, w.Client())
	return deliver(ctx, w, report, cfg.PublishTimeout, prom, log)
}

var (
	publishFailures = 3
	publishReset    = 2 * time.Second
	publishRetry    = 500 * time.Millisecond
)

func deliver(ctx context.Context, next model.ReportPublisher, report *model.Report, timeout time.Duration, prom *metrics.Metrics, log *slog.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cb := redisstore.NewCircuitBreaker(publishFailures, publishReset)
	bp := redisstore.NewBufferedPublisher(next, cb, 0, prom, log)
	return bp.Deliver(ctx, report, publishRetry)
}
