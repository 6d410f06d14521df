// cmd/reports browses stored backtest results: runs recorded in the SQLite
// journal, and reports published to Redis.
//
// Usage:
//
//	go run ./cmd/reports --journal=data/journal.db
//	go run ./cmd/reports --journal=data/journal.db --run=rsi-20240102T093000
//	go run ./cmd/reports --journal=data/journal.db --run=rsi-20240102T093000 --symbol=INFY
//	go run ./cmd/reports --latest=rsi
//	go run ./cmd/reports --follow=rsi --metrics-addr=:9102
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"equity-backtest/config"
	"equity-backtest/internal/logger"
	"equity-backtest/internal/metrics"
	redisstore "equity-backtest/internal/store/redis"
	sqlitestore "equity-backtest/internal/store/sqlite"
)

// query selects what to show.
type query struct {
	RunID  string
	Symbol string
	Limit  int
	JSON   bool
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	journal := flag.String("journal", "", "SQLite journal written by cmd/backtest")
	runID := flag.String("run", "", "Show the report of one run")
	symbol := flag.String("symbol", "", "With --run, show the trades of one symbol")
	limit := flag.Int("limit", 20, "Runs to list")
	latest := flag.String("latest", "", "Show the latest report of a strategy from Redis")
	follow := flag.String("follow", "", "Print reports of a strategy as they are published to Redis")
	asJSON := flag.Bool("json", false, "Print JSON")
	metricsAddr := flag.String("metrics-addr", "", "With --follow, serve /metrics and /healthz on this address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *journal != "" {
		cfg.Backtest.Journal = *journal
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	log := logger.Init("reports", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	q := query{RunID: *runID, Symbol: *symbol, Limit: *limit, JSON: *asJSON}
	switch {
	case *latest != "":
		err = showLatest(ctx, cfg.Redis, *latest, q, os.Stdout)
	case *follow != "":
		err = followReports(ctx, cfg, *follow, q, os.Stdout, log)
	case cfg.Backtest.Journal != "":
		err = showJournal(ctx, cfg.Backtest.Journal, q, os.Stdout)
	default:
		err = errors.New("nothing to show: set --journal, --latest or --follow")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("reports failed", "error", err)
		os.Exit(1)
	}
}

// showJournal lists runs, prints one run's report, or one symbol's trades
// within a run.
func showJournal(ctx context.Context, path string, q query, w io.Writer) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	j, err := sqlitestore.NewJournal(path)
	if err != nil {
		return err
	}
	defer j.Close()

	switch {
	case q.RunID == "":
		runs, err := j.Runs(ctx, q.Limit)
		if err != nil {
			return err
		}
		if q.JSON {
			return printJSON(w, runs)
		}
		return printRuns(w, runs)

	case q.Symbol == "":
		rep, err := j.Report(ctx, q.RunID)
		if err != nil {
			return err
		}
		if q.JSON {
			return printJSON(w, rep)
		}
		return printReport(w, rep)

	default:
		trades, open, err := j.Trades(ctx, q.RunID, q.Symbol)
		if err != nil {
			return err
		}
		if len(trades) == 0 && open == nil {
			return fmt.Errorf("run %s has no trades for %s", q.RunID, q.Symbol)
		}
		if q.JSON {
			return printJSON(w, tradeLog{Symbol: q.Symbol, Trades: trades, Open: open})
		}
		return printTrades(w, q.Symbol, trades, open)
	}
}

func newRedisReader(cfg config.Redis) (*redisstore.Reader, error) {
	return redisstore.NewReader(redisstore.ReaderConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func showLatest(ctx context.Context, cfg config.Redis, strategy string, q query, w io.Writer) error {
	r, err := newRedisReader(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	rep, err := r.LatestReport(ctx, strategy)
	if err != nil {
		return err
	}
	if rep == nil {
		return fmt.Errorf("no report published for %s", strategy)
	}
	if q.JSON {
		return printJSON(w, rep)
	}
	return printReport(w, rep)
}

// followReports prints every report announced for strategy until the
// context is cancelled. With a metrics address it also serves health.
func followReports(ctx context.Context, cfg *config.Config, strategy string, q query, w io.Writer, log *slog.Logger) error {
	r, err := newRedisReader(cfg.Redis)
	if err != nil {
		return err
	}
	defer r.Close()

	if cfg.MetricsAddr != "" {
		health := metrics.NewHealthStatus()
		health.CheckRedis(ctx, r.Client())
		health.StartLivenessChecker(ctx, r.Client(), nil, 15*time.Second)
		srv := metrics.NewServer(cfg.MetricsAddr, health, nil, log)
		srv.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(stopCtx)
		}()
	}

	reports, err := r.Subscribe(ctx, strategy)
	if err != nil {
		return err
	}
	log.Info("following reports", "strategy", strategy)
	for rep := range reports {
		if q.JSON {
			err = printJSON(w, rep)
		} else {
			err = printReport(w, rep)
		}
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}
