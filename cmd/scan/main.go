// cmd/scan prints a point-in-time screen of a universe: moving-average
// position, RSI/ADX, Ichimoku score, 52-week direction, golden cross,
// MA pullback and the latest signal of each strategy. With --budget and
// --risk it also sizes a trade for every symbol. With --notify, symbols with
// a BUY signal are sent to the configured alert channels; symbols whose data
// is more than alerts.stale_days sessions behind are logged.
//
// Usage:
//
//	go run ./cmd/scan --universe=nifty_50 --budget=50000 --risk=1000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"equity-backtest/config"
	"equity-backtest/internal/indicator"
	"equity-backtest/internal/logger"
	"equity-backtest/internal/markethours"
	"equity-backtest/internal/model"
	"equity-backtest/internal/notification"
	"equity-backtest/internal/risk"
	"equity-backtest/internal/store"
	"equity-backtest/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	source := flag.String("source", "", "Bar source: sqlite | csv | parquet")
	path := flag.String("path", "", "Bar directory (csv, parquet) or SQLite file")
	universe := flag.String("universe", "", `Universe name, or "all"`)
	symbols := flag.String("symbols", "", "Comma-separated symbols; overrides --universe")
	strategies := flag.String("strategies", "", "Comma-separated strategies to evaluate (default all)")
	budget := flag.Float64("budget", 0, "Capital per trade; enables trade sizing")
	riskAmt := flag.Float64("risk", 0, "Maximum loss per trade")
	ratio := flag.Float64("reward-ratio", risk.DefaultRewardRatio, "Target as a multiple of per-share risk")
	delta := flag.Float64("delta", risk.DefaultDelta, "Entry/stop offset as a fraction of price")
	notify := flag.Bool("notify", false, "Send BUY signals to the configured alert channels")
	webhook := flag.String("webhook", "", "Alert webhook URL; overrides alerts.webhook_url")
	columns := flag.String("columns", "", `Extra indicator columns, e.g. "SMA:20,ATR:14,CCI:20"`)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *source != "" {
		cfg.Data.Source = *source
	}
	if *path != "" {
		if cfg.Data.Source == config.SourceSQLite {
			cfg.Data.SQLitePath = *path
		} else {
			cfg.Data.Path = *path
		}
	}
	if *universe != "" {
		cfg.Backtest.Universe = *universe
	}
	if *symbols != "" {
		cfg.Backtest.Symbols = []string{*symbols}
	}
	if *webhook != "" {
		cfg.Alerts.WebhookURL = *webhook
	}

	log := logger.Init("scan", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req := risk.Request{Budget: *budget, Risk: *riskAmt, RewardRatio: *ratio, Delta: *delta}
	if err := run(ctx, cfg, *strategies, *columns, req, *notify, log); err != nil {
		log.Error("scan failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, strategyList, columnList string, req risk.Request, notify bool, log *slog.Logger) error {
	strats, err := buildStrategies(strategy.NewDefaultRegistry(), strategyList, log)
	if err != nil {
		return err
	}
	cols, err := parseColumns(columnList)
	if err != nil {
		return err
	}

	ds, err := store.OpenDataset(cfg.Data)
	if err != nil {
		return err
	}
	defer ds.Close()

	symbols := cfg.Backtest.SymbolList()
	if len(symbols) == 0 {
		if symbols, err = ds.Symbols(ctx, cfg.Backtest.Universe); err != nil {
			return err
		}
	}

	set := settings{Strategies: strats, Plan: req, Now: time.Now(), Columns: cols}
	rows, err := scanAll(ctx, ds, symbols, set, cfg.Backtest.Workers, log)
	if err != nil {
		return err
	}
	warnStale(rows, set.Now, cfg.Alerts.StaleDays, log)

	if err := printRows(os.Stdout, rows, set); err != nil {
		return err
	}
	if notify {
		sent, err := sendAlerts(ctx, notification.New(cfg.Alerts, log), rows)
		log.Info("alerts sent", "count", sent)
		if err != nil {
			log.Warn("alert delivery failed", "error", err)
		}
	}
	return nil
}

// warnStale logs symbols whose last bar is more than allowed sessions
// behind the last completed session.
func warnStale(rows []row, now time.Time, allowed int, log *slog.Logger) {
	want := markethours.LastSession(now)
	for _, r := range rows {
		if r.Behind > allowed {
			log.Warn("stale data", "symbol", r.Symbol, "last_bar", r.Date.Format("2006-01-02"),
				"last_session", want.Format("2006-01-02"), "behind", r.Behind)
		}
	}
}

// sendAlerts notifies every row with a BUY signal and returns how many
// alerts were delivered.
func sendAlerts(ctx context.Context, n notification.Notifier, rows []row) (int, error) {
	var (
		sent int
		errs []error
	)
	for _, r := range rows {
		a, ok := alertFor(r)
		if !ok {
			continue
		}
		if err := n.Send(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Symbol, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// buildStrategies builds the named strategies with default parameters, or
// every registered strategy when list is empty.
func buildStrategies(reg *strategy.Registry, list string, log *slog.Logger) ([]strategy.Strategy, error) {
	names := reg.List()
	if list != "" {
		names = nil
		for _, n := range strings.Split(list, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	out := make([]strategy.Strategy, 0, len(names))
	for _, n := range names {
		s, _, err := reg.Build(n, nil, log)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// parseColumns parses a comma-separated list of TYPE:PERIOD specs.
func parseColumns(list string) ([]indicator.Spec, error) {
	var out []indicator.Spec
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		spec, err := indicator.ParseSpec(part)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// scanAll screens symbols concurrently. Symbols that cannot be loaded or
// screened are logged and left out; rows are sorted by symbol.
func scanAll(ctx context.Context, ds model.MarketDataset, symbols []string, set settings, workers int, log *slog.Logger) ([]row, error) {
	results := make([]*row, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, sym := range symbols {
		i := i
		sym := sym
		g.Go(func() error {
			bars, err := ds.Bars(gctx, sym)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("symbol load failed", "symbol", sym, "error", err)
				return nil
			}
			r, err := scanSymbol(bars, set)
			if err != nil {
				log.Warn("symbol scan failed", "symbol", sym, "error", err)
				return nil
			}
			results[i] = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]row, 0, len(results))
	for _, r := range results {
		if r != nil {
			rows = append(rows, *r)
		}
	}
	if len(rows) == 0 && len(symbols) > 0 {
		return nil, errors.New("no symbol could be scanned")
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows, nil
}
