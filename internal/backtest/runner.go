package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"equity-backtest/internal/logger"
	"equity-backtest/internal/metrics"
	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
	"equity-backtest/internal/strategy"
)

// DefaultMinDays is the history floor below which a symbol is skipped.
const DefaultMinDays = 365

// Options tunes a Runner. Zero values take defaults.
type Options struct {
	MinDays int // 0 means DefaultMinDays; negative disables the floor
	Workers int // concurrent symbols; 0 means 8
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Stats counts what happened to each requested symbol.
type Stats struct {
	Ran     int `json:"ran"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Runner backtests one strategy over a universe of symbols. Each symbol is
// scanned sequentially on its own goroutine; symbols share no state.
type Runner struct {
	dataset  model.MarketDataset
	strategy strategy.Strategy
	minDays  int
	workers  int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewRunner creates a Runner over dataset for strategy s.
func NewRunner(dataset model.MarketDataset, s strategy.Strategy, opts Options) *Runner {
	r := &Runner{
		dataset:  dataset,
		strategy: s,
		minDays:  opts.MinDays,
		workers:  opts.Workers,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if r.minDays == 0 {
		r.minDays = DefaultMinDays
	}
	if r.workers <= 0 {
		r.workers = 8
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// errTooShort marks a symbol skipped by the history floor.
var errTooShort = errors.New("history shorter than min days")

type outcome struct {
	history *model.SymbolHistory
	err     error
}

// Run backtests every symbol and returns the histories of those that were
// scanned. Symbols below the history floor are skipped; dataset or series
// errors are logged and counted. Only context cancellation fails the run.
func (r *Runner) Run(ctx context.Context, symbols []string) (map[string]*model.SymbolHistory, Stats, error) {
	start := time.Now()
	results := make([]outcome, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, sym := range symbols {
		i := i
		sym := sym
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h, err := r.runSymbol(gctx, sym)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = outcome{history: h, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, fmt.Errorf("backtest %s: %w", r.strategy.Name(), err)
	}

	histories := make(map[string]*model.SymbolHistory, len(symbols))
	var stats Stats
	for i, res := range results {
		switch {
		case errors.Is(res.err, errTooShort):
			stats.Skipped++
			r.count("skipped")
		case res.err != nil:
			stats.Failed++
			r.count("failed")
			r.logger.Warn("symbol failed", append(logger.LogWithRun(ctx), "symbol", symbols[i], "error", res.err)...)
		default:
			stats.Ran++
			r.count("ran")
			histories[symbols[i]] = res.history
		}
	}

	if r.metrics != nil {
		r.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}
	r.logger.Info("backtest complete", append(logger.LogWithRun(ctx),
		"strategy", r.strategy.Name(),
		"ran", stats.Ran, "skipped", stats.Skipped, "failed", stats.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond).String())...)
	return histories, stats, nil
}

func (r *Runner) runSymbol(ctx context.Context, symbol string) (*model.SymbolHistory, error) {
	start := time.Now()
	bars, err := r.dataset.Bars(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", symbol, err)
	}
	asc, _, err := series.Normalize(bars)
	switch {
	case r.minDays > 0 && errors.Is(err, series.ErrInsufficient):
		return nil, errTooShort
	case err != nil:
		return nil, fmt.Errorf("series %s: %w", symbol, err)
	}
	if r.minDays > 0 && len(asc) < r.minDays {
		r.logger.Debug("symbol skipped", "symbol", symbol, "days", len(asc), "rows", len(bars), "min_days", r.minDays)
		return nil, errTooShort
	}

	h := r.scan(symbol, asc)
	if r.metrics != nil {
		r.metrics.SymbolDuration.Observe(time.Since(start).Seconds())
		r.metrics.TradesTotal.WithLabelValues(r.strategy.Name()).Add(float64(h.Sells))
	}
	return h, nil
}

// RunSeries scans one in-memory series, in either date order, from the first
// bar to the second-to-last: the last bar can only serve as a fill.
func (r *Runner) RunSeries(symbol string, bars []model.Bar) (*model.SymbolHistory, error) {
	asc, _, err := series.Normalize(bars)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", symbol, err)
	}
	return r.scan(symbol, asc), nil
}

// scan runs the strategy over an ascending, deduplicated series.
func (r *Runner) scan(symbol string, asc []model.Bar) *model.SymbolHistory {
	h := &model.SymbolHistory{Symbol: symbol, Days: len(asc)}
	pos := NewPosition(h)
	rule := r.strategy.Bind(asc)

	for i := 0; i < len(asc)-1; i++ {
		d := rule.Decide(i, pos.Holding())
		if d.Signal != model.SignalNone && r.metrics != nil {
			r.metrics.SignalsTotal.WithLabelValues(r.strategy.Name(), d.Signal.String()).Inc()
		}
		pos.Step(d, asc[i+1])
	}
	pos.Finish()
	return h
}

func (r *Runner) count(outcome string) {
	if r.metrics != nil {
		r.metrics.SymbolsTotal.WithLabelValues(outcome).Inc()
	}
}
