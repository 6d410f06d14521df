// cmd/importbars loads a directory of per-symbol CSV files into the SQLite
// or Parquet bar store. Universes listed in the directory's universes.yaml
// are carried over.
//
// Usage:
//
//	go run ./cmd/importbars --from=./data/csv --to=sqlite --dest=data/bars.db
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"equity-backtest/config"
	"equity-backtest/internal/logger"
	"equity-backtest/internal/metrics"
	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
	"equity-backtest/internal/store"
	"equity-backtest/internal/store/csvdir"
	sqlitestore "equity-backtest/internal/store/sqlite"
)

func main() {
	from := flag.String("from", "data", "Directory of SYMBOL.csv files")
	to := flag.String("to", config.SourceSQLite, "Destination: sqlite | parquet | csv")
	dest := flag.String("dest", "data/bars.db", "SQLite file or destination directory")
	workers := flag.Int("workers", 4, "Files parsed concurrently")
	level := flag.String("log-level", "info", "debug | info | warn | error")
	flag.Parse()

	log := logger.Init("importbars", logger.ParseLevel(*level))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dst := config.Data{Source: *to, Path: *dest, SQLitePath: *dest}
	n, err := importDir(ctx, *from, dst, *workers, log)
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}
	log.Info("import complete", "bars", n, "from", *from, "to", *to)
}

// importDir copies every symbol of the CSV directory into dst and returns
// the number of bars written.
func importDir(ctx context.Context, dir string, dst config.Data, workers int, log *slog.Logger) (int, error) {
	src, err := csvdir.Open(dir)
	if err != nil {
		return 0, err
	}
	symbols, err := src.Symbols(ctx, model.UniverseAll)
	if err != nil {
		return 0, err
	}
	universes, err := csvdir.LoadUniverses(dir)
	if err != nil {
		return 0, err
	}

	if dst.Source == config.SourceSQLite {
		if parent := filepath.Dir(dst.SQLitePath); parent != "" {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return 0, err
			}
		}
	}

	prom := metrics.NewMetrics(prometheus.NewRegistry())
	w, err := store.OpenWriter(dst, log, prom)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	var written int
	if sw, ok := w.(*sqlitestore.Writer); ok {
		written, err = streamSQLite(ctx, src, sw, symbols, workers, log)
	} else {
		written, err = writeEach(ctx, src, w, symbols, workers, log)
	}
	if err != nil {
		return written, err
	}

	if err := copyUniverses(ctx, w, dir, dst, universes); err != nil {
		return written, err
	}
	return written, nil
}

// streamSQLite parses files concurrently and feeds the writer's batching
// loop. Bars already stored (up to the last stored date) are skipped.
func streamSQLite(ctx context.Context, src *csvdir.Dataset, w *sqlitestore.Writer, symbols []string, workers int, log *slog.Logger) (int, error) {
	barCh := make(chan model.Bar, 5000)
	done := make(chan int, 1)
	go func() { done <- w.Run(ctx, barCh) }()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			bars, err := loadAscending(gctx, src, sym)
			if err != nil {
				log.Warn("skipping file", "symbol", sym, "error", err)
				return nil
			}
			last, ok, err := w.LastDate(gctx, sym)
			if err != nil {
				return fmt.Errorf("last date %s: %w", sym, err)
			}
			sent := 0
			for _, b := range bars {
				if ok && !b.Date.After(last) {
					continue
				}
				select {
				case barCh <- b:
					sent++
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			log.Debug("queued symbol", "symbol", sym, "bars", sent)
			return nil
		})
	}
	err := g.Wait()
	close(barCh)
	return <-done, err
}

func writeEach(ctx context.Context, src *csvdir.Dataset, w model.BarWriter, symbols []string, workers int, log *slog.Logger) (int, error) {
	counts := make([]int, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, sym := range symbols {
		i := i
		sym := sym
		g.Go(func() error {
			bars, err := loadAscending(gctx, src, sym)
			if err != nil {
				log.Warn("skipping file", "symbol", sym, "error", err)
				return nil
			}
			if err := w.WriteBars(gctx, sym, bars); err != nil {
				return fmt.Errorf("write %s: %w", sym, err)
			}
			counts[i] = len(bars)
			return nil
		})
	}
	err := g.Wait()
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, err
}

// loadAscending reads a symbol's file and repairs order and duplicates.
func loadAscending(ctx context.Context, src *csvdir.Dataset, symbol string) ([]model.Bar, error) {
	bars, err := src.Bars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) < 2 {
		return bars, nil
	}
	asc, _, err := series.Normalize(bars)
	return asc, err
}

// copyUniverses stores universe membership in the destination: a table for
// SQLite, a universes.yaml copy for directory stores.
func copyUniverses(ctx context.Context, w model.BarWriter, srcDir string, dst config.Data, universes map[string][]string) error {
	if len(universes) == 0 {
		return nil
	}
	if sw, ok := w.(*sqlitestore.Writer); ok {
		names := make([]string, 0, len(universes))
		for name := range universes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			members, err := csvdir.ResolveUniverse(universes, name)
			if err != nil {
				return err
			}
			if err := sw.SetUniverse(ctx, name, members); err != nil {
				return err
			}
		}
		return nil
	}

	if filepath.Clean(srcDir) == filepath.Clean(dst.Path) {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(srcDir, csvdir.UniversesFile))
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dst.Path, csvdir.UniversesFile), data, 0o644)
}
