// Package parquet stores daily bars as one Parquet file per symbol:
//
//	<dir>/<SYMBOL>.parquet
//
// Universes come from the same universes.yaml used by CSV directories.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	goparquet "github.com/parquet-go/parquet-go"

	"equity-backtest/internal/model"
	"equity-backtest/internal/store/csvdir"
)

// Compile-time interface checks.
var _ model.MarketDataset = (*Store)(nil)
var _ model.BarWriter = (*Store)(nil)

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	High52W   float64 `parquet:"high_52w"`
	Low52W    float64 `parquet:"low_52w"`
}

// Store reads and writes a Parquet bar directory.
type Store struct {
	dir       string
	universes map[string][]string
}

// Open creates dir if needed and loads its universes.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("parquet mkdir %s: %w", dir, err)
	}
	u, err := csvdir.LoadUniverses(dir)
	if err != nil {
		return nil, fmt.Errorf("parquet %s: %w", dir, err)
	}
	return &Store{dir: dir, universes: u}, nil
}

func (s *Store) path(symbol string) string {
	return filepath.Join(s.dir, strings.ToUpper(symbol)+".parquet")
}

// Symbols resolves a universe. "all" (or "") lists every stored symbol.
func (s *Store) Symbols(_ context.Context, universe string) ([]string, error) {
	if universe != "" && universe != model.UniverseAll {
		return csvdir.ResolveUniverse(s.universes, universe)
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.parquet"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSuffix(filepath.Base(m), ".parquet"))
	}
	sort.Strings(out)
	return out, nil
}

// Bars reads the full history of symbol in ascending date order.
func (s *Store) Bars(ctx context.Context, symbol string) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path(symbol)); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", model.ErrNoBars, symbol)
	}
	records, err := goparquet.ReadFile[BarRecord](s.path(symbol))
	if err != nil {
		return nil, fmt.Errorf("parquet read %s: %w", symbol, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrNoBars, symbol)
	}

	bars := make([]model.Bar, len(records))
	for i, r := range records {
		bars[i] = model.Bar{
			Symbol:  r.Symbol,
			Date:    time.UnixMilli(r.Timestamp).UTC(),
			Open:    r.Open,
			High:    r.High,
			Low:     r.Low,
			Close:   r.Close,
			High52W: r.High52W,
			Low52W:  r.Low52W,
		}
	}
	return bars, nil
}

// WriteBars merges bars into the symbol's file. Incoming rows replace stored
// rows with the same date.
func (s *Store) WriteBars(_ context.Context, symbol string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)
	incoming := make([]BarRecord, len(bars))
	for i, b := range bars {
		incoming[i] = BarRecord{
			Symbol:    symbol,
			Timestamp: b.Date.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			High52W:   b.High52W,
			Low52W:    b.Low52W,
		}
	}

	path := s.path(symbol)
	var existing []BarRecord
	if _, err := os.Stat(path); err == nil {
		if existing, err = goparquet.ReadFile[BarRecord](path); err != nil {
			return fmt.Errorf("parquet read %s: %w", symbol, err)
		}
	}
	if err := goparquet.WriteFile(path, mergeBarRecords(existing, incoming)); err != nil {
		return fmt.Errorf("parquet write %s: %w", symbol, err)
	}
	return nil
}

// Close is a no-op; every WriteBars call finishes its file.
func (s *Store) Close() error { return nil }

// mergeBarRecords deduplicates records by timestamp, preferring incoming
// records, and sorts them ascending.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
