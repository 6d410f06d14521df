// Package store opens the configured bar dataset and writer.
package store

import (
	"fmt"
	"log/slog"

	"equity-backtest/config"
	"equity-backtest/internal/metrics"
	"equity-backtest/internal/model"
	"equity-backtest/internal/store/csvdir"
	"equity-backtest/internal/store/parquet"
	"equity-backtest/internal/store/sqlite"
)

// Dataset is a MarketDataset that holds resources.
type Dataset interface {
	model.MarketDataset
	Close() error
}

// OpenDataset opens the bar source named by cfg.Source.
func OpenDataset(cfg config.Data) (Dataset, error) {
	switch cfg.Source {
	case config.SourceSQLite:
		r, err := sqlite.NewReader(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.SourceCSV:
		d, err := csvdir.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.SourceParquet:
		s, err := parquet.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown source %q", cfg.Source)
	}
}

// OpenWriter opens a bar writer for the destination named by cfg.Source.
func OpenWriter(cfg config.Data, logger *slog.Logger, m *metrics.Metrics) (model.BarWriter, error) {
	switch cfg.Source {
	case config.SourceSQLite:
		w, err := sqlite.New(sqlite.WriterConfig{DBPath: cfg.SQLitePath, Logger: logger, Metrics: m})
		if err != nil {
			return nil, err
		}
		return w, nil
	case config.SourceCSV:
		w, err := csvdir.NewWriter(cfg.Path)
		if err != nil {
			return nil, err
		}
		return w, nil
	case config.SourceParquet:
		s, err := parquet.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown source %q", cfg.Source)
	}
}
