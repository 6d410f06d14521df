package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the backtest engine from concrete storage
// implementations (SQLite, Parquet, CSV, Redis).

// MarketDataset supplies symbol universes and per-symbol bar history.
type MarketDataset interface {
	// Symbols resolves a universe selector ("all" or a named group).
	Symbols(ctx context.Context, universe string) ([]string, error)

	// Bars returns the full history of a symbol in any date order.
	Bars(ctx context.Context, symbol string) ([]Bar, error)
}

// BarWriter persists bars, e.g. when importing a CSV directory.
type BarWriter interface {
	// WriteBars upserts the bars of one symbol.
	WriteBars(ctx context.Context, symbol string, bars []Bar) error

	// Close releases underlying resources.
	Close() error
}

// ReportPublisher pushes a finished report to an external consumer.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *Report) error
}

// RunJournal records finished runs and their trades.
type RunJournal interface {
	RecordRun(ctx context.Context, report *Report, histories map[string]*SymbolHistory) error
}
