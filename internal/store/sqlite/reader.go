package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"equity-backtest/internal/model"
)

// Reader serves bar history and universes from SQLite. It implements
// model.MarketDataset.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading. A fresh file gets an
// empty schema so lookups report missing data instead of missing tables.
func NewReader(dbPath string) (*Reader, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Debug("sqlite reader opened", "path", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Symbols resolves a universe. "all" (or "") lists every symbol with bars;
// any other name is looked up in the universes table.
func (r *Reader) Symbols(ctx context.Context, universe string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if universe == "" || universe == model.UniverseAll {
		rows, err = r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	} else {
		rows, err = r.db.QueryContext(ctx, `SELECT symbol FROM universes WHERE name = ? ORDER BY symbol`, universe)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(symbols) == 0 && universe != "" && universe != model.UniverseAll {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownUniverse, universe)
	}
	return symbols, nil
}

// Universes lists the named universes.
func (r *Reader) Universes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT name FROM universes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query universes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Bars reads the full history of a symbol, ordered by date ascending.
func (r *Reader) Bars(ctx context.Context, symbol string) ([]model.Bar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, high_52w, low_52w
		FROM bars
		WHERE symbol = ?
		ORDER BY date ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var (
			b         model.Bar
			ts        int64
			high, low sql.NullFloat64
		)
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &high, &low); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.Symbol = symbol
		b.Date = time.Unix(ts, 0).UTC()
		b.High52W, b.Low52W = high.Float64, low.Float64
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrNoBars, symbol)
	}
	return bars, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
