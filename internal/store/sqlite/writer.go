package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"equity-backtest/internal/metrics"
	"equity-backtest/internal/model"
)

const (
	defaultBatchSize  = 500
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath  string // path to SQLite database file, e.g. "data/bars.db"
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("sqlite opened", "path", cfg.DBPath)
	return &Writer{db: db, logger: logger, metrics: cfg.Metrics}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol   TEXT    NOT NULL,
			date     INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			high_52w REAL,
			low_52w  REAL,
			PRIMARY KEY (symbol, date)
		);

		CREATE TABLE IF NOT EXISTS universes (
			name   TEXT NOT NULL,
			symbol TEXT NOT NULL,
			PRIMARY KEY (name, symbol)
		);

		CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id     TEXT    PRIMARY KEY,
			strategy   TEXT    NOT NULL,
			params     TEXT    NOT NULL,
			universe   TEXT    NOT NULL,
			skipped    INTEGER NOT NULL,
			report     TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS backtest_trades (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			buy_date   INTEGER NOT NULL,
			buy_price  REAL    NOT NULL,
			sell_date  INTEGER,
			sell_price REAL,
			pnl        REAL,
			hold_days  INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_trades_run ON backtest_trades(run_id, symbol);
	`)
	return err
}

// WriteBars upserts the bars of one symbol in batched transactions.
func (w *Writer) WriteBars(ctx context.Context, symbol string, bars []model.Bar) error {
	for start := 0; start < len(bars); start += defaultBatchSize {
		end := min(start+defaultBatchSize, len(bars))
		batch := make([]model.Bar, end-start)
		copy(batch, bars[start:end])
		for i := range batch {
			batch[i].Symbol = symbol
		}
		if err := w.insertBatch(ctx, batch); err != nil {
			return fmt.Errorf("sqlite write %s: %w", symbol, err)
		}
	}
	return nil
}

// Run reads bars from barCh and inserts them in batched transactions.
// Flushes every batchSize bars OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or barCh is closed, and returns the number
// of bars committed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) int {
	batch := make([]model.Bar, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	committed := 0
	flush := func() {
		if len(batch) == 0 {
			return
		}
		// The caller's ctx may already be done; finish the last batch anyway.
		if err := w.insertBatch(context.Background(), batch); err != nil {
			w.logger.Error("sqlite batch insert failed", "bars", len(batch), "error", err)
		} else {
			committed += len(batch)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return committed

		case bar, ok := <-barCh:
			if !ok {
				flush()
				return committed
			}
			batch = append(batch, bar)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch inserts a batch of bars in a single transaction.
func (w *Writer) insertBatch(ctx context.Context, bars []model.Bar) error {
	start := time.Now()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, date, open, high, low, close, high_52w, low_52w)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, b.Symbol, b.Date.Unix(), b.Open, b.High, b.Low, b.Close, b.High52W, b.Low52W)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.SQLiteCommitDur.Observe(time.Since(start).Seconds())
	}
	w.logger.Debug("sqlite committed bars", "bars", len(bars), "elapsed", time.Since(start).String())
	return nil
}

// SetUniverse replaces the members of a named universe.
func (w *Writer) SetUniverse(ctx context.Context, name string, symbols []string) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM universes WHERE name = ?`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite clear universe %s: %w", name, err)
	}
	for _, s := range symbols {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO universes (name, symbol) VALUES (?, ?)`, name, s); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite add %s to universe %s: %w", s, name, err)
		}
	}
	return tx.Commit()
}

// LastDate returns the most recent stored bar date for a symbol.
// ok is false when the symbol has no bars.
func (w *Writer) LastDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx, `SELECT MAX(date) FROM bars WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), true, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
