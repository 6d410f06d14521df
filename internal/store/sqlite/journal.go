package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"equity-backtest/internal/model"
)

// Journal persists finished backtest runs and their trades for later
// comparison. It implements model.RunJournal.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Debug("run journal opened", "path", dbPath)
	return &Journal{db: db}, nil
}

// RecordRun stores the report and every trade of the run in one
// transaction. Unclosed positions are stored with a NULL sell side.
func (j *Journal) RecordRun(ctx context.Context, report *model.Report, histories map[string]*model.SymbolHistory) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	params, err := json.Marshal(report.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO backtest_runs (run_id, strategy, params, universe, skipped, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Strategy, string(params), report.Universe, report.Skipped, string(body), time.Now().Unix())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM backtest_trades WHERE run_id = ?`, report.RunID); err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO backtest_trades (run_id, symbol, buy_date, buy_price, sell_date, sell_price, pnl, hold_days)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	symbols := make([]string, 0, len(histories))
	for s := range histories {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		h := histories[sym]
		for _, t := range h.Trades {
			_, err := stmt.ExecContext(ctx, report.RunID, sym, t.BuyDate.Unix(), t.BuyPrice,
				t.SellDate.Unix(), t.SellPrice, t.PnL, t.HoldDays)
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("insert trade %s: %w", sym, err)
			}
		}
		if h.Open != nil {
			_, err := stmt.ExecContext(ctx, report.RunID, sym, h.Open.BuyDate.Unix(), h.Open.BuyPrice,
				nil, nil, nil, nil)
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("insert open position %s: %w", sym, err)
			}
		}
	}
	return tx.Commit()
}

// RunRecord is a row of the backtest_runs table.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	Strategy  string    `json:"strategy"`
	Params    string    `json:"params"`
	Universe  string    `json:"universe"`
	Skipped   int       `json:"skipped"`
	CreatedAt time.Time `json:"created_at"`
}

// Runs returns the last N runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, strategy, params, universe, skipped, created_at
		 FROM backtest_runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			r  RunRecord
			ts int64
		)
		if err := rows.Scan(&r.RunID, &r.Strategy, &r.Params, &r.Universe, &r.Skipped, &ts); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(ts, 0).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Report loads the stored report of a run.
func (j *Journal) Report(ctx context.Context, runID string) (*model.Report, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var body string
	err := j.db.QueryRowContext(ctx, `SELECT report FROM backtest_runs WHERE run_id = ?`, runID).Scan(&body)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, err
	}
	var rep model.Report
	if err := json.Unmarshal([]byte(body), &rep); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &rep, nil
}

// Trades returns the journaled trades of a run for one symbol, in entry
// order. The second value is the unclosed position, if any.
func (j *Journal) Trades(ctx context.Context, runID, symbol string) ([]model.Trade, *model.OpenPosition, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT buy_date, buy_price, sell_date, sell_price, pnl, hold_days
		 FROM backtest_trades WHERE run_id = ? AND symbol = ? ORDER BY id ASC`, runID, symbol)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		trades []model.Trade
		open   *model.OpenPosition
	)
	for rows.Next() {
		var (
			buyTS     int64
			buyPrice  float64
			sellTS    sql.NullInt64
			sellPrice sql.NullFloat64
			pnl       sql.NullFloat64
			hold      sql.NullInt64
		)
		if err := rows.Scan(&buyTS, &buyPrice, &sellTS, &sellPrice, &pnl, &hold); err != nil {
			return nil, nil, err
		}
		if !sellTS.Valid {
			open = &model.OpenPosition{BuyDate: time.Unix(buyTS, 0).UTC(), BuyPrice: buyPrice}
			continue
		}
		trades = append(trades, model.Trade{
			BuyDate:   time.Unix(buyTS, 0).UTC(),
			BuyPrice:  buyPrice,
			SellDate:  time.Unix(sellTS.Int64, 0).UTC(),
			SellPrice: sellPrice.Float64,
			PnL:       pnl.Float64,
			HoldDays:  int(hold.Int64),
		})
	}
	return trades, open, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
