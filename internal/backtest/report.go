package backtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"equity-backtest/internal/model"
)

// ROIMode selects how return on investment is aggregated over trades.
type ROIMode int

const (
	// ROIAggregate is total P&L over the summed buy prices of closed trades.
	ROIAggregate ROIMode = iota
	// ROIPerTrade is the mean of each closed trade's percentage return.
	ROIPerTrade
)

// ParseROIMode maps "aggregate" and "per_trade" to their modes.
func ParseROIMode(s string) (ROIMode, error) {
	switch s {
	case "", "aggregate":
		return ROIAggregate, nil
	case "per_trade", "per-trade":
		return ROIPerTrade, nil
	default:
		return ROIAggregate, fmt.Errorf("unknown roi mode %q", s)
	}
}

func (m ROIMode) String() string {
	if m == ROIPerTrade {
		return "per_trade"
	}
	return "aggregate"
}

var hundred = decimal.NewFromInt(100)

// ROI returns the percentage return of h's closed trades rounded to two
// decimals. An unclosed position is excluded from both numerator and
// investment base. ok is false when there is no closed trade to measure.
func ROI(h *model.SymbolHistory, mode ROIMode) (roi float64, ok bool) {
	if h.Sells == 0 || len(h.Trades) == 0 || !finiteTrades(h.Trades) {
		return 0, false
	}

	if mode == ROIPerTrade {
		sum := decimal.Zero
		for _, t := range h.Trades {
			buy := decimal.NewFromFloat(t.BuyPrice)
			if buy.IsZero() {
				return 0, false
			}
			sum = sum.Add(decimal.NewFromFloat(t.PnL).Div(buy).Mul(hundred))
		}
		return sum.Div(decimal.NewFromInt(int64(len(h.Trades)))).Round(2).InexactFloat64(), true
	}

	pnl, invested := decimal.Zero, decimal.Zero
	for _, t := range h.Trades {
		pnl = pnl.Add(decimal.NewFromFloat(t.SellPrice).Sub(decimal.NewFromFloat(t.BuyPrice)))
		invested = invested.Add(decimal.NewFromFloat(t.BuyPrice))
	}
	if invested.IsZero() {
		return 0, false
	}
	return pnl.Div(invested).Mul(hundred).Round(2).InexactFloat64(), true
}

// finiteTrades guards decimal.NewFromFloat, which panics on NaN and Inf.
func finiteTrades(trades []model.Trade) bool {
	for _, t := range trades {
		for _, v := range [...]float64{t.BuyPrice, t.SellPrice, t.PnL} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Summarize turns a history into a report row. ok is false when the symbol
// has no closed trade and must be left out of ranking.
func Summarize(h *model.SymbolHistory, mode ROIMode) (model.ResultRow, bool) {
	roi, ok := ROI(h, mode)
	if !ok {
		return model.ResultRow{}, false
	}

	wins := h.Wins()
	pnl, hold := decimal.Zero, 0
	for _, t := range h.Trades {
		pnl = pnl.Add(decimal.NewFromFloat(t.SellPrice).Sub(decimal.NewFromFloat(t.BuyPrice)))
		hold += t.HoldDays
	}

	return model.ResultRow{
		Symbol:      h.Symbol,
		ROI:         roi,
		Wins:        wins,
		Losses:      h.Sells - wins,
		WinRate:     decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(h.Sells))).Round(2).InexactFloat64(),
		TotalPnL:    pnl.Round(2).InexactFloat64(),
		Buys:        h.Buys,
		Sells:       h.Sells,
		Days:        h.Days,
		AvgHoldDays: decimal.NewFromInt(int64(hold)).Div(decimal.NewFromInt(int64(len(h.Trades)))).Round(1).InexactFloat64(),
	}, true
}

// Rank summarizes every history with a closed trade and orders the rows by
// win rate, then wins, then ROI, all descending, with symbol as the final
// tie-break. topN <= 0 returns every row.
func Rank(histories map[string]*model.SymbolHistory, topN int, mode ROIMode) []model.ResultRow {
	rows := make([]model.ResultRow, 0, len(histories))
	for _, h := range histories {
		if row, ok := Summarize(h, mode); ok {
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.ROI != b.ROI {
			return a.ROI > b.ROI
		}
		return a.Symbol < b.Symbol
	})

	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}

// ReportInput gathers what BuildReport needs about a finished run.
type ReportInput struct {
	RunID     string
	Strategy  string
	Params    map[string]float64
	Universe  string
	Histories map[string]*model.SymbolHistory
	Stats     Stats
	TopN      int
	Mode      ROIMode
	Warnings  []string
}

// BuildReport ranks the histories of a run into a Report.
func BuildReport(in ReportInput) *model.Report {
	return &model.Report{
		RunID:    in.RunID,
		Strategy: in.Strategy,
		Params:   in.Params,
		Universe: in.Universe,
		Rows:     Rank(in.Histories, in.TopN, in.Mode),
		Skipped:  in.Stats.Skipped,
		Warnings: in.Warnings,
	}
}
