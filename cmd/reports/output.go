package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"equity-backtest/internal/model"
	sqlitestore "equity-backtest/internal/store/sqlite"
)

type tradeLog struct {
	Symbol string              `json:"symbol"`
	Trades []model.Trade       `json:"trades"`
	Open   *model.OpenPosition `json:"open,omitempty"`
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRuns(w io.Writer, runs []sqlitestore.RunRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTRATEGY\tUNIVERSE\tSKIPPED\tCREATED\tPARAMS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.RunID, r.Strategy, r.Universe, r.Skipped, r.CreatedAt.Format("2006-01-02 15:04"), r.Params)
	}
	return tw.Flush()
}

func printReport(w io.Writer, rep *model.Report) error {
	fmt.Fprintf(w, "run %s  strategy %s  params %s  universe %s\n\n",
		rep.RunID, rep.Strategy, formatParams(rep.Params), rep.Universe)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tSYMBOL\tROI%\tWINS\tLOSSES\tWIN RATE\tPNL\tBUYS\tSELLS\tDAYS\tAVG HOLD\t")
	for i, r := range rep.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%d\t%.2f\t%.2f\t%d\t%d\t%d\t%.1f\t\n",
			i+1, r.Symbol, r.ROI, r.Wins, r.Losses, r.WinRate, r.TotalPnL, r.Buys, r.Sells, r.Days, r.AvgHoldDays)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, msg := range rep.Warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
	return nil
}

func printTrades(w io.Writer, symbol string, trades []model.Trade, open *model.OpenPosition) error {
	fmt.Fprintf(w, "%s: %d closed trade(s)\n\n", symbol, len(trades))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "BOUGHT\tBUY\tSOLD\tSELL\tPNL\tDAYS\t")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%.2f\t%.2f\t%d\t\n",
			t.BuyDate.Format("2006-01-02"), t.BuyPrice, t.SellDate.Format("2006-01-02"), t.SellPrice, t.PnL, t.HoldDays)
	}
	if open != nil {
		fmt.Fprintf(tw, "%s\t%.2f\topen\t-\t-\t-\t\n", open.BuyDate.Format("2006-01-02"), open.BuyPrice)
	}
	return tw.Flush()
}

func formatParams(p map[string]float64) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(p[k], 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
