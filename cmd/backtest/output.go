package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"equity-backtest/internal/backtest"
	"equity-backtest/internal/model"
)

// paramFlags collects repeated --param key=value flags.
type paramFlags map[string]float64

func (p paramFlags) String() string {
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

func (p paramFlags) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("param %s: %w", k, err)
	}
	p[k] = f
	return nil
}

func printJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printTable(w io.Writer, report *model.Report, stats backtest.Stats) error {
	fmt.Fprintf(w, "run %s  strategy %s  params %s  universe %s\n",
		report.RunID, report.Strategy, paramFlags(report.Params), report.Universe)
	fmt.Fprintf(w, "ran %d  skipped %d  failed %d\n\n", stats.Ran, stats.Skipped, stats.Failed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tSYMBOL\tROI%\tWINS\tLOSSES\tWIN RATE\tPNL\tBUYS\tSELLS\tDAYS\tAVG HOLD\t")
	for i, r := range report.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%d\t%.2f\t%.2f\t%d\t%d\t%d\t%.1f\t\n",
			i+1, r.Symbol, r.ROI, r.Wins, r.Losses, r.WinRate, r.TotalPnL, r.Buys, r.Sells, r.Days, r.AvgHoldDays)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, msg := range report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
	return nil
}
