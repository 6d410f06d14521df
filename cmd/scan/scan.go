package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"equity-backtest/internal/indicator"
	"equity-backtest/internal/markethours"
	"equity-backtest/internal/model"
	"equity-backtest/internal/notification"
	"equity-backtest/internal/risk"
	"equity-backtest/internal/screen"
	"equity-backtest/internal/series"
	"equity-backtest/internal/strategy"
)

// Screen settings applied to every symbol.
const (
	crossShort    = 44
	crossLong     = 200
	crossLookback = 3
	pullbackMA    = 44
)

// settings is what every symbol is scanned with. A zero Plan.Budget skips
// trade sizing.
type settings struct {
	Strategies []strategy.Strategy
	Plan       risk.Request
	Now        time.Time
	Columns    []indicator.Spec
}

// row is the scan result of one symbol.
type row struct {
	screen.Summary
	GoldenCross bool
	Pullback    *screen.Proximity
	Candle      screen.Candle
	NR7         bool
	Plan        *risk.TradePlan
	PlanErr     string
	Behind      int // sessions missing after the last bar
	Extra       map[string]float64
}

// scanSymbol screens one symbol and evaluates the latest signal of every
// strategy.
func scanSymbol(bars []model.Bar, set settings) (row, error) {
	sum, err := screen.Snapshot(bars)
	if err != nil {
		return row{}, err
	}
	r := row{Summary: sum, Behind: markethours.Behind(sum.Date, set.Now)}
	asc, _, err := series.Normalize(bars)
	if err != nil {
		return row{}, err
	}
	r.Candle = screen.CandleType(asc[len(asc)-1])
	if r.NR7, err = screen.NR7(asc); err != nil {
		return row{}, err
	}

	if len(set.Columns) > 0 {
		cols, err := indicator.NewPanel(set.Columns).Compute(asc)
		if err != nil {
			return row{}, err
		}
		r.Extra = indicator.Last(cols)
	}

	r.Signals = make(map[string]string, len(set.Strategies))
	for _, s := range set.Strategies {
		sig, err := strategy.Signal(s, bars)
		if err != nil {
			return row{}, err
		}
		r.Signals[s.Name()] = sig.String()
	}

	if r.GoldenCross, err = screen.GoldenCross(bars, crossShort, crossLong, crossLookback); err != nil {
		return row{}, err
	}
	p, ok, err := screen.MAProximity(bars, pullbackMA, 0)
	if err != nil {
		return row{}, err
	}
	if ok {
		r.Pullback = &p
	}

	if set.Plan.Budget > 0 {
		plan, _, err := risk.Plan(bars, set.Plan)
		switch {
		case errors.Is(err, risk.ErrUnaffordable), errors.Is(err, risk.ErrInvalidStop):
			r.PlanErr = err.Error()
		case err != nil:
			return row{}, err
		default:
			r.Plan = &plan
		}
	}
	return r, nil
}

// buys returns the strategies whose latest signal is BUY, sorted.
func (r row) buys() []string {
	var out []string
	for name, sig := range r.Signals {
		if sig == model.SignalBuy.String() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// alertFor builds the alert of a row with at least one BUY signal.
func alertFor(r row) (notification.Alert, bool) {
	names := r.buys()
	if len(names) == 0 {
		return notification.Alert{}, false
	}
	msg := fmt.Sprintf("%s closed at %.2f on %s. BUY from %s.",
		r.Symbol, r.Close, r.Date.Format("2006-01-02"), strings.Join(names, ", "))
	if r.Plan != nil {
		msg += fmt.Sprintf(" Entry %.2f, stop %.2f, target %.2f, qty %d.",
			r.Plan.Entry, r.Plan.StopLoss, r.Plan.Target, r.Plan.Quantity)
	}
	a := notification.Alert{Level: notification.AlertInfo, Symbol: r.Symbol, Title: r.Symbol + ": BUY", Message: msg}
	if r.Behind > 0 {
		a.Level = notification.AlertWarning
		a.Message += fmt.Sprintf(" Data is %d session(s) behind.", r.Behind)
	}
	return a, true
}

func printRows(w io.Writer, rows []row, set settings) error {
	names := strategyNames(set.Strategies)
	withPlan := set.Plan.Budget > 0
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	head := []string{"SYMBOL", "DATE", "BEHIND", "CLOSE", ">MA20", ">MA50", ">MA100", ">MA200", "RSI", "ADX", "OB/OS", "ICHI", "52W", "GOLDEN", "PULLBACK", "CANDLE", "NR7"}
	for _, c := range set.Columns {
		head = append(head, c.Name())
	}
	for _, n := range names {
		head = append(head, strings.ToUpper(n))
	}
	if withPlan {
		head = append(head, "ENTRY", "STOP", "TARGET", "QTY")
	}
	fmt.Fprintln(tw, strings.Join(head, "\t"))

	for _, r := range rows {
		cells := []string{
			r.Symbol,
			r.Date.Format("2006-01-02"),
			fmt.Sprint(r.Behind),
			fmt.Sprintf("%.2f", r.Close),
		}
		for _, win := range screen.SnapshotWindows {
			cells = append(cells, yesNo(r.Above[win]))
		}
		cells = append(cells, num(r.RSI), num(r.ADX), band(r.Overbought, r.Oversold),
			fmt.Sprintf("%d/3", r.Ichimoku), r.Direction, yesNo(r.GoldenCross), pullback(r.Pullback),
			r.Candle.String(), yesNo(r.NR7))
		for _, c := range set.Columns {
			v, ok := r.Extra[c.Name()]
			if !ok {
				v = math.NaN()
			}
			cells = append(cells, num(v))
		}
		for _, n := range names {
			cells = append(cells, r.Signals[n])
		}
		if withPlan {
			if r.Plan != nil {
				cells = append(cells, num(r.Plan.Entry), num(r.Plan.StopLoss), num(r.Plan.Target), fmt.Sprint(r.Plan.Quantity))
			} else {
				cells = append(cells, "-", "-", "-", "-")
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func strategyNames(strategies []strategy.Strategy) []string {
	out := make([]string, len(strategies))
	for i, s := range strategies {
		out[i] = s.Name()
	}
	sort.Strings(out)
	return out
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "."
}

func band(overbought, oversold bool) string {
	switch {
	case overbought:
		return "OB"
	case oversold:
		return "OS"
	default:
		return "."
	}
}

func pullback(p *screen.Proximity) string {
	if p == nil {
		return "."
	}
	dir := "down"
	if p.Rising {
		dir = "up"
	}
	return fmt.Sprintf("%.2f %s", p.Distance, dir)
}
