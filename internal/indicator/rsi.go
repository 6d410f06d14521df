package indicator

import (
	"math"
	"strconv"
)

// RSIMode selects how up- and down-moves are averaged.
type RSIMode int

const (
	// RSIExponential uses an adjusted EWM with alpha = 1/periods.
	RSIExponential RSIMode = iota
	// RSISimple uses a trailing arithmetic mean over periods.
	RSISimple
)

// RSI calculates the Relative Strength Index over closing prices.
// The first Value is available after periods+1 closes (periods deltas).
//
// When the down-average is zero the index saturates at 100, or reads 50 if
// the up-average is zero as well (a perfectly flat window).
type RSI struct {
	period int
	count  int
	prev   float64
	up     Indicator
	down   Indicator
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int, mode RSIMode) *RSI {
	if period < 1 {
		period = 1
	}
	r := &RSI{period: period}
	if mode == RSISimple {
		r.up, r.down = NewSMA(period), NewSMA(period)
	} else {
		com := float64(period - 1)
		r.up, r.down = NewEWM(com, period), NewEWM(com, period)
	}
	return r
}

func (r *RSI) Name() string { return "RSI_" + strconv.Itoa(r.period) }

func (r *RSI) Update(close float64) {
	r.count++
	if r.count == 1 {
		// First close: no delta yet
		r.prev = close
		return
	}
	delta := close - r.prev
	r.prev = close
	r.up.Update(math.Max(delta, 0))
	r.down.Update(math.Max(-delta, 0))
}

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return math.NaN()
	}
	return rsiFromAverages(r.up.Value(), r.down.Value())
}

func (r *RSI) Ready() bool { return r.count > 1 && r.up.Ready() }

func rsiFromAverages(up, down float64) float64 {
	if down == 0 {
		if up == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+up/down)
}

// RelativeStrength returns the RSI series of closes. The first periods
// values are NaN.
func RelativeStrength(closes []float64, periods int, mode RSIMode) []float64 {
	return Run(NewRSI(periods, mode), closes)
}
