// Package indicator provides technical indicator calculations over bar series.
//
// Streaming types (SMA, EMA, EWM, SMMA, RSI, Window) take one value per
// Update. Batch functions are built on top of them and return slices aligned
// 1:1 with their input, using NaN for the warm-up prefix. Because every batch
// function is a left-to-right fold over the streaming types, recomputing over
// a prefix of a series yields exactly the values of the full computation.
package indicator

import (
	"math"

	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// Indicator is the interface for single-input streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "EMA_9").
	Name() string

	// Update feeds the next value in chronological order.
	Update(x float64)

	// Value returns the current value, or NaN when nothing can be reported.
	Value() float64

	// Ready returns true when the warm-up period has been consumed.
	Ready() bool
}

// Missing reports whether v marks an absent indicator value.
func Missing(v float64) bool { return math.IsNaN(v) }

// Run feeds xs through ind and records Value once Ready, NaN before that.
func Run(ind Indicator, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		ind.Update(x)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// OnBars runs fn over an ascending copy of bars and returns the result in the
// caller's original order. The result is aligned with the normalized series,
// which equals the input whenever the input has no duplicate dates.
func OnBars(bars []model.Bar, fn func(asc []model.Bar) []float64) ([]float64, error) {
	asc, order, err := series.Normalize(bars)
	if err != nil {
		return nil, err
	}
	return series.Restore(fn(asc), order), nil
}

// Shift moves values k positions later in time (k > 0) or earlier (k < 0),
// filling vacated slots with NaN. The output keeps the input length.
func Shift(xs []float64, k int) []float64 {
	out := nans(len(xs))
	for i := range xs {
		j := i + k
		if j >= 0 && j < len(xs) {
			out[j] = xs[i]
		}
	}
	return out
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// runSkipping is Run for inputs with a leading NaN prefix; missing inputs
// produce missing outputs and are not fed to ind.
func runSkipping(ind Indicator, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		if Missing(x) {
			out[i] = math.NaN()
			continue
		}
		ind.Update(x)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
