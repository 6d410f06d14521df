// Package series normalizes bar series into ascending chronological order.
//
// Indicator math is defined over ascending bars. Callers may hold series in
// either order; Ascending returns a sorted copy plus the detected Order so
// results can be mapped back with Restore.
package series

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"equity-backtest/internal/model"
)

var (
	// ErrInsufficient is returned when a series has fewer than two bars and
	// its order cannot be determined.
	ErrInsufficient = errors.New("series: need at least 2 bars")

	// ErrDuplicateDate is returned by Validate when two bars share a date.
	ErrDuplicateDate = errors.New("series: duplicate date")

	// ErrNonFinite is returned when an OHLC price is NaN or infinite.
	ErrNonFinite = errors.New("series: non-finite price")
)

// Order is the chronological direction of a series.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "descending"
	}
	return "ascending"
}

// DetectOrder compares the dates of the first two bars.
func DetectOrder(bars []model.Bar) (Order, error) {
	if len(bars) < 2 {
		return Ascending, fmt.Errorf("%w: got %d", ErrInsufficient, len(bars))
	}
	if bars[0].Date.After(bars[1].Date) {
		return Descending, nil
	}
	return Ascending, nil
}

// Normalize returns an ascending copy of bars along with the detected order.
// The caller's slice is never modified. Out-of-place rows are repaired by a
// stable sort and duplicate dates collapse to the last row seen.
func Normalize(bars []model.Bar) ([]model.Bar, Order, error) {
	order, err := DetectOrder(bars)
	if err != nil {
		return nil, order, err
	}
	if err := checkFinite(bars); err != nil {
		return nil, order, err
	}

	out := make([]model.Bar, len(bars))
	copy(out, bars)
	if order == Descending {
		reverseBars(out)
	}
	if !sorted(out) {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	}
	return dedupe(out), order, nil
}

// Validate reports whether an ascending series is strictly increasing in date
// with finite prices.
func Validate(bars []model.Bar) error {
	if err := checkFinite(bars); err != nil {
		return err
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Date.Equal(bars[i-1].Date) {
			return fmt.Errorf("%w: %s at index %d", ErrDuplicateDate, bars[i].Date.Format("2006-01-02"), i)
		}
		if bars[i].Date.Before(bars[i-1].Date) {
			return fmt.Errorf("series: out of order at index %d", i)
		}
	}
	return nil
}

// Restore maps a series aligned with the ascending bars back to the caller's
// order. The input is not modified.
func Restore(values []float64, order Order) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if order == Descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func checkFinite(bars []model.Bar) error {
	for i, b := range bars {
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s at index %d", ErrNonFinite, b.Date.Format("2006-01-02"), i)
			}
		}
	}
	return nil
}

func sorted(bars []model.Bar) bool {
	for i := 1; i < len(bars); i++ {
		if bars[i].Date.Before(bars[i-1].Date) {
			return false
		}
	}
	return true
}

// dedupe keeps the last bar of each run of equal dates. bars must be sorted.
func dedupe(bars []model.Bar) []model.Bar {
	if len(bars) < 2 {
		return bars
	}
	out := bars[:1]
	for _, b := range bars[1:] {
		if b.Date.Equal(out[len(out)-1].Date) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func reverseBars(bars []model.Bar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
