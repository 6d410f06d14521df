package indicator

import (
	"math"

	"equity-backtest/internal/model"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and reports high-low.
func TrueRange(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			pc := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-pc), math.Abs(b.Low-pc)))
		}
		out[i] = tr
	}
	return out
}

// AverageTrueRange is the trailing simple mean of TrueRange over w bars.
func AverageTrueRange(bars []model.Bar, w int) []float64 {
	return RollingMean(TrueRange(bars), w)
}

// Bands holds Bollinger band lines.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// BollingerBands returns mean ± k population standard deviations over w
// closes. The first w-1 positions are NaN.
func BollingerBands(closes []float64, w int, k float64) Bands {
	n := len(closes)
	b := Bands{Upper: nans(n), Middle: nans(n), Lower: nans(n)}
	win := NewWindow(w)
	for i, c := range closes {
		win.Push(c)
		if !win.Full() {
			continue
		}
		mean, sd := win.Mean(), win.StdDev()
		b.Middle[i] = mean
		b.Upper[i] = mean + k*sd
		b.Lower[i] = mean - k*sd
	}
	return b
}
