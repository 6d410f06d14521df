package indicator

import "equity-backtest/internal/model"

// Ichimoku periods.
const (
	TenkanPeriod  = 9
	KijunPeriod   = 26
	SenkouBPeriod = 52
	CloudShift    = 26
)

// IchimokuLines holds the five Ichimoku Kinko Hyo lines aligned with the bars.
type IchimokuLines struct {
	Tenkan  []float64 // conversion line
	Kijun   []float64 // base line
	SenkouA []float64 // leading span A, shifted forward
	SenkouB []float64 // leading span B, shifted forward
	Chikou  []float64 // lagging span, close shifted backward
}

// Ichimoku computes the cloud lines. Leading spans are plotted CloudShift
// bars ahead, so SenkouA[i] is derived from bar i-26. Chikou[i] is the close
// of bar i+26 and therefore looks ahead; it is for screening only.
func Ichimoku(bars []model.Bar) IchimokuLines {
	tenkan := midpoint(bars, TenkanPeriod)
	kijun := midpoint(bars, KijunPeriod)

	spanA := nans(len(bars))
	for i := range bars {
		if !Missing(tenkan[i]) && !Missing(kijun[i]) {
			spanA[i] = (tenkan[i] + kijun[i]) / 2
		}
	}

	closes := make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}

	return IchimokuLines{
		Tenkan:  tenkan,
		Kijun:   kijun,
		SenkouA: Shift(spanA, CloudShift),
		SenkouB: Shift(midpoint(bars, SenkouBPeriod), CloudShift),
		Chikou:  Shift(closes, -CloudShift),
	}
}

// midpoint is (highest high + lowest low)/2 over w bars.
func midpoint(bars []model.Bar, w int) []float64 {
	out := nans(len(bars))
	highs, lows := NewWindow(w), NewWindow(w)
	for i, b := range bars {
		highs.Push(b.High)
		lows.Push(b.Low)
		if highs.Full() {
			out[i] = (highs.Max() + lows.Min()) / 2
		}
	}
	return out
}
