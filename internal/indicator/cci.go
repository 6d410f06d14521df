package indicator

import "equity-backtest/internal/model"

// cciConstant scales mean deviation so that most values fall in ±100.
const cciConstant = 0.015

// CommodityChannel returns the CCI over w bars:
// (TP - mean(TP)) / (0.015 * meanAbsDev(TP)), TP = (high+low+close)/3.
// The first w-1 positions are NaN; a window with zero deviation reads 0.
func CommodityChannel(bars []model.Bar, w int) []float64 {
	out := nans(len(bars))
	win := NewWindow(w)
	for i := range bars {
		tp := bars[i].TypicalPrice()
		win.Push(tp)
		if !win.Full() {
			continue
		}
		mad := win.MeanAbsDev()
		if mad == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp - win.Mean()) / (cciConstant * mad)
	}
	return out
}
