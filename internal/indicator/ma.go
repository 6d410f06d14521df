package indicator

// MAKind selects simple or exponential averaging.
type MAKind int

const (
	MASimple MAKind = iota
	MAExponential
)

// ParseMAKind maps "ema"/"exponential" to MAExponential and anything else
// to MASimple.
func ParseMAKind(s string) MAKind {
	switch s {
	case "ema", "exponential", "EMA":
		return MAExponential
	default:
		return MASimple
	}
}

// SimpleMA is the trailing mean of xs over w values. Early positions
// average over whatever is available, so the output has no warm-up gap.
func SimpleMA(xs []float64, w int) []float64 {
	s := NewSMA(w)
	out := make([]float64, len(xs))
	for i, x := range xs {
		s.Update(x)
		out[i] = s.Value()
	}
	return out
}

// ExponentialMA is the span-w EMA of xs, defined from the first value.
func ExponentialMA(xs []float64, w int) []float64 {
	e := NewEMA(w)
	out := make([]float64, len(xs))
	for i, x := range xs {
		e.Update(x)
		out[i] = e.Value()
	}
	return out
}

// MovingAverage dispatches on kind.
func MovingAverage(xs []float64, w int, kind MAKind) []float64 {
	if kind == MAExponential {
		return ExponentialMA(xs, w)
	}
	return SimpleMA(xs, w)
}

// RollingMean is the trailing mean over exactly w values; the first w-1
// positions are NaN.
func RollingMean(xs []float64, w int) []float64 {
	return Run(NewSMA(w), xs)
}

// RollingMax is the trailing maximum over exactly w values.
func RollingMax(xs []float64, w int) []float64 {
	win := NewWindow(w)
	out := nans(len(xs))
	for i, x := range xs {
		win.Push(x)
		if win.Full() {
			out[i] = win.Max()
		}
	}
	return out
}

// RollingMin is the trailing minimum over exactly w values.
func RollingMin(xs []float64, w int) []float64 {
	win := NewWindow(w)
	out := nans(len(xs))
	for i, x := range xs {
		win.Push(x)
		if win.Full() {
			out[i] = win.Min()
		}
	}
	return out
}
