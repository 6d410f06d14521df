package indicator

import "math"

// EWM is a bias-adjusted exponentially weighted mean: each value is the
// weighted average of all inputs with weights (1-alpha)^age. It is what RSI
// uses for its exponential mode.
type EWM struct {
	alpha      float64
	minPeriods int
	num        float64
	den        float64
	count      int
}

// NewEWM creates an adjusted EWM with center of mass com
// (alpha = 1/(1+com)) that is Ready after minPeriods values.
func NewEWM(com float64, minPeriods int) *EWM {
	return &EWM{alpha: 1 / (1 + com), minPeriods: minPeriods}
}

func (e *EWM) Name() string { return "EWM" }

func (e *EWM) Update(x float64) {
	decay := 1 - e.alpha
	e.num = x + decay*e.num
	e.den = 1 + decay*e.den
	e.count++
}

func (e *EWM) Value() float64 {
	if e.count == 0 {
		return math.NaN()
	}
	return e.num / e.den
}

func (e *EWM) Ready() bool { return e.count >= e.minPeriods }
