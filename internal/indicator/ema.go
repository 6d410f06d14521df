package indicator

import (
	"math"
	"strconv"
)

// EMA calculates Exponential Moving Average with span-style smoothing
// (alpha = 2/(period+1)). The recursion is seeded with the first value and
// is not bias-adjusted, so Value is defined from the first Update; Ready
// reports whether period values have been seen.
type EMA struct {
	period int
	alpha  float64
	cur    float64
	count  int
}

// NewEMA creates a new EMA indicator with the given span.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA_" + strconv.Itoa(e.period) }

func (e *EMA) Update(x float64) {
	e.count++
	if e.count == 1 {
		e.cur = x
		return
	}
	e.cur = x*e.alpha + e.cur*(1-e.alpha)
}

func (e *EMA) Value() float64 {
	if e.count == 0 {
		return math.NaN()
	}
	return e.cur
}

func (e *EMA) Ready() bool { return e.count >= e.period }

// Peek computes what Value() would be after x without mutating state.
func (e *EMA) Peek(x float64) float64 {
	if e.count == 0 {
		return x
	}
	return x*e.alpha + e.cur*(1-e.alpha)
}

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.cur = 0
	e.count = 0
}
