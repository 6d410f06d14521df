package indicator

import (
	"math"
	"strconv"
)

// SMMA calculates Smoothed Moving Average (Wilder-style smoothing).
// First value is SMA(period), then SMMA = (prev*(period-1) + x) / period.
type SMMA struct {
	period int
	count  int
	sum    float64
	cur    float64
}

// NewSMMA creates a new SMMA indicator with the given period.
func NewSMMA(period int) *SMMA {
	if period < 1 {
		period = 1
	}
	return &SMMA{period: period}
}

func (s *SMMA) Name() string { return "SMMA_" + strconv.Itoa(s.period) }

func (s *SMMA) Update(x float64) {
	s.count++

	if s.count <= s.period {
		// Accumulate for initial SMA seed
		s.sum += x
		if s.count == s.period {
			s.cur = s.sum / float64(s.period)
		}
		return
	}

	s.cur = (s.cur*float64(s.period-1) + x) / float64(s.period)
}

func (s *SMMA) Value() float64 {
	if !s.Ready() {
		return math.NaN()
	}
	return s.cur
}

func (s *SMMA) Ready() bool { return s.count >= s.period }

// Peek computes what Value() would be after x without mutating state.
func (s *SMMA) Peek(x float64) float64 {
	if s.count < s.period {
		return (s.sum + x) / float64(s.count+1)
	}
	return (s.cur*float64(s.period-1) + x) / float64(s.period)
}
