package strategy

import "equity-backtest/internal/indicator"

// CrossAbove reports a move from below level to above it between two bars.
// Missing values never cross.
func CrossAbove(prev, cur, level float64) bool {
	if indicator.Missing(prev) || indicator.Missing(cur) {
		return false
	}
	return prev < level && cur > level
}

// CrossBelow reports a move from above level to below it between two bars.
func CrossBelow(prev, cur, level float64) bool {
	if indicator.Missing(prev) || indicator.Missing(cur) {
		return false
	}
	return prev > level && cur < level
}

// CrossOver reports line a moving from at-or-below line b to above it.
func CrossOver(prevA, curA, prevB, curB float64) bool {
	if anyMissing(prevA, curA, prevB, curB) {
		return false
	}
	return prevA <= prevB && curA > curB
}

// CrossUnder reports line a moving from at-or-above line b to below it.
func CrossUnder(prevA, curA, prevB, curB float64) bool {
	if anyMissing(prevA, curA, prevB, curB) {
		return false
	}
	return prevA >= prevB && curA < curB
}

func anyMissing(vs ...float64) bool {
	for _, v := range vs {
		if indicator.Missing(v) {
			return true
		}
	}
	return false
}
