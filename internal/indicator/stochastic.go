package indicator

import "equity-backtest/internal/model"

// StochasticLines holds the %K (fast) and %D (slow) oscillator lines.
type StochasticLines struct {
	K []float64
	D []float64
}

// Stochastic computes %K = 100*(close - lowest low)/(highest high - lowest
// low) over k bars, smoothed by a smoothK-bar mean, and %D as the d-bar
// mean of %K. A zero high-low range reads 50.
func Stochastic(bars []model.Bar, k, d, smoothK int) StochasticLines {
	raw := nans(len(bars))
	highs, lows := NewWindow(k), NewWindow(k)
	for i, b := range bars {
		highs.Push(b.High)
		lows.Push(b.Low)
		if !highs.Full() {
			continue
		}
		hh, ll := highs.Max(), lows.Min()
		if hh == ll {
			raw[i] = 50
			continue
		}
		raw[i] = 100 * (b.Close - ll) / (hh - ll)
	}

	fast := raw
	if smoothK > 1 {
		fast = runSkipping(NewSMA(smoothK), raw)
	}
	return StochasticLines{K: fast, D: runSkipping(NewSMA(d), fast)}
}
