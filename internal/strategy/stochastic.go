package strategy

import (
	"equity-backtest/internal/indicator"
	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// Stochastic trades %K/%D crossovers through latched zone flags.
//
// An upward %K/%D crossover with both lines under the buy threshold sets the
// buy lock; any downward crossover clears it. While locked, the first bar on
// which %D is back above the threshold (and close is above the 200-bar
// average) fires one Buy. The lock stays set after firing but cannot fire
// again until it is re-armed by a fresh crossover. The sell lock mirrors this
// at the sell threshold, and a held position is sold while it is set and %D
// is back under the threshold.
type Stochastic struct {
	k, d, smoothK int
	buy, sell     float64
}

// NewStochastic creates a Stochastic strategy. Params: k (14), d (3),
// smooth_k (3), buy (20), sell (80).
func NewStochastic(p Params) (*Stochastic, error) {
	if err := requirePositive("stochastic", p, "k", "d", "smooth_k"); err != nil {
		return nil, err
	}
	return &Stochastic{
		k:       p.Int("k", 14),
		d:       p.Int("d", 3),
		smoothK: p.Int("smooth_k", 3),
		buy:     p.Float("buy", 20),
		sell:    p.Float("sell", 80),
	}, nil
}

func (s *Stochastic) Name() string { return "stochastic" }

func (s *Stochastic) Params() Params {
	return Params{
		"k": float64(s.k), "d": float64(s.d), "smooth_k": float64(s.smoothK),
		"buy": s.buy, "sell": s.sell,
	}
}

// Warnings flags thresholds outside the 0..100 range of the oscillator.
func (s *Stochastic) Warnings() []string {
	return oscillatorWarnings("stochastic", s.buy, s.sell)
}

func (s *Stochastic) Bind(bars []model.Bar) Rule {
	lines := indicator.Stochastic(bars, s.k, s.d, s.smoothK)
	ma200 := indicator.SimpleMA(series.Closes(bars), 200)

	trend := make([]bool, len(bars))
	for i := range bars {
		trend[i] = bars[i].Close > ma200[i]
	}
	return newStochRule(lines.K, lines.D, trend, s.buy, s.sell)
}

// newStochRule folds the lock state over the %K/%D lines once. Lock state
// depends only on the lines, never on the position, so Decide stays a pure
// lookup. trend[i] gates buys on bar i.
func newStochRule(k, d []float64, trend []bool, buyLevel, sellLevel float64) *stochRule {
	n := len(d)
	r := &stochRule{
		buyFire:  make([]bool, n),
		sellLock: make([]bool, n),
		d:        d,
		sell:     sellLevel,
	}

	buyLock, armed, sellLock := false, false, false
	for i := 1; i < n; i++ {
		pk, ck, pd, cd := k[i-1], k[i], d[i-1], d[i]
		switch {
		case CrossOver(pk, ck, pd, cd):
			sellLock = false
			if ck < buyLevel && cd < buyLevel {
				buyLock, armed = true, true
			}
		case CrossUnder(pk, ck, pd, cd):
			buyLock, armed = false, false
			if ck > sellLevel && cd > sellLevel {
				sellLock = true
			}
		}
		if buyLock && armed && !indicator.Missing(cd) && cd > buyLevel && trend[i] {
			r.buyFire[i] = true
			armed = false
		}
		r.sellLock[i] = sellLock
	}
	return r
}

type stochRule struct {
	buyFire  []bool
	sellLock []bool
	d        []float64
	sell     float64
}

func (r *stochRule) Decide(i int, holding bool) Decision {
	if i < 1 || i >= len(r.d) {
		return none
	}
	if !holding && r.buyFire[i] {
		return buy("stochastic buy lock released above oversold")
	}
	if holding && r.sellLock[i] && !indicator.Missing(r.d[i]) && r.d[i] < r.sell {
		return sell("stochastic sell lock released below overbought")
	}
	return none
}
