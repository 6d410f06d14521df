package strategy

import (
	"fmt"

	"equity-backtest/internal/indicator"
	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// MACrossover buys when the fast moving average crosses above the slow one
// (golden cross) and sells on the opposite crossing (death cross). Both
// averages report only once their windows are full.
type MACrossover struct {
	fast, slow int
	kind       indicator.MAKind
}

// NewMACrossover creates a crossover strategy. Params: fast (20), slow (50),
// ema (0).
func NewMACrossover(p Params) (*MACrossover, error) {
	if err := requirePositive("ma_cross", p, "fast", "slow"); err != nil {
		return nil, err
	}
	kind := indicator.MASimple
	if p.Float("ema", 0) != 0 {
		kind = indicator.MAExponential
	}
	s := &MACrossover{fast: p.Int("fast", 20), slow: p.Int("slow", 50), kind: kind}
	if s.fast >= s.slow {
		return nil, fmt.Errorf("strategy ma_cross: fast (%d) must be shorter than slow (%d)", s.fast, s.slow)
	}
	return s, nil
}

func (s *MACrossover) Name() string { return "ma_cross" }

func (s *MACrossover) Params() Params {
	ema := 0.0
	if s.kind == indicator.MAExponential {
		ema = 1
	}
	return Params{"fast": float64(s.fast), "slow": float64(s.slow), "ema": ema}
}

func (s *MACrossover) Bind(bars []model.Bar) Rule {
	closes := series.Closes(bars)
	return &crossRule{fast: s.line(closes, s.fast), slow: s.line(closes, s.slow)}
}

func (s *MACrossover) line(closes []float64, w int) []float64 {
	if s.kind == indicator.MAExponential {
		return indicator.Run(indicator.NewEMA(w), closes)
	}
	return indicator.RollingMean(closes, w)
}

type crossRule struct {
	fast, slow []float64
}

func (r *crossRule) Decide(i int, holding bool) Decision {
	if i < 1 || i >= len(r.fast) {
		return none
	}
	pf, cf, ps, cs := r.fast[i-1], r.fast[i], r.slow[i-1], r.slow[i]
	if !holding && CrossOver(pf, cf, ps, cs) {
		return buy("golden cross (fast > slow)")
	}
	if holding && CrossUnder(pf, cf, ps, cs) {
		return sell("death cross (fast < slow)")
	}
	return none
}
