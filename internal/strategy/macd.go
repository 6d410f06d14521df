package strategy

import (
	"equity-backtest/internal/indicator"
	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// MACD trades sign changes of the MACD histogram: negative to positive buys,
// positive to negative sells.
type MACD struct {
	fast, slow, sign int
}

// NewMACD creates a MACD strategy. Params: fast (12), slow (26), sign (9).
func NewMACD(p Params) (*MACD, error) {
	if err := requirePositive("macd", p, "fast", "slow", "sign"); err != nil {
		return nil, err
	}
	return &MACD{
		fast: p.Int("fast", 12),
		slow: p.Int("slow", 26),
		sign: p.Int("sign", 9),
	}, nil
}

func (s *MACD) Name() string { return "macd" }

func (s *MACD) Params() Params {
	return Params{"fast": float64(s.fast), "slow": float64(s.slow), "sign": float64(s.sign)}
}

// Warnings flags a fast window that is not shorter than the slow one.
func (s *MACD) Warnings() []string {
	if s.fast >= s.slow {
		return []string{"macd: fast window should be shorter than slow window"}
	}
	return nil
}

func (s *MACD) Bind(bars []model.Bar) Rule {
	return &macdRule{diff: indicator.MACDDiff(series.Closes(bars), s.fast, s.slow, s.sign)}
}

type macdRule struct {
	diff []float64
}

func (r *macdRule) Decide(i int, holding bool) Decision {
	if i < 1 || i >= len(r.diff) {
		return none
	}
	prev, cur := r.diff[i-1], r.diff[i]
	if !holding && CrossAbove(prev, cur, 0) {
		return buy("macd histogram turned positive")
	}
	if holding && CrossBelow(prev, cur, 0) {
		return sell("macd histogram turned negative")
	}
	return none
}
