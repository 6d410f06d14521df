package strategy

import (
	"equity-backtest/internal/indicator"
	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// Breakout buys when the close crosses above the highest high of the
// previous lookback bars and sells when it crosses below their lowest low.
type Breakout struct {
	lookback int
}

// NewBreakout creates a range-breakout strategy. Params: lookback (10).
func NewBreakout(p Params) (*Breakout, error) {
	if err := requirePositive("breakout", p, "lookback"); err != nil {
		return nil, err
	}
	return &Breakout{lookback: p.Int("lookback", 10)}, nil
}

func (s *Breakout) Name() string { return "breakout" }

func (s *Breakout) Params() Params {
	return Params{"lookback": float64(s.lookback)}
}

func (s *Breakout) Bind(bars []model.Bar) Rule {
	// Shift by one so level[i] covers bars i-lookback .. i-1.
	return &breakoutRule{
		closes: series.Closes(bars),
		upper:  indicator.Shift(indicator.RollingMax(series.Highs(bars), s.lookback), 1),
		lower:  indicator.Shift(indicator.RollingMin(series.Lows(bars), s.lookback), 1),
	}
}

type breakoutRule struct {
	closes, upper, lower []float64
}

func (r *breakoutRule) Decide(i int, holding bool) Decision {
	if i < 1 || i >= len(r.closes) {
		return none
	}
	pc, cc := r.closes[i-1], r.closes[i]
	if !holding && CrossOver(pc, cc, r.upper[i-1], r.upper[i]) {
		return buy("close broke above prior range high")
	}
	if holding && CrossUnder(pc, cc, r.lower[i-1], r.lower[i]) {
		return sell("close broke below prior range low")
	}
	return none
}
