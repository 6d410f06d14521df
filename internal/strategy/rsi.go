package strategy

import (
	"equity-backtest/internal/indicator"
	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// RSI buys when RSI recovers over the oversold threshold while price holds
// above its 200-bar average, and sells on a drop back under the overbought
// threshold or on an RSI reading above the exit level.
type RSI struct {
	window int
	buy    float64
	sell   float64
	exit   float64
	mode   indicator.RSIMode
}

// NewRSI creates an RSI strategy. Params: window (14), buy (30), sell (70),
// exit (80), simple (0; 1 averages moves with a simple mean).
func NewRSI(p Params) (*RSI, error) {
	if err := requirePositive("rsi", p, "window"); err != nil {
		return nil, err
	}
	mode := indicator.RSIExponential
	if p.Float("simple", 0) != 0 {
		mode = indicator.RSISimple
	}
	return &RSI{
		window: p.Int("window", 14),
		buy:    p.Float("buy", 30),
		sell:   p.Float("sell", 70),
		exit:   p.Float("exit", 80),
		mode:   mode,
	}, nil
}

func (s *RSI) Name() string { return "rsi" }

func (s *RSI) Params() Params {
	simple := 0.0
	if s.mode == indicator.RSISimple {
		simple = 1
	}
	return Params{"window": float64(s.window), "buy": s.buy, "sell": s.sell, "exit": s.exit, "simple": simple}
}

// Warnings flags thresholds outside the 0..100 range of the oscillator.
func (s *RSI) Warnings() []string {
	return oscillatorWarnings("rsi", s.buy, s.sell)
}

func (s *RSI) Bind(bars []model.Bar) Rule {
	closes := series.Closes(bars)
	return &rsiRule{
		s:     s,
		bars:  bars,
		rsi:   indicator.RelativeStrength(closes, s.window, s.mode),
		ma200: indicator.SimpleMA(closes, 200),
	}
}

type rsiRule struct {
	s     *RSI
	bars  []model.Bar
	rsi   []float64
	ma200 []float64
}

func (r *rsiRule) Decide(i int, holding bool) Decision {
	if i < 1 || i >= len(r.bars) {
		return none
	}
	prev, cur := r.rsi[i-1], r.rsi[i]
	if anyMissing(prev, cur) {
		return none
	}
	if !holding {
		if CrossAbove(prev, cur, r.s.buy) && r.bars[i].Close > r.ma200[i] {
			return buy("rsi crossed above buy threshold above MA200")
		}
		return none
	}
	if CrossBelow(prev, cur, r.s.sell) {
		return sell("rsi crossed below sell threshold")
	}
	if cur > r.s.exit {
		return sell("rsi above exit level")
	}
	return none
}
