package strategy

import (
	"fmt"
	"math"

	"equity-backtest/internal/indicator"
	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// MaxSaneR2R is the largest risk-to-reward multiple accepted without a warning.
const MaxSaneR2R = 2.0

// Pullback buys a green candle that bounced off its moving average while
// trending above the 200-bar average with RSI below rsi_max. Entry is a
// buy-stop at the signal bar's high. Exits are bracketed: a target at r2r
// times the risk, a stop-loss under the last two lows, and a gain cap.
type Pullback struct {
	window  int
	kind    indicator.MAKind
	diff    float64
	r2r     float64
	gainCap float64
	rsiMax  float64
}

// NewPullback creates a moving-average pullback strategy. Params: window
// (44), ema (0; 1 selects exponential averages), diff (0.015), r2r (1.99),
// gain_cap (0.10), rsi_max (70).
func NewPullback(p Params) (*Pullback, error) {
	if err := requirePositive("ma", p, "window"); err != nil {
		return nil, err
	}
	kind := indicator.MASimple
	if p.Float("ema", 0) != 0 {
		kind = indicator.MAExponential
	}
	s := &Pullback{
		window:  p.Int("window", 44),
		kind:    kind,
		diff:    p.Float("diff", 0.015),
		r2r:     p.Float("r2r", 1.99),
		gainCap: p.Float("gain_cap", 0.10),
		rsiMax:  p.Float("rsi_max", 70),
	}
	if s.r2r <= 0 {
		return nil, fmt.Errorf("strategy ma: r2r must be positive, got %v", s.r2r)
	}
	return s, nil
}

func (s *Pullback) Name() string { return "ma" }

func (s *Pullback) Params() Params {
	ema := 0.0
	if s.kind == indicator.MAExponential {
		ema = 1
	}
	return Params{
		"window": float64(s.window), "ema": ema, "diff": s.diff,
		"r2r": s.r2r, "gain_cap": s.gainCap, "rsi_max": s.rsiMax,
	}
}

// Warnings flags risk-to-reward multiples beyond MaxSaneR2R. The run still
// proceeds so configurations can be compared.
func (s *Pullback) Warnings() []string {
	if s.r2r > MaxSaneR2R {
		return []string{fmt.Sprintf("ma: r2r %.2f exceeds %.1f; targets will rarely be reached", s.r2r, MaxSaneR2R)}
	}
	return nil
}

func (s *Pullback) Bind(bars []model.Bar) Rule {
	closes := series.Closes(bars)
	return &pullbackRule{
		s:     s,
		bars:  bars,
		ma:    indicator.MovingAverage(closes, s.window, s.kind),
		ma200: indicator.MovingAverage(closes, 200, s.kind),
		rsi:   indicator.RelativeStrength(closes, 14, indicator.RSIExponential),
	}
}

type pullbackRule struct {
	s     *Pullback
	bars  []model.Bar
	ma    []float64
	ma200 []float64
	rsi   []float64
}

func (r *pullbackRule) Decide(i int, holding bool) Decision {
	if holding || i < 1 || i >= len(r.bars) {
		return none
	}
	b := r.bars[i]
	ma := r.ma[i]
	if anyMissing(ma, r.ma200[i], r.rsi[i]) {
		return none
	}
	if !b.Green() || b.Close <= ma || b.Close <= r.ma200[i] || r.rsi[i] >= r.s.rsiMax {
		return none
	}
	if math.Min(math.Abs(b.Open-ma), math.Abs(b.Low-ma)) >= b.Close*r.s.diff {
		return none
	}

	entry := b.High
	stop := math.Min(b.Low, r.bars[i-1].Low)
	d := buy("green candle bounced off moving average")
	d.Order = Order{
		Kind:    OrderStop,
		Trigger: entry,
		Bracket: &Bracket{
			Target:   entry + r.s.r2r*(entry-stop),
			StopLoss: stop,
			Cap:      entry * (1 + r.s.gainCap),
		},
	}
	return d
}
