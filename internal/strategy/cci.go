package strategy

import (
	"equity-backtest/internal/indicator"
	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// CCI buys when the Commodity Channel Index climbs back over the oversold
// threshold in an uptrend (close > MA50 > MA200) and sells when it falls back
// under the overbought threshold or spikes past the exit level.
type CCI struct {
	window int
	buy    float64
	sell   float64
	exit   float64
}

// NewCCI creates a CCI strategy. Params: window (20), buy (-100),
// sell (100), exit (200).
func NewCCI(p Params) (*CCI, error) {
	if err := requirePositive("cci", p, "window"); err != nil {
		return nil, err
	}
	return &CCI{
		window: p.Int("window", 20),
		buy:    p.Float("buy", -100),
		sell:   p.Float("sell", 100),
		exit:   p.Float("exit", 200),
	}, nil
}

func (s *CCI) Name() string { return "cci" }

func (s *CCI) Params() Params {
	return Params{"window": float64(s.window), "buy": s.buy, "sell": s.sell, "exit": s.exit}
}

func (s *CCI) Bind(bars []model.Bar) Rule {
	closes := series.Closes(bars)
	return &cciRule{
		s:     s,
		bars:  bars,
		cci:   indicator.CommodityChannel(bars, s.window),
		ma50:  indicator.SimpleMA(closes, 50),
		ma200: indicator.SimpleMA(closes, 200),
	}
}

type cciRule struct {
	s     *CCI
	bars  []model.Bar
	cci   []float64
	ma50  []float64
	ma200 []float64
}

func (r *cciRule) Decide(i int, holding bool) Decision {
	if i < 1 || i >= len(r.bars) {
		return none
	}
	prev, cur := r.cci[i-1], r.cci[i]
	if anyMissing(prev, cur) {
		return none
	}
	if !holding {
		if CrossAbove(prev, cur, r.s.buy) && r.bars[i].Close > r.ma50[i] && r.ma50[i] > r.ma200[i] {
			return buy("cci crossed above buy threshold in uptrend")
		}
		return none
	}
	if CrossBelow(prev, cur, r.s.sell) {
		return sell("cci crossed below sell threshold")
	}
	if cur > r.s.exit {
		return sell("cci above exit level")
	}
	return none
}
