package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest/internal/indicator"
	"equity-backtest/internal/model"
)

var nan = math.NaN()

func day(i int) time.Time { return time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i) }

func closeBars(closes ...float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Symbol: "T", Date: day(i), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

func wave(n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		f := float64(i)
		c := 100 + 0.1*f + 7*math.Sin(f/6) + 2*math.Cos(f/2)
		bars[i] = model.Bar{
			Symbol: "W",
			Date:   day(i),
			Open:   c - math.Sin(f/3),
			High:   c + 1 + math.Abs(math.Sin(f)),
			Low:    c - 1 - math.Abs(math.Cos(f)),
			Close:  c,
		}
	}
	return bars
}

func signals(r Rule, n int, holding bool) []int {
	var out []int
	for i := 0; i < n; i++ {
		if r.Decide(i, holding).Signal != model.SignalNone {
			out = append(out, i)
		}
	}
	return out
}

// ── Cross helpers ──

func TestCrossHelpers(t *testing.T) {
	assert.True(t, CrossAbove(29, 31, 30))
	assert.False(t, CrossAbove(30, 31, 30), "touching the level is not below it")
	assert.False(t, CrossAbove(nan, 31, 30))
	assert.True(t, CrossBelow(71, 69, 70))
	assert.False(t, CrossBelow(71, 70, 70))

	assert.True(t, CrossOver(1, 3, 1, 2), "equal lines count as at-or-below")
	assert.False(t, CrossOver(1, 2, 1, 2))
	assert.False(t, CrossOver(1, 3, nan, 2))
	assert.True(t, CrossUnder(2, 1, 2, 2))
	assert.False(t, CrossUnder(2, 3, 2, 2))
}

// ── Warm-up ──

func TestCCI_NoSignalDuringWarmUp(t *testing.T) {
	s, err := NewCCI(Params{"window": 20})
	require.NoError(t, err)
	bars := wave(120)
	rule := s.Bind(bars)

	for i := 0; i < 20; i++ {
		assert.Equal(t, none, rule.Decide(i, false), "bar %d flat", i)
		assert.Equal(t, none, rule.Decide(i, true), "bar %d holding", i)
	}
}

func TestDecide_OutOfRange(t *testing.T) {
	bars := wave(60)
	reg := NewDefaultRegistry()
	for _, name := range reg.List() {
		s, _, err := reg.Build(name, nil, nil)
		require.NoError(t, err)
		rule := s.Bind(bars)
		assert.Equal(t, none, rule.Decide(-1, false), name)
		assert.Equal(t, none, rule.Decide(len(bars), true), name)
	}
}

// ── Oscillator rules ──

func TestRSIRule(t *testing.T) {
	bars := closeBars(100, 100, 100, 100, 100, 100, 100)
	r := &rsiRule{
		s:     &RSI{buy: 30, sell: 70, exit: 80},
		bars:  bars,
		rsi:   []float64{nan, 25, 35, 75, 65, 85, 90},
		ma200: []float64{90, 90, 90, 90, 90, 90, 90},
	}

	assert.Equal(t, none, r.Decide(1, false), "previous value missing")
	assert.Equal(t, model.SignalBuy, r.Decide(2, false).Signal)
	assert.Equal(t, none, r.Decide(2, true), "buy is suppressed while holding")
	assert.Equal(t, none, r.Decide(3, true))
	assert.Equal(t, model.SignalSell, r.Decide(4, true).Signal)
	assert.Equal(t, model.SignalSell, r.Decide(5, true).Signal, "exit level")
	assert.Equal(t, none, r.Decide(5, false))

	r.ma200[2] = 101
	assert.Equal(t, none, r.Decide(2, false), "below MA200")
}

func TestMACDRule(t *testing.T) {
	r := &macdRule{diff: []float64{nan, -1, 0.5, 0.2, -0.3, 0, 0.1}}

	assert.Equal(t, []int{2}, signals(r, 7, false))
	assert.Equal(t, []int{4}, signals(r, 7, true))
}

func TestMACD_WarnsOnInvertedWindows(t *testing.T) {
	s, err := NewMACD(Params{"fast": 30, "slow": 26})
	require.NoError(t, err)
	assert.Len(t, s.Warnings(), 1)

	s, err = NewMACD(nil)
	require.NoError(t, err)
	assert.Empty(t, s.Warnings())
}

// ── Stochastic latch ──

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}

func TestStochastic_BuyFiresOncePerArming(t *testing.T) {
	//            0   1   2   3   4   5   6   7   8   9  10  11  12
	k := []float64{50, 10, 15, 25, 30, 18, 25, 30, 35, 20, 10, 18, 30}
	d := []float64{50, 12, 12, 18, 24, 17, 21, 26, 30, 28, 15, 14, 22}
	r := newStochRule(k, d, allTrue(len(d)), 20, 80)

	// Armed at 2, fires at 4. %D dips under 20 at 5 and recovers at 6
	// without a fresh crossover, so nothing fires. The downward crossover at
	// 9 clears the lock and the upward one at 11 re-arms it.
	assert.Equal(t, []int{4, 12}, signals(r, len(d), false))
}

func TestStochastic_TrendGate(t *testing.T) {
	k := []float64{50, 10, 15, 25, 30, 35}
	d := []float64{50, 12, 12, 18, 24, 28}
	trend := allTrue(len(d))
	trend[4] = false

	r := newStochRule(k, d, trend, 20, 80)
	assert.Equal(t, []int{5}, signals(r, len(d), false), "first eligible bar after the gate opens")
}

func TestStochastic_SellLock(t *testing.T) {
	k := []float64{50, 85, 90, 85, 70, 60}
	d := []float64{50, 80, 84, 88, 78, 65}
	r := newStochRule(k, d, allTrue(len(d)), 20, 80)

	assert.Equal(t, []int{4, 5}, signals(r, len(d), true))
	assert.Empty(t, signals(r, len(d), false))
}

func TestStochastic_BindMatchesLines(t *testing.T) {
	s, err := NewStochastic(Params{"k": 5, "d": 3, "smooth_k": 2})
	require.NoError(t, err)
	bars := wave(80)
	lines := indicator.Stochastic(bars, 5, 3, 2)
	trend := make([]bool, len(bars))
	ma := indicator.SimpleMA(closesOf(bars), 200)
	for i := range bars {
		trend[i] = bars[i].Close > ma[i]
	}
	want := newStochRule(lines.K, lines.D, trend, 20, 80)

	got, ok := s.Bind(bars).(*stochRule)
	require.True(t, ok)
	assert.Equal(t, want.buyFire, got.buyFire)
	assert.Equal(t, want.sellLock, got.sellLock)
}

func closesOf(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// ── Pullback ──

func TestPullback_BracketLevels(t *testing.T) {
	s, err := NewPullback(nil)
	require.NoError(t, err)
	bars := []model.Bar{
		{Date: day(0), Open: 99, High: 101, Low: 98, Close: 100},
		{Date: day(1), Open: 100, High: 104, Low: 99.5, Close: 103},
	}
	r := &pullbackRule{
		s:     s,
		bars:  bars,
		ma:    []float64{99, 100},
		ma200: []float64{90, 90},
		rsi:   []float64{nan, 50},
	}

	d := r.Decide(1, false)
	require.Equal(t, model.SignalBuy, d.Signal)
	assert.Equal(t, OrderStop, d.Order.Kind)
	assert.Equal(t, 104.0, d.Order.Trigger)
	require.NotNil(t, d.Order.Bracket)
	assert.InDelta(t, 104+1.99*6, d.Order.Bracket.Target, 1e-9)
	assert.Equal(t, 98.0, d.Order.Bracket.StopLoss)
	assert.InDelta(t, 114.4, d.Order.Bracket.Cap, 1e-9)

	assert.Equal(t, none, r.Decide(1, true), "entries only")

	r.rsi[1] = 75
	assert.Equal(t, none, r.Decide(1, false), "rsi above rsi_max")
	r.rsi[1] = 50

	r.ma[1] = 95
	assert.Equal(t, none, r.Decide(1, false), "too far from the average")
}

func TestPullback_Warnings(t *testing.T) {
	s, err := NewPullback(Params{"r2r": 2.5})
	require.NoError(t, err)
	assert.Len(t, s.Warnings(), 1)

	s, err = NewPullback(nil)
	require.NoError(t, err)
	assert.Empty(t, s.Warnings())

	_, err = NewPullback(Params{"r2r": 0})
	assert.Error(t, err)
}

// ── Signal ──

func TestSignal_EitherOrder(t *testing.T) {
	s, err := NewMACrossover(Params{"fast": 2, "slow": 3})
	require.NoError(t, err)

	up := closeBars(110, 105, 100, 98, 104)
	down := closeBars(110, 105, 100, 98, 104, 112, 120, 126, 108)

	for name, tc := range map[string]struct {
		bars []model.Bar
		want model.Signal
	}{
		"golden cross":            {up, model.SignalBuy},
		"golden cross descending": {reverse(up), model.SignalBuy},
		"death cross":             {down, model.SignalSell},
		"death cross descending":  {reverse(down), model.SignalSell},
		"quiet":                   {down[:7], model.SignalNone},
	} {
		got, err := Signal(s, tc.bars)
		require.NoError(t, err, name)
		assert.Equal(t, tc.want, got, name)
	}

	_, err = Signal(s, up[:1])
	assert.Error(t, err)
}

func reverse(bars []model.Bar) []model.Bar {
	out := make([]model.Bar, len(bars))
	for i, b := range bars {
		out[len(bars)-1-i] = b
	}
	return out
}

// ── Registry and params ──

func TestRegistry(t *testing.T) {
	reg := NewDefaultRegistry()
	assert.Equal(t, []string{"breakout", "cci", "ma", "ma_cross", "macd", "rsi", "stochastic"}, reg.List())

	_, _, err := reg.Build("ichimoku", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	s, warnings, err := reg.Build("rsi", Params{"buy": 80, "sell": 20}, nil)
	require.NoError(t, err)
	assert.Equal(t, "rsi", s.Name())
	assert.NotEmpty(t, warnings)
	assert.Equal(t, 80.0, s.Params()["buy"])
	assert.Equal(t, 14.0, s.Params()["window"])

	_, _, err = reg.Build("ma_cross", Params{"fast": 50, "slow": 20}, nil)
	assert.Error(t, err)

	_, _, err = reg.Build("cci", Params{"window": 0}, nil)
	assert.Error(t, err)
}

func TestParams(t *testing.T) {
	k, v, err := ParseParam("window=20")
	require.NoError(t, err)
	assert.Equal(t, "window", k)
	assert.Equal(t, 20.0, v)

	k, v, err = ParseParam(" diff = 0.02")
	require.NoError(t, err)
	assert.Equal(t, "diff", k)
	assert.Equal(t, 0.02, v)

	for _, bad := range []string{"window", "=3", "window=abc"} {
		_, _, err := ParseParam(bad)
		assert.Error(t, err, bad)
	}

	p := Params{"b": 2, "a": 1}
	assert.Equal(t, "a=1 b=2", p.String())
	merged := p.Merge(Params{"b": 3, "c": 0.5})
	assert.Equal(t, Params{"a": 1, "b": 3, "c": 0.5}, merged)
	assert.Equal(t, 2.0, p["b"], "merge does not mutate")
	assert.Equal(t, 7, Params{"w": 7.9}.Int("w", 1))
	assert.Equal(t, 1, Params{}.Int("w", 1))
}
