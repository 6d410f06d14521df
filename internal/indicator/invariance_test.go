package indicator

import (
	"math"
	"testing"

	"equity-backtest/internal/model"
)

func wave(n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		f := float64(i)
		c := 100 + 8*math.Sin(f/5) + 3*math.Cos(f/2)
		bars[i] = hlc(i, c+1+math.Abs(math.Sin(f)), c-1-math.Abs(math.Cos(f)), c)
		bars[i].Open = c - math.Sin(f/3)
	}
	return bars
}

func sameSeries(a, b float64) bool {
	if Missing(a) || Missing(b) {
		return Missing(a) && Missing(b)
	}
	return a == b
}

// Recomputing over a prefix must reproduce the full-series values exactly.
func TestPrefixInvariance(t *testing.T) {
	bars := wave(120)
	cases := map[string]func([]model.Bar) []float64{
		"SMA":    func(b []model.Bar) []float64 { return SimpleMA(closesOf(b), 20) },
		"EMA":    func(b []model.Bar) []float64 { return ExponentialMA(closesOf(b), 20) },
		"RSI":    func(b []model.Bar) []float64 { return RelativeStrength(closesOf(b), 14, RSIExponential) },
		"CCI":    func(b []model.Bar) []float64 { return CommodityChannel(b, 20) },
		"MACD":   func(b []model.Bar) []float64 { return MACDDiff(closesOf(b), 12, 26, 9) },
		"ADX":    func(b []model.Bar) []float64 { return DirectionalMovement(b, 14).ADX },
		"StochD": func(b []model.Bar) []float64 { return Stochastic(b, 14, 3, 3).D },
		"ATR":    func(b []model.Bar) []float64 { return AverageTrueRange(b, 14) },
	}

	for name, fn := range cases {
		full := fn(bars)
		for _, m := range []int{30, 57, 90} {
			prefix := fn(bars[:m])
			for i := 0; i < m; i++ {
				if !sameSeries(prefix[i], full[i]) {
					t.Fatalf("%s: prefix %d differs at %d: %v vs %v", name, m, i, prefix[i], full[i])
				}
			}
		}
	}
}

// Descending input must produce the same values once re-aligned by date.
func TestOrderInvariance(t *testing.T) {
	asc := wave(80)
	desc := make([]model.Bar, len(asc))
	for i := range asc {
		desc[len(asc)-1-i] = asc[i]
	}

	cci := func(b []model.Bar) []float64 { return CommodityChannel(b, 20) }
	fromAsc, err := OnBars(asc, cci)
	if err != nil {
		t.Fatal(err)
	}
	fromDesc, err := OnBars(desc, cci)
	if err != nil {
		t.Fatal(err)
	}

	for i := range asc {
		j := len(asc) - 1 - i
		if !sameSeries(fromAsc[i], fromDesc[j]) {
			t.Fatalf("date %s: asc %v, desc %v", asc[i].Date.Format("2006-01-02"), fromAsc[i], fromDesc[j])
		}
	}
	if desc[0].Date.Before(desc[1].Date) {
		t.Fatal("caller slice was reordered")
	}
}

func TestOnBars_TooShort(t *testing.T) {
	_, err := OnBars(wave(1), func(b []model.Bar) []float64 { return closesOf(b) })
	if err == nil {
		t.Fatal("expected error for a single bar")
	}
}

func TestPanel(t *testing.T) {
	specs := []Spec{{Type: "SMA", Period: 5}, {Type: "rsi", Period: 14}}
	cols, err := NewPanel(specs).Compute(wave(40))
	if err != nil {
		t.Fatal(err)
	}
	if len(cols["SMA_5"]) != 40 || len(cols["RSI_14"]) != 40 {
		t.Fatalf("unexpected columns: %v", len(cols))
	}
	if _, err := NewPanel([]Spec{{Type: "FOO", Period: 1}}).Compute(wave(5)); err == nil {
		t.Fatal("expected error for unknown type")
	}

	s, err := ParseSpec("ema:9")
	if err != nil || s.Name() != "EMA_9" {
		t.Fatalf("ParseSpec: %v %v", s, err)
	}
}

func closesOf(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}
