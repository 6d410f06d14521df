// Package screen evaluates point-in-time conditions on the latest bar of a
// series: 52-week proximity, Ichimoku alignment, moving-average crossovers
// and pullbacks, plus a compact technical snapshot.
//
// Every function accepts bars in either chronological order and leaves the
// caller's slice untouched.
package screen

import (
	"math"
	"time"

	"equity-backtest/internal/indicator"
	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// Direction classifies the last bar relative to its 52-week range.
type Direction int

const (
	Undetermined Direction = iota
	RisingHigh
	FallingLow
)

func (d Direction) String() string {
	switch d {
	case RisingHigh:
		return "rising_high"
	case FallingLow:
		return "falling_low"
	default:
		return "undetermined"
	}
}

// DefaultNear52Threshold is the fraction of the 52-week extreme within which
// a bar counts as near it.
const DefaultNear52Threshold = 0.05

// Near52Week reports whether b trades within threshold of its 52-week high
// (checked first) or low. Bars without 52-week fields are Undetermined.
func Near52Week(b model.Bar, threshold float64) Direction {
	if threshold <= 0 {
		threshold = DefaultNear52Threshold
	}
	if b.High52W > 0 && math.Abs(b.High-b.High52W) <= b.High52W*threshold {
		return RisingHigh
	}
	if b.Low52W > 0 && math.Abs(b.Low-b.Low52W) <= b.Low52W*threshold {
		return FallingLow
	}
	return Undetermined
}

// IchimokuScore counts how many bullish Ichimoku conditions hold on the last
// bar:
//   - both leading spans sit below the bar's low (price above the cloud)
//   - the lagging span is above the high of the bar it is plotted against
//   - Tenkan-sen crossed up through Kijun-sen on the last bar
func IchimokuScore(bars []model.Bar) (int, error) {
	asc, _, err := series.Normalize(bars)
	if err != nil {
		return 0, err
	}
	lines := indicator.Ichimoku(asc)
	last := len(asc) - 1
	cur := asc[last]

	score := 0
	if lines.SenkouA[last] < cur.Low && lines.SenkouB[last] < cur.Low {
		score++
	}
	if lag := last - indicator.CloudShift; lag >= 0 && lines.Chikou[lag] > asc[lag].High {
		score++
	}
	if lines.Tenkan[last-1] <= lines.Kijun[last-1] && lines.Tenkan[last] >= lines.Kijun[last] {
		score++
	}
	return score, nil
}

// GoldenCross reports whether the short moving average moved from at or
// below the long one, lookback-1 bars ago, to strictly above it on the last
// bar. Series shorter than long never qualify.
func GoldenCross(bars []model.Bar, short, long, lookback int) (bool, error) {
	asc, _, err := series.Normalize(bars)
	if err != nil {
		return false, err
	}
	if len(asc) < long || lookback < 2 || lookback > len(asc) {
		return false, nil
	}
	closes := closesOf(asc)
	s := indicator.SimpleMA(closes, short)
	l := indicator.SimpleMA(closes, long)

	last, then := len(asc)-1, len(asc)-lookback
	return s[then] <= l[then] && s[last] > l[last], nil
}

// Proximity describes how close the last candle sits to its moving average.
type Proximity struct {
	Distance float64 // smallest |price - MA| across the last bar's OHLC
	Average  float64
	Rising   bool // MA is above its mean over the preceding window/2 bars
}

// MAProximity reports whether the last bar is a green candle closing above
// its window-period MA with some price within limit of it. A zero limit
// means 5% of the bar's high.
func MAProximity(bars []model.Bar, window int, limit float64) (Proximity, bool, error) {
	asc, _, err := series.Normalize(bars)
	if err != nil {
		return Proximity{}, false, err
	}
	ma := indicator.SimpleMA(closesOf(asc), window)
	last := len(asc) - 1
	b, avg := asc[last], ma[last]

	if b.Close < avg || b.Close < b.Open {
		return Proximity{}, false, nil
	}
	if limit == 0 {
		limit = b.High * 0.05
	}

	dist := math.Min(
		math.Min(math.Abs(b.Low-avg), math.Abs(b.High-avg)),
		math.Min(math.Abs(b.Open-avg), math.Abs(b.Close-avg)),
	)
	if dist > limit {
		return Proximity{}, false, nil
	}

	p := Proximity{Distance: math.Round(dist*100) / 100, Average: avg}
	from := last - window/2
	if from < 0 {
		from = 0
	}
	if from < last {
		sum := 0.0
		for _, v := range ma[from:last] {
			sum += v
		}
		p.Rising = sum/float64(last-from) < avg
	}
	return p, true, nil
}

// Overbought and oversold RSI bounds used by Snapshot.
const (
	Overbought = 70.0
	Oversold   = 30.0
)

// SnapshotWindows are the moving averages reported by Snapshot.
var SnapshotWindows = []int{20, 50, 100, 200}

// Summary is a point-in-time technical view of one symbol.
type Summary struct {
	Symbol     string            `json:"symbol"`
	Date       time.Time         `json:"date"`
	Close      float64           `json:"close"`
	Above      map[int]bool      `json:"above_ma"`
	MA         map[int]float64   `json:"ma"`
	RSI        float64           `json:"rsi"`
	ADX        float64           `json:"adx"`
	Overbought bool              `json:"overbought"`
	Oversold   bool              `json:"oversold"`
	Ichimoku   int               `json:"ichimoku"`
	Direction  string            `json:"direction"`
	Signals    map[string]string `json:"signals,omitempty"`
}

// Snapshot summarises the last bar: close against the 20/50/100/200-day
// SMAs, 14-period RSI and ADX, overbought/oversold flags, Ichimoku score and
// 52-week direction. Indicators still in warm-up are reported as NaN.
func Snapshot(bars []model.Bar) (Summary, error) {
	asc, _, err := series.Normalize(bars)
	if err != nil {
		return Summary{}, err
	}
	last := len(asc) - 1
	b := asc[last]
	closes := closesOf(asc)

	s := Summary{
		Symbol:    b.Symbol,
		Date:      b.Date,
		Close:     b.Close,
		Above:     make(map[int]bool, len(SnapshotWindows)),
		MA:        make(map[int]float64, len(SnapshotWindows)),
		Direction: Near52Week(b, DefaultNear52Threshold).String(),
	}
	for _, w := range SnapshotWindows {
		v := indicator.RollingMean(closes, w)[last]
		s.MA[w] = v
		s.Above[w] = b.Close > v
	}

	s.RSI = indicator.RelativeStrength(closes, 14, indicator.RSIExponential)[last]
	s.ADX = indicator.DirectionalMovement(asc, 14).ADX[last]
	s.Overbought = s.RSI > Overbought
	s.Oversold = s.RSI < Oversold

	if s.Ichimoku, err = IchimokuScore(asc); err != nil {
		return Summary{}, err
	}
	return s, nil
}

func closesOf(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}
