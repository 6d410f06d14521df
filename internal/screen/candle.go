package screen

import (
	"math"

	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// Candle pattern names returned by CandleType.
const (
	Doji         = "Doji"
	Hammer       = "Hammer"
	ShootingStar = "Shooting Star"
	Normal       = "Normal"
	Unknown      = "Unknown"
)

// WickRatio is the fraction of one wick that must exceed the other wick
// for a hammer or shooting star.
const WickRatio = 0.30

// Candle is the colour and shape of a single bar.
type Candle struct {
	Green   bool
	Pattern string
}

func (c Candle) String() string {
	if c.Green {
		return "Green " + c.Pattern
	}
	return "Red " + c.Pattern
}

// CandleType classifies b. A bar is green unless it closed below its open.
// Patterns are checked in order:
//   - Doji: both wicks longer than the body
//   - Hammer: lower wick longer than the body, or WickRatio of it longer
//     than the upper wick
//   - Shooting Star: the mirror image of a hammer
//   - Normal: both wicks shorter than the body
func CandleType(b model.Bar) Candle {
	body := math.Abs(b.Close - b.Open)
	top, bottom := math.Max(b.Open, b.Close), math.Min(b.Open, b.Close)
	upper, lower := math.Abs(b.High-top), math.Abs(b.Low-bottom)

	c := Candle{Green: b.Close >= b.Open}
	switch {
	case upper > body && lower > body:
		c.Pattern = Doji
	case lower > body || WickRatio*lower > upper:
		c.Pattern = Hammer
	case upper > body || WickRatio*upper > lower:
		c.Pattern = ShootingStar
	case upper < body && lower < body:
		c.Pattern = Normal
	default:
		c.Pattern = Unknown
	}
	return c
}

// NR7Window is the number of sessions NR7 compares.
const NR7Window = 7

// NR7 reports whether the last bar's high-low range is strictly narrower
// than each of the six sessions before it. Series with fewer than seven
// bars never qualify.
func NR7(bars []model.Bar) (bool, error) {
	asc, _, err := series.Normalize(bars)
	if err != nil {
		return false, err
	}
	if len(asc) < NR7Window {
		return false, nil
	}
	last := len(asc) - 1
	cur := asc[last].High - asc[last].Low
	for _, b := range asc[last-NR7Window+1 : last] {
		if b.High-b.Low <= cur {
			return false, nil
		}
	}
	return true, nil
}
