package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"equity-backtest/internal/model"
)

// Spec names a single indicator column to compute.
type Spec struct {
	Type   string `yaml:"type"` // "SMA", "EMA", "RSI", "ATR", "CCI", "ADX", "MACD"
	Period int    `yaml:"period"`
}

// Name returns the column name, e.g. "SMA_20".
func (s Spec) Name() string {
	return strings.ToUpper(s.Type) + "_" + strconv.Itoa(s.Period)
}

// ParseSpec parses "SMA:20" or "sma_20".
func ParseSpec(text string) (Spec, error) {
	sep := strings.IndexAny(text, ":_")
	if sep <= 0 {
		return Spec{}, fmt.Errorf("indicator spec %q: want TYPE:PERIOD", text)
	}
	period, err := strconv.Atoi(text[sep+1:])
	if err != nil || period < 1 {
		return Spec{}, fmt.Errorf("indicator spec %q: bad period", text)
	}
	return Spec{Type: strings.ToUpper(text[:sep]), Period: period}, nil
}

// Panel computes several indicator columns over the same ascending series.
type Panel struct {
	specs []Spec
}

// NewPanel creates a panel for the given column specs.
func NewPanel(specs []Spec) *Panel {
	return &Panel{specs: specs}
}

// Compute returns one aligned column per spec, keyed by Spec.Name.
func (p *Panel) Compute(bars []model.Bar) (map[string][]float64, error) {
	closes := make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}

	out := make(map[string][]float64, len(p.specs))
	for _, s := range p.specs {
		var col []float64
		switch strings.ToUpper(s.Type) {
		case "SMA":
			col = SimpleMA(closes, s.Period)
		case "EMA":
			col = ExponentialMA(closes, s.Period)
		case "RSI":
			col = RelativeStrength(closes, s.Period, RSIExponential)
		case "ATR":
			col = AverageTrueRange(bars, s.Period)
		case "CCI":
			col = CommodityChannel(bars, s.Period)
		case "ADX":
			col = DirectionalMovement(bars, s.Period).ADX
		case "MACD":
			col = MACDDiff(closes, 12, 26, s.Period)
		default:
			return nil, fmt.Errorf("indicator: unknown type %q", s.Type)
		}
		out[s.Name()] = col
	}
	return out, nil
}

// Last returns the most recent value of every column.
func Last(cols map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(cols))
	for name, col := range cols {
		if len(col) > 0 {
			out[name] = col[len(col)-1]
		}
	}
	return out
}
