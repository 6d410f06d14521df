// Package risk sizes a long trade from the latest bars of a symbol.
package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

var (
	// ErrUnaffordable is returned when the budget cannot buy a single share.
	ErrUnaffordable = errors.New("risk: budget too small for one share")

	// ErrInvalidStop is returned when the stop-loss is not below the entry.
	ErrInvalidStop = errors.New("risk: stop-loss must be below entry")
)

// Defaults applied by Plan to zero-valued Request fields.
const (
	DefaultRewardRatio = 2.0
	DefaultLeverage    = 1.0
	DefaultDelta       = 0.001
	// MaxRewardRatio is the largest ratio accepted without a warning.
	MaxRewardRatio = 2.0
)

// Request holds the sizing inputs. Entry and StopLoss override the levels
// derived from the bars when non-zero. Delta is a fraction of price added
// above the last high and subtracted below the recent low.
type Request struct {
	Budget      float64
	Risk        float64 // maximum loss accepted on the whole position
	RewardRatio float64
	Leverage    float64
	Delta       float64
	Entry       float64
	StopLoss    float64
}

// TradePlan is the sized order.
type TradePlan struct {
	Symbol         string  `json:"symbol"`
	Entry          float64 `json:"entry"`
	StopLoss       float64 `json:"stop_loss"`
	Target         float64 `json:"target"`
	Quantity       int64   `json:"quantity"`
	RiskPerShare   float64 `json:"risk_per_share"`
	ProfitPerShare float64 `json:"profit_per_share"`
	StopLossPct    float64 `json:"stop_loss_pct"`
	TargetPct      float64 `json:"target_pct"`
	Investment     float64 `json:"investment"`
	MaxLoss        float64 `json:"max_loss"`
	MaxGain        float64 `json:"max_gain"`
}

// Plan buys above the last bar's high and stops below the lower of the last
// two lows. Quantity is the smaller of what the risk allowance and the
// leveraged budget permit; the target sits RewardRatio times the per-share
// risk above entry. A greedy ratio produces a warning, not an error.
func Plan(bars []model.Bar, req Request) (TradePlan, []string, error) {
	asc, _, err := series.Normalize(bars)
	if err != nil {
		return TradePlan{}, nil, err
	}
	if req.RewardRatio == 0 {
		req.RewardRatio = DefaultRewardRatio
	}
	if req.Leverage == 0 {
		req.Leverage = DefaultLeverage
	}

	var warnings []string
	if req.RewardRatio > MaxRewardRatio {
		warnings = append(warnings, fmt.Sprintf("reward ratio %.2f above %.0f; stick to the system", req.RewardRatio, MaxRewardRatio))
	}

	last, prev := asc[len(asc)-1], asc[len(asc)-2]
	delta := decimal.NewFromFloat(req.Delta)
	budget := decimal.NewFromFloat(req.Budget).Mul(decimal.NewFromFloat(req.Leverage))

	entry := decimal.NewFromFloat(req.Entry)
	if req.Entry == 0 {
		high := decimal.NewFromFloat(last.High)
		entry = high.Add(high.Mul(delta))
	}
	if budget.LessThan(entry) {
		return TradePlan{}, warnings, fmt.Errorf("%w: %s needs at least %s", ErrUnaffordable, last.Symbol, entry.StringFixed(2))
	}

	stop := decimal.NewFromFloat(req.StopLoss)
	if req.StopLoss == 0 {
		low := decimal.Min(decimal.NewFromFloat(last.Low), decimal.NewFromFloat(prev.Low))
		stop = low.Sub(low.Mul(delta))
	}
	perShare := entry.Sub(stop)
	if !perShare.IsPositive() {
		return TradePlan{}, warnings, fmt.Errorf("%w: entry %s, stop %s", ErrInvalidStop, entry.StringFixed(2), stop.StringFixed(2))
	}

	qty := decimal.Min(
		decimal.NewFromFloat(req.Risk).Div(perShare).Floor(),
		budget.Div(entry).Floor(),
	)
	if qty.LessThan(decimal.NewFromInt(1)) {
		return TradePlan{}, warnings, fmt.Errorf("%w: risk %.2f covers less than one share at %s per share",
			ErrUnaffordable, req.Risk, perShare.StringFixed(2))
	}

	profit := perShare.Mul(decimal.NewFromFloat(req.RewardRatio))
	hundred := decimal.NewFromInt(100)
	plan := TradePlan{
		Symbol:         last.Symbol,
		Entry:          entry.Round(2).InexactFloat64(),
		StopLoss:       stop.Round(2).InexactFloat64(),
		Target:         entry.Add(profit).Round(2).InexactFloat64(),
		Quantity:       qty.IntPart(),
		RiskPerShare:   perShare.Round(2).InexactFloat64(),
		ProfitPerShare: profit.Round(2).InexactFloat64(),
		StopLossPct:    perShare.Div(entry).Mul(hundred).Round(2).InexactFloat64(),
		TargetPct:      profit.Div(entry).Mul(hundred).Round(2).InexactFloat64(),
		Investment:     entry.Mul(qty).Round(2).InexactFloat64(),
		MaxLoss:        perShare.Mul(qty).Round(2).InexactFloat64(),
		MaxGain:        profit.Mul(qty).Round(2).InexactFloat64(),
	}
	return plan, warnings, nil
}
