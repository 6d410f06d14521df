// Package backtest simulates single-position strategies over bar history
// and aggregates the resulting trades into ranked reports.
package backtest

import (
	"math"
	"time"

	"equity-backtest/internal/model"
	"equity-backtest/internal/strategy"
)

// State is the position state of one symbol during a run.
type State int

const (
	Flat State = iota
	Long
)

func (s State) String() string {
	if s == Long {
		return "long"
	}
	return "flat"
}

// Position is the per-symbol state machine. A decision taken at the close of
// bar i is filled against bar i+1, so a fill never uses the bar that
// produced the signal. Buys while Long and sells while Flat are ignored.
type Position struct {
	state      State
	entryDate  time.Time
	entryPrice float64
	bracket    *strategy.Bracket
	history    *model.SymbolHistory
}

// NewPosition returns a Flat position recording into h.
func NewPosition(h *model.SymbolHistory) *Position {
	return &Position{history: h}
}

// State returns the current state.
func (p *Position) State() State { return p.state }

// Holding reports whether a position is open.
func (p *Position) Holding() bool { return p.state == Long }

// Step applies decision d against the next bar and reports whether a fill
// happened. While Long with a bracket, the bracket legs are checked on every
// bar after the entry bar even without a Sell decision.
func (p *Position) Step(d strategy.Decision, next model.Bar) bool {
	switch p.state {
	case Flat:
		if d.Signal != model.SignalBuy {
			return false
		}
		price, ok := entryFill(d.Order, next)
		if !ok {
			return false
		}
		p.open(next.Date, price, d.Order.Bracket)
		return true

	case Long:
		if d.Signal == model.SignalSell {
			p.close(next.Date, next.Open)
			return true
		}
		if p.bracket == nil {
			return false
		}
		if price, ok := bracketExit(p.bracket, next); ok {
			p.close(next.Date, price)
			return true
		}
	}
	return false
}

// Finish records an unclosed position. It is never force-closed.
func (p *Position) Finish() {
	if p.state == Long {
		p.history.Open = &model.OpenPosition{BuyDate: p.entryDate, BuyPrice: p.entryPrice}
	}
}

func (p *Position) open(date time.Time, price float64, b *strategy.Bracket) {
	p.state = Long
	p.entryDate = date
	p.entryPrice = price
	p.bracket = b
	p.history.Buys++
}

func (p *Position) close(date time.Time, price float64) {
	p.history.Trades = append(p.history.Trades, model.NewTrade(p.entryDate, p.entryPrice, date, price))
	p.history.Sells++
	p.state = Flat
	p.bracket = nil
}

// entryFill prices a buy on the next bar. A stop order fills only when the
// bar trades above the trigger; a gap through the trigger fills at the open.
func entryFill(o strategy.Order, next model.Bar) (float64, bool) {
	if o.Kind != strategy.OrderStop {
		return next.Open, true
	}
	if next.High <= o.Trigger {
		return 0, false
	}
	return math.Max(o.Trigger, next.Open), true
}

// bracketExit checks target, stop-loss and gain cap in that order. Each leg
// fills at its level, or at the open when the bar gaps through it.
func bracketExit(b *strategy.Bracket, next model.Bar) (float64, bool) {
	if b.Target > 0 && next.High > b.Target {
		return math.Max(b.Target, next.Open), true
	}
	if b.StopLoss > 0 && next.Low < b.StopLoss {
		return math.Min(b.StopLoss, next.Open), true
	}
	if b.Cap > 0 && next.High > b.Cap {
		return math.Max(b.Cap, next.Open), true
	}
	return 0, false
}
